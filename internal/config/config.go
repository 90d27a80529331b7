package config

import (
	"fmt"
	"strings"
	"time"

	"carsa.local/complaints/internal/events"
)

const (
	EnvDBDriver              = "CARSA_DB_DRIVER"
	EnvDBDSN                 = "CARSA_DB_DSN"
	EnvRedisURL              = "CARSA_REDIS_URL"
	EnvGeminiAPIKey          = "GEMINI_API_KEY"
	EnvOpenAIAPIKey          = "OPENAI_API_KEY"
	EnvAnthropicAPIKey       = "ANTHROPIC_API_KEY"
	EnvMainModels            = "CARSA_MAIN_MODELS"
	EnvFastModels            = "CARSA_FAST_MODELS"
	EnvCascadeResetInterval  = "CARSA_CASCADE_RESET_INTERVAL"
	EnvCascadeBackoff        = "CARSA_CASCADE_BACKOFF"
	EnvRefundLimit           = "AI_REFUND_LIMIT"
	EnvDiscountPercentLimit  = "AI_DISCOUNT_LIMIT"
	EnvDiscountValueLimit    = "CARSA_DISCOUNT_VALUE_LIMIT"
	EnvSimulationTimeout     = "CARSA_SIMULATION_TIMEOUT"
	EnvSimulationParallelism = "CARSA_SIMULATION_PARALLELISM"
	EnvKafkaBrokers          = "CARSA_KAFKA_BROKERS"
	EnvKafkaTopic            = "CARSA_KAFKA_TOPIC"
	EnvWebhookURLs           = "CARSA_WEBHOOK_URLS"
	EnvWebhookSecret         = "CARSA_WEBHOOK_SECRET"
	EnvWebhookEvents         = "CARSA_WEBHOOK_EVENTS"
	EnvLogLevel              = "CARSA_LOG_LEVEL"
	EnvLogFormat             = "CARSA_LOG_FORMAT"
	EnvMetricsAddr           = "CARSA_METRICS_ADDR"
)

const (
	DefaultDBDriver              = "sqlite"
	DefaultDBDSN                 = "carsa.db"
	DefaultCascadeResetInterval  = 60 * time.Second
	DefaultCascadeBackoff        = 500 * time.Millisecond
	DefaultRefundLimit           = 100.0
	DefaultDiscountPercentLimit  = 15.0
	DefaultDiscountValueLimit    = 50.0
	DefaultSimulationTimeout     = 120 * time.Second
	DefaultSimulationParallelism = 1
	DefaultKafkaTopic            = "carsa.conversation-events"
	DefaultLogLevel              = "info"
	DefaultLogFormat             = "text"
)

var (
	DefaultMainModels = []string{"gemini-3-flash-preview", "gemini-2.5-flash", "gemini-2.5-flash-lite", "gemini-2.0-flash"}
	DefaultFastModels = []string{"gemini-2.5-flash-lite", "gemini-2.5-flash", "gemini-2.0-flash"}
)

type Config struct {
	DBDriver string
	DBDSN    string
	RedisURL string

	GeminiAPIKey    string
	OpenAIAPIKey    string
	AnthropicAPIKey string

	MainModels           []string
	FastModels           []string
	CascadeResetInterval time.Duration
	CascadeBackoff       time.Duration

	RefundLimit          float64
	DiscountPercentLimit float64
	DiscountValueLimit   float64

	SimulationTimeout     time.Duration
	SimulationParallelism int

	KafkaBrokers []string
	KafkaTopic   string
	WebhookURLs  []string

	// WebhookSecret signs webhook bodies; WebhookEvents filters them.
	WebhookSecret string
	WebhookEvents []string

	LogLevel    string
	LogFormat   string
	MetricsAddr string
}

func FromEnv() (Config, error) {
	cfg := Default()
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func FromYAMLAndEnv() (Config, error) {
	cfg := Default()

	fileCfg, err := loadFileConfig()
	if err != nil {
		return Config{}, err
	}
	if err := applyYAML(&cfg, fileCfg); err != nil {
		return Config{}, err
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func Default() Config {
	return Config{
		DBDriver:              DefaultDBDriver,
		DBDSN:                 DefaultDBDSN,
		MainModels:            append([]string(nil), DefaultMainModels...),
		FastModels:            append([]string(nil), DefaultFastModels...),
		CascadeResetInterval:  DefaultCascadeResetInterval,
		CascadeBackoff:        DefaultCascadeBackoff,
		RefundLimit:           DefaultRefundLimit,
		DiscountPercentLimit:  DefaultDiscountPercentLimit,
		DiscountValueLimit:    DefaultDiscountValueLimit,
		SimulationTimeout:     DefaultSimulationTimeout,
		SimulationParallelism: DefaultSimulationParallelism,
		KafkaTopic:            DefaultKafkaTopic,
		LogLevel:              DefaultLogLevel,
		LogFormat:             DefaultLogFormat,
	}
}

func applyYAML(cfg *Config, source fileConfig) error {
	if value := strings.TrimSpace(source.Storage.DBDriver); value != "" {
		cfg.DBDriver = strings.ToLower(value)
	}
	if value := strings.TrimSpace(source.Storage.DBDSN); value != "" {
		cfg.DBDSN = value
	}
	if value := strings.TrimSpace(source.Storage.RedisURL); value != "" {
		cfg.RedisURL = value
	}

	if value := strings.TrimSpace(source.Models.GeminiAPIKey); value != "" {
		cfg.GeminiAPIKey = value
	}
	if value := strings.TrimSpace(source.Models.OpenAIAPIKey); value != "" {
		cfg.OpenAIAPIKey = value
	}
	if value := strings.TrimSpace(source.Models.AnthropicAPIKey); value != "" {
		cfg.AnthropicAPIKey = value
	}
	if models := cleanList(source.Models.MainModels); len(models) > 0 {
		cfg.MainModels = models
	}
	if models := cleanList(source.Models.FastModels); len(models) > 0 {
		cfg.FastModels = models
	}

	resetInterval, err := parseOptionalDuration(source.Models.CascadeResetInterval, cfg.CascadeResetInterval, "models.cascade_reset_interval")
	if err != nil {
		return err
	}
	cfg.CascadeResetInterval = resetInterval

	backoff, err := parseOptionalDuration(source.Models.CascadeBackoff, cfg.CascadeBackoff, "models.cascade_backoff")
	if err != nil {
		return err
	}
	cfg.CascadeBackoff = backoff

	if source.Authority.RefundLimit != nil {
		cfg.RefundLimit = *source.Authority.RefundLimit
	}
	if source.Authority.DiscountPercentLimit != nil {
		cfg.DiscountPercentLimit = *source.Authority.DiscountPercentLimit
	}
	if source.Authority.DiscountValueLimit != nil {
		cfg.DiscountValueLimit = *source.Authority.DiscountValueLimit
	}

	timeout, err := parseOptionalDuration(source.Simulation.Timeout, cfg.SimulationTimeout, "simulation.timeout")
	if err != nil {
		return err
	}
	cfg.SimulationTimeout = timeout
	if source.Simulation.Parallelism != nil {
		cfg.SimulationParallelism = *source.Simulation.Parallelism
	}

	if brokers := cleanList(source.Events.KafkaBrokers); len(brokers) > 0 {
		cfg.KafkaBrokers = brokers
	}
	if value := strings.TrimSpace(source.Events.KafkaTopic); value != "" {
		cfg.KafkaTopic = value
	}
	if urls := cleanList(source.Events.WebhookURLs); len(urls) > 0 {
		cfg.WebhookURLs = urls
	}
	if value := strings.TrimSpace(source.Events.WebhookSecret); value != "" {
		cfg.WebhookSecret = value
	}
	if types := cleanList(source.Events.WebhookEvents); len(types) > 0 {
		cfg.WebhookEvents = types
	}

	if value := strings.TrimSpace(source.Logging.Level); value != "" {
		cfg.LogLevel = strings.ToLower(value)
	}
	if value := strings.TrimSpace(source.Logging.Format); value != "" {
		cfg.LogFormat = strings.ToLower(value)
	}
	if value := strings.TrimSpace(source.MetricsAddr); value != "" {
		cfg.MetricsAddr = value
	}

	return nil
}

func applyEnv(cfg *Config) error {
	cfg.DBDriver = strings.ToLower(EnvOrDefault(EnvDBDriver, cfg.DBDriver))
	cfg.DBDSN = EnvOrDefault(EnvDBDSN, cfg.DBDSN)
	cfg.RedisURL = EnvOrDefault(EnvRedisURL, cfg.RedisURL)
	cfg.GeminiAPIKey = EnvOrDefault(EnvGeminiAPIKey, cfg.GeminiAPIKey)
	cfg.OpenAIAPIKey = EnvOrDefault(EnvOpenAIAPIKey, cfg.OpenAIAPIKey)
	cfg.AnthropicAPIKey = EnvOrDefault(EnvAnthropicAPIKey, cfg.AnthropicAPIKey)

	if models := splitList(EnvString(EnvMainModels)); len(models) > 0 {
		cfg.MainModels = models
	}
	if models := splitList(EnvString(EnvFastModels)); len(models) > 0 {
		cfg.FastModels = models
	}

	var err error
	if cfg.CascadeResetInterval, err = parseDurationEnv(EnvCascadeResetInterval, cfg.CascadeResetInterval); err != nil {
		return err
	}
	if cfg.CascadeBackoff, err = parseDurationEnv(EnvCascadeBackoff, cfg.CascadeBackoff); err != nil {
		return err
	}
	if cfg.RefundLimit, err = parseFloatEnv(EnvRefundLimit, cfg.RefundLimit); err != nil {
		return err
	}
	if cfg.DiscountPercentLimit, err = parseFloatEnv(EnvDiscountPercentLimit, cfg.DiscountPercentLimit); err != nil {
		return err
	}
	if cfg.DiscountValueLimit, err = parseFloatEnv(EnvDiscountValueLimit, cfg.DiscountValueLimit); err != nil {
		return err
	}
	if cfg.SimulationTimeout, err = parseDurationEnv(EnvSimulationTimeout, cfg.SimulationTimeout); err != nil {
		return err
	}
	if cfg.SimulationParallelism, err = parseIntEnv(EnvSimulationParallelism, cfg.SimulationParallelism); err != nil {
		return err
	}

	if brokers := splitList(EnvString(EnvKafkaBrokers)); len(brokers) > 0 {
		cfg.KafkaBrokers = brokers
	}
	cfg.KafkaTopic = EnvOrDefault(EnvKafkaTopic, cfg.KafkaTopic)
	if urls := splitList(EnvString(EnvWebhookURLs)); len(urls) > 0 {
		cfg.WebhookURLs = urls
	}
	cfg.WebhookSecret = EnvOrDefault(EnvWebhookSecret, cfg.WebhookSecret)
	if types := splitList(EnvString(EnvWebhookEvents)); len(types) > 0 {
		cfg.WebhookEvents = types
	}
	cfg.LogLevel = strings.ToLower(EnvOrDefault(EnvLogLevel, cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(EnvOrDefault(EnvLogFormat, cfg.LogFormat))
	cfg.MetricsAddr = EnvOrDefault(EnvMetricsAddr, cfg.MetricsAddr)
	return nil
}

func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.DBDriver)) {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%s must be sqlite or postgres", EnvDBDriver)
	}
	if strings.TrimSpace(c.DBDSN) == "" {
		return fmt.Errorf("%s must not be empty", EnvDBDSN)
	}
	if len(c.MainModels) == 0 {
		return fmt.Errorf("%s must list at least one model", EnvMainModels)
	}
	if len(c.FastModels) == 0 {
		return fmt.Errorf("%s must list at least one model", EnvFastModels)
	}
	if c.CascadeResetInterval <= 0 {
		return fmt.Errorf("%s must be > 0", EnvCascadeResetInterval)
	}
	if c.CascadeBackoff < 0 {
		return fmt.Errorf("%s must be >= 0", EnvCascadeBackoff)
	}
	if c.RefundLimit <= 0 {
		return fmt.Errorf("%s must be > 0", EnvRefundLimit)
	}
	if c.DiscountPercentLimit <= 0 || c.DiscountPercentLimit > 100 {
		return fmt.Errorf("%s must be within (0, 100]", EnvDiscountPercentLimit)
	}
	if c.DiscountValueLimit <= 0 {
		return fmt.Errorf("%s must be > 0", EnvDiscountValueLimit)
	}
	if c.SimulationTimeout <= 0 {
		return fmt.Errorf("%s must be > 0", EnvSimulationTimeout)
	}
	if c.SimulationParallelism < 1 {
		return fmt.Errorf("%s must be >= 1", EnvSimulationParallelism)
	}
	if len(c.KafkaBrokers) > 0 && strings.TrimSpace(c.KafkaTopic) == "" {
		return fmt.Errorf("%s must not be empty when brokers are set", EnvKafkaTopic)
	}
	for _, name := range c.WebhookEvents {
		if _, err := events.ParseType(name); err != nil {
			return fmt.Errorf("%s: %w", EnvWebhookEvents, err)
		}
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%s must be text or json", EnvLogFormat)
	}
	return nil
}
