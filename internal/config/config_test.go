package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestFromYAMLAndEnv_LoadsYAMLAndEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDBDSN, "postgres://env/override")
	t.Setenv(EnvRefundLimit, "80")

	configPath := writeConfigFile(t, `
version: 1
storage:
  db_driver: "postgres"
  db_dsn: "postgres://yaml/db"
  redis_url: "redis://localhost:6379/2"
models:
  gemini_api_key: "yaml-gemini"
  main_models: ["gemini-2.5-flash", "openai:gpt-4o-mini"]
  fast_models: ["gemini-2.5-flash-lite"]
  cascade_reset_interval: "90s"
  cascade_backoff: "250ms"
authority:
  refund_limit: 120
  discount_percent_limit: 10
simulation:
  timeout: "45s"
  parallelism: 3
events:
  kafka_brokers: ["localhost:9092"]
  webhook_urls: ["http://hooks.local/a"]
  webhook_secret: "yaml-secret"
  webhook_events: ["guardrail.injection.detected", "simulation.run.completed"]
logging:
  level: "DEBUG"
  format: "json"
metrics_addr: ":9102"
`)
	t.Setenv(EnvConfigFile, configPath)

	cfg, err := FromYAMLAndEnv()
	if err != nil {
		t.Fatalf("FromYAMLAndEnv failed: %v", err)
	}
	if cfg.DBDriver != "postgres" {
		t.Fatalf("unexpected db driver %q", cfg.DBDriver)
	}
	if cfg.DBDSN != "postgres://env/override" {
		t.Fatalf("expected env DSN override, got %q", cfg.DBDSN)
	}
	if cfg.RedisURL != "redis://localhost:6379/2" {
		t.Fatalf("unexpected redis url %q", cfg.RedisURL)
	}
	if cfg.GeminiAPIKey != "yaml-gemini" {
		t.Fatalf("unexpected gemini key %q", cfg.GeminiAPIKey)
	}
	if !reflect.DeepEqual(cfg.MainModels, []string{"gemini-2.5-flash", "openai:gpt-4o-mini"}) {
		t.Fatalf("unexpected main models %v", cfg.MainModels)
	}
	if cfg.CascadeResetInterval != 90*time.Second || cfg.CascadeBackoff != 250*time.Millisecond {
		t.Fatalf("unexpected cascade timings %s %s", cfg.CascadeResetInterval, cfg.CascadeBackoff)
	}
	if cfg.RefundLimit != 80 {
		t.Fatalf("expected env refund limit override, got %v", cfg.RefundLimit)
	}
	if cfg.DiscountPercentLimit != 10 || cfg.DiscountValueLimit != DefaultDiscountValueLimit {
		t.Fatalf("unexpected discount limits %v %v", cfg.DiscountPercentLimit, cfg.DiscountValueLimit)
	}
	if cfg.SimulationTimeout != 45*time.Second || cfg.SimulationParallelism != 3 {
		t.Fatalf("unexpected simulation settings %s %d", cfg.SimulationTimeout, cfg.SimulationParallelism)
	}
	if cfg.KafkaTopic != DefaultKafkaTopic || len(cfg.KafkaBrokers) != 1 {
		t.Fatalf("unexpected kafka settings %v %q", cfg.KafkaBrokers, cfg.KafkaTopic)
	}
	if cfg.WebhookSecret != "yaml-secret" || !reflect.DeepEqual(cfg.WebhookEvents, []string{"guardrail.injection.detected", "simulation.run.completed"}) {
		t.Fatalf("unexpected webhook settings %q %v", cfg.WebhookSecret, cfg.WebhookEvents)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" || cfg.MetricsAddr != ":9102" {
		t.Fatalf("unexpected logging settings %q %q %q", cfg.LogLevel, cfg.LogFormat, cfg.MetricsAddr)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config: %v", err)
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if cfg.DBDriver != DefaultDBDriver || cfg.DBDSN != DefaultDBDSN {
		t.Fatalf("unexpected storage defaults %q %q", cfg.DBDriver, cfg.DBDSN)
	}
	if cfg.RefundLimit != 100 || cfg.DiscountPercentLimit != 15 || cfg.DiscountValueLimit != 50 {
		t.Fatalf("unexpected authority defaults %+v", cfg)
	}
	if cfg.CascadeResetInterval != time.Minute || cfg.SimulationTimeout != 120*time.Second {
		t.Fatalf("unexpected timing defaults %s %s", cfg.CascadeResetInterval, cfg.SimulationTimeout)
	}
	if !reflect.DeepEqual(cfg.MainModels, DefaultMainModels) || !reflect.DeepEqual(cfg.FastModels, DefaultFastModels) {
		t.Fatalf("unexpected model defaults %v %v", cfg.MainModels, cfg.FastModels)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate: %v", err)
	}
}

func TestFromEnvModelLists(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvMainModels, " a , ,b ")
	t.Setenv(EnvWebhookURLs, "http://one,http://two")
	t.Setenv(EnvWebhookEvents, "conversation.turn.failed, simulation.completed")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if !reflect.DeepEqual(cfg.MainModels, []string{"a", "b"}) {
		t.Fatalf("unexpected main models %v", cfg.MainModels)
	}
	if len(cfg.WebhookURLs) != 2 {
		t.Fatalf("unexpected webhook urls %v", cfg.WebhookURLs)
	}
	if !reflect.DeepEqual(cfg.WebhookEvents, []string{"conversation.turn.failed", "simulation.completed"}) {
		t.Fatalf("unexpected webhook events %v", cfg.WebhookEvents)
	}
}

func TestFromEnvRejectsBadNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvRefundLimit, "lots")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected invalid refund limit error")
	}

	clearEnv(t)
	t.Setenv(EnvSimulationTimeout, "-1s")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected invalid timeout error")
	}
}

func TestFromYAMLAndEnvRejectsBadDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvConfigFile, writeConfigFile(t, "simulation:\n  timeout: soon\n"))
	if _, err := FromYAMLAndEnv(); err == nil {
		t.Fatalf("expected invalid duration error")
	}
}

func TestFromYAMLAndEnvMissingExplicitFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvConfigFile, filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := FromYAMLAndEnv(); err == nil {
		t.Fatalf("expected missing config file error")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "driver", mutate: func(c *Config) { c.DBDriver = "mysql" }},
		{name: "dsn", mutate: func(c *Config) { c.DBDSN = " " }},
		{name: "main models", mutate: func(c *Config) { c.MainModels = nil }},
		{name: "fast models", mutate: func(c *Config) { c.FastModels = nil }},
		{name: "refund limit", mutate: func(c *Config) { c.RefundLimit = 0 }},
		{name: "discount percent", mutate: func(c *Config) { c.DiscountPercentLimit = 150 }},
		{name: "parallelism", mutate: func(c *Config) { c.SimulationParallelism = 0 }},
		{name: "kafka topic", mutate: func(c *Config) { c.KafkaBrokers = []string{"b:9092"}; c.KafkaTopic = "" }},
		{name: "log format", mutate: func(c *Config) { c.LogFormat = "xml" }},
		{name: "webhook events", mutate: func(c *Config) { c.WebhookEvents = []string{"turn.done"} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvConfigFile, EnvDBDriver, EnvDBDSN, EnvRedisURL, EnvGeminiAPIKey, EnvOpenAIAPIKey,
		EnvAnthropicAPIKey, EnvMainModels, EnvFastModels, EnvCascadeResetInterval, EnvCascadeBackoff,
		EnvRefundLimit, EnvDiscountPercentLimit, EnvDiscountValueLimit, EnvSimulationTimeout,
		EnvSimulationParallelism, EnvKafkaBrokers, EnvKafkaTopic, EnvWebhookURLs, EnvLogLevel,
		EnvLogFormat, EnvMetricsAddr, EnvWebhookSecret, EnvWebhookEvents,
	} {
		t.Setenv(key, "")
	}
	t.Setenv("HOME", t.TempDir())
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	dir := t.TempDir()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}
