package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigFile           = "CARSA_CONFIG_FILE"
	configDirName           = ".carsa"
	defaultConfigFileName   = "config.yaml"
	alternateConfigFileName = "config.yml"
)

type fileConfig struct {
	Version     int                  `yaml:"version"`
	Storage     fileStorageConfig    `yaml:"storage"`
	Models      fileModelsConfig     `yaml:"models"`
	Authority   fileAuthorityConfig  `yaml:"authority"`
	Simulation  fileSimulationConfig `yaml:"simulation"`
	Events      fileEventsConfig     `yaml:"events"`
	Logging     fileLoggingConfig    `yaml:"logging"`
	MetricsAddr string               `yaml:"metrics_addr"`
}

type fileStorageConfig struct {
	DBDriver string `yaml:"db_driver"`
	DBDSN    string `yaml:"db_dsn"`
	RedisURL string `yaml:"redis_url"`
}

type fileModelsConfig struct {
	GeminiAPIKey         string   `yaml:"gemini_api_key"`
	OpenAIAPIKey         string   `yaml:"openai_api_key"`
	AnthropicAPIKey      string   `yaml:"anthropic_api_key"`
	MainModels           []string `yaml:"main_models"`
	FastModels           []string `yaml:"fast_models"`
	CascadeResetInterval string   `yaml:"cascade_reset_interval"`
	CascadeBackoff       string   `yaml:"cascade_backoff"`
}

type fileAuthorityConfig struct {
	RefundLimit          *float64 `yaml:"refund_limit"`
	DiscountPercentLimit *float64 `yaml:"discount_percent_limit"`
	DiscountValueLimit   *float64 `yaml:"discount_value_limit"`
}

type fileSimulationConfig struct {
	Timeout     string `yaml:"timeout"`
	Parallelism *int   `yaml:"parallelism"`
}

type fileEventsConfig struct {
	KafkaBrokers  []string `yaml:"kafka_brokers"`
	KafkaTopic    string   `yaml:"kafka_topic"`
	WebhookURLs   []string `yaml:"webhook_urls"`
	WebhookSecret string   `yaml:"webhook_secret"`
	WebhookEvents []string `yaml:"webhook_events"`
}

type fileLoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func loadFileConfig() (fileConfig, error) {
	path, ok, err := resolveConfigFilePath()
	if err != nil {
		return fileConfig{}, err
	}
	if !ok {
		return fileConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("decode config file %s: %w", path, err)
	}

	return cfg, nil
}

func resolveConfigFilePath() (string, bool, error) {
	if explicit := EnvString(EnvConfigFile); explicit != "" {
		resolvedPath, err := expandPath(explicit)
		if err != nil {
			return "", false, fmt.Errorf("resolve %s: %w", EnvConfigFile, err)
		}
		info, err := os.Stat(resolvedPath)
		if err != nil {
			return "", false, fmt.Errorf("config file %s: %w", resolvedPath, err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config file %s is a directory", resolvedPath)
		}
		return resolvedPath, true, nil
	}

	candidates := []string{
		filepath.Join(configDirName, defaultConfigFileName),
		filepath.Join(configDirName, alternateConfigFileName),
	}
	if homeDir, err := os.UserHomeDir(); err == nil && strings.TrimSpace(homeDir) != "" {
		candidates = append(candidates,
			filepath.Join(homeDir, configDirName, defaultConfigFileName),
			filepath.Join(homeDir, configDirName, alternateConfigFileName),
		)
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", false, fmt.Errorf("config path %s is a directory", candidate)
			}
			return candidate, true, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("stat config file %s: %w", candidate, err)
		}
	}

	return "", false, nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" {
		return os.UserHomeDir()
	}
	if strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, strings.TrimPrefix(trimmed, "~/")), nil
	}
	return trimmed, nil
}
