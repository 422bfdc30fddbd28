package config

import (
	"fmt"
	"os"
)

type Config struct {
	Port          string
	DBPath        string
	APIToken      string
	GeminiBaseURL string
	NotifyWebhook string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("WM_PORT", "8080"),
		DBPath:        getEnv("WM_DB_PATH", ""),
		APIToken:      getEnv("WM_API_TOKEN", ""),
		GeminiBaseURL: getEnv("WM_GEMINI_URL", ""),
		NotifyWebhook: getEnv("WM_NOTIFY_WEBHOOK", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("WM_DB_PATH is required")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
