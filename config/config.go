// Package config loads environment variables and provides a typed Config used
// across the service. It applies sensible defaults so the binary can run
// locally with minimal setup. For required credentials, use ValidateBotReady.
package config

import (
	"fmt"
	"os"
)

type Config struct {
	// YouTube
	APIKey      string
	ChannelID   string
	StreamID    string
	SecretsFile string

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string

	// HTTP
	HTTPAddr string
}

// Load reads environment variables and applies defaults. It doesn't fail when
// credentials are missing; use ValidateBotReady() when you require a runnable
// bot. A missing secrets file only disables the write path.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.APIKey = os.Getenv("YT_API_KEY")
	cfg.ChannelID = os.Getenv("YT_CHANNEL_ID")
	cfg.StreamID = os.Getenv("YT_STREAM_ID")
	cfg.SecretsFile = os.Getenv("YT_SECRETS_FILE")

	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	cfg.LogFormat = os.Getenv("LOG_FORMAT")
	cfg.LogFile = os.Getenv("LOG_FILE")

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	return cfg, nil
}

// ValidateBotReady checks the fields required to run the read path.
func (c *Config) ValidateBotReady() error {
	if c.APIKey == "" || c.ChannelID == "" {
		return fmt.Errorf("missing youtube env: require YT_API_KEY, YT_CHANNEL_ID")
	}
	return nil
}
