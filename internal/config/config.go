// Package config provides YAML and environment based configuration for Clawdeck.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Clawdeck configuration. Values can come from a
// YAML file, the environment, or both; environment variables win so that
// hosted deployments can override a baked-in config file.
type Config struct {
	BotID         string          `yaml:"bot_id"`
	Platform      string          `yaml:"platform"` // "telegram" (default) or "discord"
	BotToken      string          `yaml:"bot_token"`
	SelectedModel string          `yaml:"selected_model"`
	PlatformURL   string          `yaml:"platform_url"` // control-plane base URL for usage reporting
	Port          int             `yaml:"port"`
	PublicURL     string          `yaml:"public_url"` // externally reachable base URL for webhook callbacks
	Providers     ProvidersConfig `yaml:"providers"`
	Database      DatabaseConfig  `yaml:"database"`
	Discord       DiscordConfig   `yaml:"discord"`
	Digest        DigestConfig    `yaml:"digest"`
}

// ProvidersConfig holds the optional API credentials, one per LLM backend.
type ProvidersConfig struct {
	AnthropicKey string `yaml:"anthropic_key"`
	OpenAIKey    string `yaml:"openai_key"`
	GoogleKey    string `yaml:"google_key"`
}

// Empty reports whether no provider credential is configured at all.
// A relay with an empty credential set runs in test mode.
func (p ProvidersConfig) Empty() bool {
	return p.AnthropicKey == "" && p.OpenAIKey == "" && p.GoogleKey == ""
}

// DatabaseConfig selects the persistence backend. Driver "sqlite" uses a
// local file (or :memory:), "mysql" connects to a hosted server.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"` // sqlite only
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// DiscordConfig holds credentials for the optional Discord transport.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DigestConfig controls the daily usage digest job on the control plane.
type DigestConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
}

// Load reads a YAML config file, applies environment overrides, and
// returns a validated Config. A missing file is not an error: hosted
// deployments configure everything through the environment.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Environment-only configuration.
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Parse unmarshals YAML bytes into a validated Config without touching
// the environment. Used by tests and embedded callers.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays recognized environment variables onto the config.
// The names match the deployment contract of the hosted bot runner.
func (c *Config) applyEnv() {
	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setStr(&c.BotID, "BOT_ID")
	setStr(&c.Platform, "BOT_PLATFORM")
	setStr(&c.BotToken, "TELEGRAM_BOT_TOKEN")
	setStr(&c.SelectedModel, "SELECTED_MODEL")
	setStr(&c.PlatformURL, "PLATFORM_URL")
	setStr(&c.PublicURL, "PUBLIC_URL")
	setStr(&c.Providers.AnthropicKey, "ANTHROPIC_API_KEY")
	setStr(&c.Providers.OpenAIKey, "OPENAI_API_KEY")
	setStr(&c.Providers.GoogleKey, "GOOGLE_AI_API_KEY")
	setStr(&c.Discord.BotToken, "DISCORD_BOT_TOKEN")
	setStr(&c.Discord.ChannelID, "DISCORD_CHANNEL_ID")
	setStr(&c.Database.Driver, "DATABASE_DRIVER")
	setStr(&c.Database.Path, "DATABASE_PATH")
	setStr(&c.Database.Host, "DATABASE_HOST")
	setStr(&c.Database.Name, "DATABASE_NAME")
	setStr(&c.Database.User, "DATABASE_USER")
	setStr(&c.Database.Password, "DATABASE_PASSWORD")
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv("DATABASE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Database.Port = port
		}
	}
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Platform == "" {
		c.Platform = "telegram"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "clawdeck.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
	}
	if c.Digest.Enabled && c.Digest.Cron == "" {
		c.Digest.Cron = "0 8 * * *"
	}
}

// validate checks that the config is internally consistent. A missing bot
// token or model is deliberately NOT an error here: the relay degrades to
// liveness-only or test mode instead of refusing to start.
func (c *Config) validate() error {
	var errs []string
	switch c.Platform {
	case "telegram", "discord":
	default:
		errs = append(errs, fmt.Sprintf("unsupported platform %q", c.Platform))
	}
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("unsupported database driver %q", c.Database.Driver))
	}
	if c.Database.Driver == "mysql" && c.Database.Name == "" {
		errs = append(errs, "database.name is required for mysql")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
