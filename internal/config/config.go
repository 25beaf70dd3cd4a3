package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	AuthSecret  string   `mapstructure:"AUTH_SECRET"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Envelope identity: who this installation is on the wire and which
	// clearinghouse receives its interchanges.
	SenderID       string `mapstructure:"X12_SENDER_ID"`
	SenderName     string `mapstructure:"X12_SENDER_NAME"`
	ReceiverID     string `mapstructure:"X12_RECEIVER_ID"`
	ReceiverName   string `mapstructure:"X12_RECEIVER_NAME"`
	UsageIndicator string `mapstructure:"X12_USAGE_INDICATOR"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("X12_USAGE_INDICATOR", "P")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("AUTH_SECRET")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("X12_SENDER_ID")
	v.BindEnv("X12_SENDER_NAME")
	v.BindEnv("X12_RECEIVER_ID")
	v.BindEnv("X12_RECEIVER_NAME")
	v.BindEnv("X12_USAGE_INDICATOR")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Interchanges cannot
// be generated without a sender and receiver identity, and production
// deployments must require bearer authentication.
func (c *Config) Validate() error {
	if c.SenderID == "" {
		return fmt.Errorf("X12_SENDER_ID is required")
	}
	if c.ReceiverID == "" {
		return fmt.Errorf("X12_RECEIVER_ID is required")
	}

	switch c.UsageIndicator {
	case "P", "T", "I":
	default:
		return fmt.Errorf("X12_USAGE_INDICATOR must be \"P\", \"T\", or \"I\", got %q", c.UsageIndicator)
	}

	if c.IsProduction() && c.AuthSecret == "" {
		return fmt.Errorf("AUTH_SECRET is required in production")
	}
	if c.IsProduction() && c.UsageIndicator != "P" {
		return fmt.Errorf("X12_USAGE_INDICATOR must be \"P\" in production, got %q", c.UsageIndicator)
	}
	return nil
}
