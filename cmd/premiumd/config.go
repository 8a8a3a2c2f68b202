package main

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for premiumd.
type Config struct {
	ServerPort        string        `mapstructure:"SERVER_PORT"`
	JWTSecret         string        `mapstructure:"JWT_SECRET"`
	AdminID           string        `mapstructure:"ADMIN_ID"`
	AllowedOrigins    []string      `mapstructure:"ALLOWED_ORIGINS"`
	ApprovedIDs       []string      `mapstructure:"APPROVED_SUBSCRIBERS"`
	ReactivationMode  string        `mapstructure:"REACTIVATION_MODE"`
	ReconcileSchedule string        `mapstructure:"RECONCILE_SCHEDULE"`
	ReconcileTimeout  time.Duration `mapstructure:"RECONCILE_TIMEOUT"`
	RedisURL          string        `mapstructure:"REDIS_URL"`
	KafkaBrokers      []string      `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic        string        `mapstructure:"KAFKA_TOPIC"`
	ShutdownTimeout   time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REACTIVATION_MODE", "transition")
	viper.SetDefault("RECONCILE_SCHEDULE", "@every 1h")
	viper.SetDefault("RECONCILE_TIMEOUT", "5m")
	viper.SetDefault("KAFKA_TOPIC", "premium.events")
	viper.SetDefault("SHUTDOWN_TIMEOUT", "15s")
	viper.AutomaticEnv()

	// Unmarshal only sees keys viper knows about.
	for _, key := range []string{
		"JWT_SECRET",
		"ADMIN_ID",
		"ALLOWED_ORIGINS",
		"APPROVED_SUBSCRIBERS",
		"REDIS_URL",
		"KAFKA_BROKERS",
	} {
		_ = viper.BindEnv(key)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set")
	}
	if cfg.AdminID == "" {
		return nil, errors.New("ADMIN_ID must be set")
	}

	return &cfg, nil
}
