// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrNoPositiveWeight is returned when the reward table has no entry with a
// positive weight. This is a startup-time fatal condition.
var ErrNoPositiveWeight = errors.New("reward table has no entry with positive weight")

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Spin     SpinConfig     `mapstructure:"spin"`
	Rewards  []RewardConfig `mapstructure:"rewards" validate:"min=1,dive"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// SpinConfig holds spin engine configuration.
type SpinConfig struct {
	// Timezone is the IANA zone used for the daily free-spin reset boundary.
	Timezone         string `mapstructure:"timezone"`
	CouponCodeLength int    `mapstructure:"coupon_code_length" validate:"min=1"`
	HistoryLimit     int    `mapstructure:"history_limit" validate:"min=1"`
	CommitRetries    int    `mapstructure:"commit_retries" validate:"min=1"`
}

// RewardConfig describes one sector of the wheel.
type RewardConfig struct {
	Type         string  `mapstructure:"type" validate:"required,oneof=coins coupon none"`
	Value        int64   `mapstructure:"value" validate:"gte=0"`
	CodeTemplate string  `mapstructure:"code_template"`
	Weight       float64 `mapstructure:"weight" validate:"gte=0"`
	Label        string  `mapstructure:"label" validate:"required"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Location resolves the configured reset timezone.
func (s *SpinConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid spin timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Enable environment variable override
	// e.g., SERVER_ADDR, DATABASE_HOST, SPIN_TIMEZONE
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional - env vars and defaults can provide all config)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Rewards) == 0 {
		cfg.Rewards = DefaultRewards()
	}

	return &cfg, nil
}

// Validate checks structural constraints and the total-weight invariant.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	total := 0.0
	for _, r := range c.Rewards {
		total += r.Weight
	}
	if total <= 0 {
		return ErrNoPositiveWeight
	}

	if _, err := c.Spin.Location(); err != nil {
		return err
	}

	return nil
}

// DefaultRewards returns the stock eight-sector wheel.
func DefaultRewards() []RewardConfig {
	return []RewardConfig{
		{Type: "coins", Value: 10, Weight: 0.3, Label: "10 Coins"},
		{Type: "coins", Value: 20, Weight: 0.2, Label: "20 Coins"},
		{Type: "coins", Value: 5, Weight: 0.4, Label: "5 Coins"},
		{Type: "none", Value: 0, Weight: 0.05, Label: "Try Again"},
		{Type: "coins", Value: 15, Weight: 0.25, Label: "15 Coins"},
		{Type: "coupon", CodeTemplate: "SPIN", Weight: 0.1, Label: "Discount Coupon"},
		{Type: "coins", Value: 25, Weight: 0.15, Label: "25 Coins"},
		{Type: "none", Value: 0, Weight: 0.05, Label: "Better Luck"},
	}
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "15s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "spinwheel")
	v.SetDefault("database.name", "spinwheel")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Spin defaults
	v.SetDefault("spin.timezone", "UTC")
	v.SetDefault("spin.coupon_code_length", 6)
	v.SetDefault("spin.history_limit", 100)
	v.SetDefault("spin.commit_retries", 3)
}
