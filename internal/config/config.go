// Package config defines all configuration for the ETF position service.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// fields overridable via ETF_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Feed      FeedConfig      `mapstructure:"feed"`
	REST      RESTConfig      `mapstructure:"rest"`
	Fee       FeeConfig       `mapstructure:"fee"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// FeedConfig holds the multicast group addresses the two receivers join.
// MDMcastIP/MDMcastPort carry NEW/DELETE/MODIFY order events; ClearingMcastIP/
// ClearingMcastPort carry fills. BindIP selects the local interface used to
// join both multicast groups.
type FeedConfig struct {
	MDMcastIP         string `mapstructure:"md_mcast_ip"`
	MDMcastPort       int    `mapstructure:"md_mcast_port"`
	ClearingMcastIP   string `mapstructure:"clearing_mcast_ip"`
	ClearingMcastPort int    `mapstructure:"clearing_mcast_port"`
	BindIP            string `mapstructure:"mcast_bind_ip"`
}

// RESTConfig controls the REST control surface listener.
type RESTConfig struct {
	Port int `mapstructure:"rest_port"`
}

// FeeConfig exposes the per-unit fee deducted from each position row's pnl
// in the dashboard snapshot (spec.md §9's "fee constant" open question:
// configurable rather than hardcoded).
type FeeConfig struct {
	PerShare float64 `mapstructure:"per_share"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the dashboard WebSocket listener (ws_port) and the
// origin allowlist checked on WebSocket upgrades.
type DashboardConfig struct {
	Port           int      `mapstructure:"ws_port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads config from a YAML file with env var overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ETF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("feed.md_mcast_ip", "239.0.0.1")
	v.SetDefault("feed.md_mcast_port", 12345)
	v.SetDefault("feed.clearing_mcast_ip", "239.0.0.2")
	v.SetDefault("feed.clearing_mcast_port", 12346)
	v.SetDefault("feed.mcast_bind_ip", "127.0.0.1")
	v.SetDefault("rest.rest_port", 5000)
	v.SetDefault("fee.per_share", 0.05)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("dashboard.ws_port", 9002)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Feed.MDMcastIP == "" {
		return fmt.Errorf("feed.md_mcast_ip is required")
	}
	if c.Feed.ClearingMcastIP == "" {
		return fmt.Errorf("feed.clearing_mcast_ip is required")
	}
	if c.Feed.BindIP == "" {
		return fmt.Errorf("feed.mcast_bind_ip is required")
	}
	if c.REST.Port <= 0 {
		return fmt.Errorf("rest.rest_port must be > 0")
	}
	if c.Dashboard.Port <= 0 {
		return fmt.Errorf("dashboard.ws_port must be > 0")
	}
	if c.Fee.PerShare < 0 {
		return fmt.Errorf("fee.per_share must be >= 0")
	}
	return nil
}
