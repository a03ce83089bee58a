package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	NATS          NATSConfig          `mapstructure:"nats"`
	Valkey        ValkeyConfig        `mapstructure:"valkey"`
	Telemetry     TelemetryConfig     `mapstructure:"telemetry"`
	Accessibility AccessibilityConfig `mapstructure:"accessibility"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// AccessibilityConfig tunes the proximity index and its refresh cadence.
type AccessibilityConfig struct {
	CellSizeMeters     float64   `mapstructure:"cell_size_meters"`
	MaxRings           int       `mapstructure:"max_rings"`
	MaxK               int       `mapstructure:"max_k"`
	SummaryRadii       []float64 `mapstructure:"summary_radii"`
	HeatMaxMeters      float64   `mapstructure:"heat_max_meters"`
	HeatmapDefaultSize int       `mapstructure:"heatmap_default_size"`
	RefreshInterval    int       `mapstructure:"refresh_interval"` // seconds
	RefreshDebounce    int       `mapstructure:"refresh_debounce"` // seconds
}

func (a AccessibilityConfig) RefreshIntervalDuration() time.Duration {
	return time.Duration(a.RefreshInterval) * time.Second
}

func (a AccessibilityConfig) RefreshDebounceDuration() time.Duration {
	return time.Duration(a.RefreshDebounce) * time.Second
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "transit")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "stopgrid")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("accessibility.cell_size_meters", 900)
	v.SetDefault("accessibility.max_rings", 24)
	v.SetDefault("accessibility.max_k", 32)
	v.SetDefault("accessibility.summary_radii", []float64{500, 1000, 2000})
	v.SetDefault("accessibility.heat_max_meters", 2000)
	v.SetDefault("accessibility.heatmap_default_size", 24)
	v.SetDefault("accessibility.refresh_interval", 600)
	v.SetDefault("accessibility.refresh_debounce", 2)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: STOPGRID_DATABASE_HOST → database.host
	v.SetEnvPrefix("STOPGRID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Accessibility.CellSizeMeters <= 0 {
		errs = append(errs, fmt.Sprintf("accessibility.cell_size_meters must be positive, got %f", c.Accessibility.CellSizeMeters))
	}
	if c.Accessibility.MaxRings <= 0 {
		errs = append(errs, fmt.Sprintf("accessibility.max_rings must be positive, got %d", c.Accessibility.MaxRings))
	}
	if c.Accessibility.RefreshInterval <= 0 {
		errs = append(errs, "accessibility.refresh_interval must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
