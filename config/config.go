package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Listen            string        `mapstructure:"listen"`
	CORSOrigins       []string      `mapstructure:"cors_origins"`
	PingTimeout       time.Duration `mapstructure:"ping_timeout"`
	PingInterval      time.Duration `mapstructure:"ping_interval"`
	MaxHttpBufferSize int64         `mapstructure:"max_http_buffer_size"`
	RoomCleanupDelay  time.Duration `mapstructure:"room_cleanup_delay"`
	DefaultLanguage   string        `mapstructure:"default_language"`
	StorageType       string        `mapstructure:"storage_type"`
	DataSourceName    string        `mapstructure:"data_source_name"`
	LogLevel          string        `mapstructure:"log_level"`
	LogFormat         string        `mapstructure:"log_format"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// New returns a viper instance with every default set and environment
// variables bound (LISTEN, CORS_ORIGINS, ROOM_CLEANUP_DELAY, ...).
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("listen", ":3001")
	v.SetDefault("cors_origins", "*")
	v.SetDefault("ping_timeout", "60s")
	v.SetDefault("ping_interval", "25s")
	v.SetDefault("max_http_buffer_size", 1000000)
	v.SetDefault("room_cleanup_delay", "10s")
	v.SetDefault("default_language", "javascript")
	v.SetDefault("storage_type", "memory")
	v.SetDefault("data_source_name", "livecodeshare.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("shutdown_timeout", "10s")

	v.AutomaticEnv()
	return v
}

// LoadDotenv loads a local .env file when one exists.
func LoadDotenv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		logrus.Debug("No .env file found")
	}
}

// Load decodes v into a Config. PORT, when set, wins over LISTEN so the
// server runs unchanged on hosts that only hand out a port.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if port := v.GetString("port"); port != "" {
		cfg.Listen = ":" + strings.TrimPrefix(port, ":")
	}
	cfg.CORSOrigins = splitCSV(v.GetString("cors_origins"))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.PingInterval <= 0 || c.PingTimeout <= 0 {
		return fmt.Errorf("ping interval and timeout must be positive")
	}
	if c.MaxHttpBufferSize <= 0 {
		return fmt.Errorf("max http buffer size must be positive, got %d", c.MaxHttpBufferSize)
	}
	if c.RoomCleanupDelay <= 0 {
		return fmt.Errorf("room cleanup delay must be positive, got %s", c.RoomCleanupDelay)
	}
	switch c.StorageType {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown storage type %q", c.StorageType)
	}
	return nil
}

// AllowAllOrigins reports whether CORS is open to any origin.
func (c *Config) AllowAllOrigins() bool {
	for _, o := range c.CORSOrigins {
		if o == "*" {
			return true
		}
	}
	return len(c.CORSOrigins) == 0
}

// splitCSV trims and filters a comma-separated list
func splitCSV(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
