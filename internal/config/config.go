// Package config loads process settings from an optional config file and
// INTAKE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. INTAKE_HTTP_ADDR.
const EnvPrefix = "INTAKE"

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds the process settings.
type Config struct {
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	HTTP struct {
		Addr            string        `mapstructure:"addr"`
		ReadTimeout     time.Duration `mapstructure:"read_timeout"`
		WriteTimeout    time.Duration `mapstructure:"write_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
		UserHeader      string        `mapstructure:"user_header"`
	} `mapstructure:"http"`

	Store struct {
		Driver      string `mapstructure:"driver"`
		SQLitePath  string `mapstructure:"sqlite_path"`
		PostgresURL string `mapstructure:"postgres_url"`
	} `mapstructure:"store"`

	Session struct {
		IdleTimeout time.Duration `mapstructure:"idle_timeout"`
		SaveTimeout time.Duration `mapstructure:"save_timeout"`
	} `mapstructure:"session"`

	Definitions struct {
		Dir string `mapstructure:"dir"`
	} `mapstructure:"definitions"`

	Review struct {
		TemplateDir string `mapstructure:"template_dir"`
	} `mapstructure:"review"`
}

// Load reads path when set, otherwise looks for intake.yaml in the working
// directory and /etc/intake. A missing default file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("intake")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/intake")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 15*time.Second)
	v.SetDefault("http.user_header", "X-User-Name")
	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.sqlite_path", "intake.db")
	v.SetDefault("store.postgres_url", "")
	v.SetDefault("session.idle_timeout", 30*time.Minute)
	v.SetDefault("session.save_timeout", 10*time.Second)
	v.SetDefault("definitions.dir", "")
	v.SetDefault("review.template_dir", "")
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if strings.TrimSpace(c.Store.SQLitePath) == "" {
			return errors.New("config: store.sqlite_path is required for the sqlite driver")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Store.PostgresURL) == "" {
			return errors.New("config: store.postgres_url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Session.IdleTimeout <= 0 {
		return errors.New("config: session.idle_timeout must be positive")
	}
	if strings.TrimSpace(c.HTTP.UserHeader) == "" {
		return errors.New("config: http.user_header must be set")
	}
	return nil
}
