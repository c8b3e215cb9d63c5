// Package config loads server and CLI settings from yaml, .env and TILA_* variables
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"tila/pkg/database"
	"tila/pkg/logger"
)

// Config is the root configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Logging      logger.Config      `mapstructure:"logging"`
	Gamification GamificationConfig `mapstructure:"gamification"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	HTTPPort        int           `mapstructure:"http_port"`
	Mode            string        `mapstructure:"mode"` // gin mode: debug, release, test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// DatabaseConfig selects the store. Driver is postgres or sqlite.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timeout         time.Duration `mapstructure:"timeout"`
	ConnectRetries  int           `mapstructure:"connect_retries"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
}

type RedisConfig struct {
	URL      string        `mapstructure:"url"` // empty disables the progress cache
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type GamificationConfig struct {
	Timezone       string        `mapstructure:"timezone"`
	CatalogPath    string        `mapstructure:"catalog_path"` // empty uses the embedded catalog
	RescanInterval time.Duration `mapstructure:"rescan_interval"`
	RescanRate     float64       `mapstructure:"rescan_rate"` // users per second
	ActivityDays   int           `mapstructure:"activity_days"`
}

// Location resolves the timezone used for calendar-day streak math
func (g GamificationConfig) Location() (*time.Location, error) {
	if strings.TrimSpace(g.Timezone) == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid gamification.timezone %q: %w", g.Timezone, err)
	}
	return loc, nil
}

// Postgres converts the section into the database package config
func (d DatabaseConfig) Postgres() database.Config {
	return database.Config{
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		Database:        d.Name,
		SSLMode:         d.SSLMode,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
		Timeout:         d.Timeout,
		ConnectRetries:  d.ConnectRetries,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "tila")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "tila")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.conn_max_idle_time", 2*time.Minute)
	v.SetDefault("database.timeout", 5*time.Second)
	v.SetDefault("database.connect_retries", 5)
	v.SetDefault("database.sqlite_path", "tila.db")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.cache_ttl", 5*time.Minute)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "tila")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.time_format", "")

	v.SetDefault("gamification.timezone", "UTC")
	v.SetDefault("gamification.catalog_path", "")
	v.SetDefault("gamification.rescan_interval", time.Duration(0))
	v.SetDefault("gamification.rescan_rate", 20.0)
	v.SetDefault("gamification.activity_days", 30)
}

// Load reads configuration. path may be empty, in which case configs/<APP_ENV>.yaml is tried.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TILA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		env := os.Getenv("APP_ENV")
		if env == "" {
			env = "development"
		}
		v.SetConfigName(env)
		v.SetConfigType("yaml")
		v.AddConfigPath("configs")
		v.AddConfigPath("../configs")
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints viper cannot express
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database.driver %q (want postgres or sqlite)", c.Database.Driver)
	}
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid server.http_port %d", c.Server.HTTPPort)
	}
	if c.Gamification.RescanRate < 0 {
		return fmt.Errorf("gamification.rescan_rate must not be negative")
	}
	if _, err := c.Gamification.Location(); err != nil {
		return err
	}
	return nil
}

// Addr is the HTTP listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.HTTPPort)
}
