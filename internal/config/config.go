package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Cache     CacheConfig     `yaml:"cache"`
	Weather   WeatherConfig   `yaml:"weather"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig is optional. With no host, plans can only come from files.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type ScheduleConfig struct {
	CSVPath    string `yaml:"csv_path"`
	XLSXPath   string `yaml:"xlsx_path"`
	Sheet      string `yaml:"sheet"`
	Week1Start string `yaml:"week1_start"` // YYYY-MM-DD
}

// Durable cache backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendNone     = "none"
)

type CacheConfig struct {
	MaxSize    int         `yaml:"max_size"`
	Backend    string      `yaml:"backend"`
	SQLitePath string      `yaml:"sqlite_path"`
	Schedule   EntryConfig `yaml:"schedule"`
	Weather    EntryConfig `yaml:"weather"`
}

// EntryConfig is the lifetime of one kind of cached data.
type EntryConfig struct {
	TTL                  time.Duration `yaml:"ttl"`
	StaleWhileRevalidate time.Duration `yaml:"stale_while_revalidate"`
}

// WeatherConfig sets the upstream weather API. An empty BaseURL disables
// weather lookups. Warmup locations are prefetched at startup.
type WeatherConfig struct {
	BaseURL string     `yaml:"base_url"`
	APIKey  string     `yaml:"api_key"`
	Warmup  []Location `yaml:"warmup"`
}

type Location struct {
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Week1 parses Schedule.Week1Start. A zero time means the built-in default.
func (s ScheduleConfig) Week1() (time.Time, error) {
	if s.Week1Start == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, s.Week1Start)
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix SUMMIT_ and underscore-separated paths:
//
//	SUMMIT_SERVER_HOST, SUMMIT_SERVER_PORT,
//	SUMMIT_DB_HOST, SUMMIT_DB_PORT, SUMMIT_DB_NAME,
//	SUMMIT_DB_USER, SUMMIT_DB_PASSWORD, SUMMIT_DB_SSLMODE,
//	SUMMIT_AUTH_API_KEY, SUMMIT_TAILSCALE_ENABLED,
//	SUMMIT_SCHEDULE_CSV_PATH, SUMMIT_SCHEDULE_XLSX_PATH,
//	SUMMIT_CACHE_BACKEND, SUMMIT_CACHE_SQLITE_PATH,
//	SUMMIT_WEATHER_BASE_URL, SUMMIT_WEATHER_API_KEY
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Tailscale: TailscaleConfig{Hostname: "summit", StateDir: "tsnet-state"},
		Schedule:  ScheduleConfig{CSVPath: "data/training-plan.csv"},
		Cache: CacheConfig{
			MaxSize:    100,
			Backend:    BackendSQLite,
			SQLitePath: "data/cache.db",
			Schedule:   EntryConfig{TTL: time.Hour, StaleWhileRevalidate: 10 * time.Minute},
			Weather:    EntryConfig{TTL: 5 * time.Minute, StaleWhileRevalidate: 2 * time.Minute},
		},
		Weather: WeatherConfig{BaseURL: "https://api.open-meteo.com/v1/forecast"},
	}
}

func applyEnvOverrides(cfg *Config) {
	str := map[string]*string{
		"SUMMIT_SERVER_HOST":        &cfg.Server.Host,
		"SUMMIT_DB_HOST":            &cfg.Database.Host,
		"SUMMIT_DB_NAME":            &cfg.Database.Name,
		"SUMMIT_DB_USER":            &cfg.Database.User,
		"SUMMIT_DB_PASSWORD":        &cfg.Database.Password,
		"SUMMIT_DB_SSLMODE":         &cfg.Database.SSLMode,
		"SUMMIT_AUTH_API_KEY":       &cfg.Auth.APIKey,
		"SUMMIT_SCHEDULE_CSV_PATH":  &cfg.Schedule.CSVPath,
		"SUMMIT_SCHEDULE_XLSX_PATH": &cfg.Schedule.XLSXPath,
		"SUMMIT_CACHE_BACKEND":      &cfg.Cache.Backend,
		"SUMMIT_CACHE_SQLITE_PATH":  &cfg.Cache.SQLitePath,
		"SUMMIT_WEATHER_BASE_URL":   &cfg.Weather.BaseURL,
		"SUMMIT_WEATHER_API_KEY":    &cfg.Weather.APIKey,
	}
	for env, dst := range str {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("SUMMIT_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SUMMIT_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("SUMMIT_TAILSCALE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = b
		}
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("server.port is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if c.Database.Enabled() {
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	}
	if _, err := c.Schedule.Week1(); err != nil {
		return fmt.Errorf("schedule.week1_start: %w", err)
	}
	switch c.Cache.Backend {
	case BackendSQLite:
		if c.Cache.SQLitePath == "" {
			return fmt.Errorf("cache.sqlite_path is required for the sqlite backend")
		}
	case BackendPostgres:
		if !c.Database.Enabled() {
			return fmt.Errorf("cache.backend postgres requires a database")
		}
	case BackendNone:
	default:
		return fmt.Errorf("cache.backend %q: want sqlite, postgres or none", c.Cache.Backend)
	}
	if c.Cache.Schedule.TTL <= 0 || c.Cache.Weather.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive")
	}
	for _, l := range c.Weather.Warmup {
		if l.Lat < -90 || l.Lat > 90 || l.Lon < -180 || l.Lon > 180 {
			return fmt.Errorf("weather.warmup %q: coordinates out of range", l.Name)
		}
	}
	return nil
}
