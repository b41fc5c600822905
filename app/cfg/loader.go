package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Remote database configuration
	PostStore  string `long:"post-store" env:"POST_STORE" default:"postgres" choice:"postgres" choice:"memory" description:"Backend serving posts"`
	DBHost     string `long:"db-host" env:"DB_HOST" default:"localhost" description:"Database host"`
	DBPort     string `long:"db-port" env:"DB_PORT" default:"5432" description:"Database port"`
	DBUser     string `long:"db-user" env:"DB_USER" default:"postgres" description:"Database user"`
	DBPassword string `long:"db-password" env:"DB_PASSWORD" default:"postgres" description:"Database password"`
	DBName     string `long:"db-name" env:"DB_NAME" default:"postgres" description:"Database name"`
	DBSSLMode  string `long:"db-sslmode" env:"DB_SSLMODE" default:"require" description:"Database SSL mode (disable, require, verify-full)"`

	// Local storage
	LocalStorePath string `long:"local-store" env:"LOCAL_STORE_PATH" default:"./data/eurosari.db" description:"Path of the local SQLite store used for persisted selections"`

	// Application configuration
	Port               string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl            string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://eurosari.example.com)"`
	GeoLookupURL       string `long:"geo-url" env:"GEO_LOOKUP_URL" default:"https://ipapi.co/json/" description:"IP geolocation endpoint returning a JSON country code"`
	GeoLookupTimeout   int    `long:"geo-timeout" env:"GEO_LOOKUP_TIMEOUT" default:"5" description:"IP geolocation timeout in seconds"`
	DefaultCountry     string `long:"default-country" env:"DEFAULT_COUNTRY" default:"ALL" description:"Country code selected when nothing is persisted and geolocation fails"`
	PageSize           int    `long:"page-size" env:"PAGE_SIZE" default:"10" description:"Number of posts per feed page"`
	SearchDebounce     int    `long:"search-debounce" env:"SEARCH_DEBOUNCE" default:"300" description:"Search debounce window in milliseconds"`
	SessionIdleTimeout int    `long:"session-idle-timeout" env:"SESSION_IDLE_TIMEOUT" default:"30" description:"Minutes before an idle feed session is dropped"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Eurosari/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Europe/Berlin)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	// A missing .env file is the normal case outside local development.
	_ = godotenv.Load()

	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		PostStore:          raw.PostStore,
		DBHost:             raw.DBHost,
		DBPort:             raw.DBPort,
		DBUser:             raw.DBUser,
		DBPassword:         raw.DBPassword,
		DBName:             raw.DBName,
		DBSSLMode:          raw.DBSSLMode,
		LocalStorePath:     raw.LocalStorePath,
		Port:               raw.Port,
		BaseUrl:            raw.BaseUrl,
		GeoLookupURL:       raw.GeoLookupURL,
		GeoLookupTimeout:   raw.GeoLookupTimeout,
		DefaultCountry:     raw.DefaultCountry,
		PageSize:           raw.PageSize,
		SearchDebounce:     raw.SearchDebounce,
		SessionIdleTimeout: raw.SessionIdleTimeout,
		UserAgent:          raw.UserAgent,
		Timezone:           raw.Timezone,
		Debug:              raw.Debug,
		Version:            GetVersion(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func (c *Cfg) validate() error {
	positiveFields := map[string]int{
		"page size":            c.PageSize,
		"geo lookup timeout":   c.GeoLookupTimeout,
		"session idle timeout": c.SessionIdleTimeout,
		"search debounce":      c.SearchDebounce,
	}

	for fieldName, fieldValue := range positiveFields {
		if fieldValue <= 0 {
			return fmt.Errorf("%s must be positive", fieldName)
		}
	}

	return nil
}

func (c *Cfg) GeoTimeout() time.Duration {
	return time.Duration(c.GeoLookupTimeout) * time.Second
}

func (c *Cfg) DebounceWindow() time.Duration {
	return time.Duration(c.SearchDebounce) * time.Millisecond
}

func (c *Cfg) IdleTimeout() time.Duration {
	return time.Duration(c.SessionIdleTimeout) * time.Minute
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
