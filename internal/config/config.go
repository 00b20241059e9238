// Package config loads runtime configuration from defaults, an optional
// YAML file, a .env file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lox/weatherpwa/internal/cache"
	"github.com/lox/weatherpwa/internal/compare"
	"github.com/lox/weatherpwa/internal/ingest"
	"github.com/lox/weatherpwa/internal/providers/nws"
	"github.com/lox/weatherpwa/internal/providers/openmeteo"
	"github.com/lox/weatherpwa/internal/providers/usno"
)

const DefaultPath = "weatherpwa.yaml"

type Config struct {
	Port        string         `yaml:"port"`
	DBPath      string         `yaml:"db"`
	Timezone    string         `yaml:"timezone"`
	HistoryDays int            `yaml:"historyDays"`
	Schedule    ScheduleConfig `yaml:"schedule"`
	Cache       CacheConfig    `yaml:"cache"`
	Compare     CompareConfig  `yaml:"compare"`
	OpenMeteo   OpenMeteo      `yaml:"openMeteo"`
	NWS         NWS            `yaml:"nws"`
	USNO        USNO           `yaml:"usno"`
}

// ScheduleConfig holds the daily refresh times as HH:MM in Timezone.
type ScheduleConfig struct {
	Morning string `yaml:"morning"`
	Evening string `yaml:"evening"`
}

type CacheConfig struct {
	CurrentTTL      time.Duration `yaml:"currentTtl"`
	GeocodeTTL      time.Duration `yaml:"geocodeTtl"`
	ForecastTextTTL time.Duration `yaml:"forecastTextTtl"`
}

type CompareConfig struct {
	FetchTimeout time.Duration `yaml:"fetchTimeout"`
}

type OpenMeteo struct {
	ForecastURL    string        `yaml:"forecastUrl"`
	AirQualityURL  string        `yaml:"airQualityUrl"`
	GeocodingURL   string        `yaml:"geocodingUrl"`
	ArchiveURL     string        `yaml:"archiveUrl"`
	Timeout        time.Duration `yaml:"timeout"`
	ArchiveTimeout time.Duration `yaml:"archiveTimeout"`
	Retries        uint64        `yaml:"retries"`
}

type NWS struct {
	BaseURL   string        `yaml:"baseUrl"`
	UserAgent string        `yaml:"userAgent"`
	Timeout   time.Duration `yaml:"timeout"`
}

type USNO struct {
	BaseURL string        `yaml:"baseUrl"`
	Timeout time.Duration `yaml:"timeout"`
}

func Default() *Config {
	return &Config{
		Port:        "5051",
		DBPath:      "data/weatherpwa.db",
		Timezone:    "America/Chicago",
		HistoryDays: ingest.DefaultHistoryDays,
		Schedule:    ScheduleConfig{Morning: "05:00", Evening: "17:00"},
		Cache: CacheConfig{
			CurrentTTL:      cache.DefaultCurrentTTL,
			GeocodeTTL:      cache.DefaultGeocodeTTL,
			ForecastTextTTL: cache.DefaultForecastTextTTL,
		},
		Compare: CompareConfig{FetchTimeout: compare.DefaultFetchTimeout},
		OpenMeteo: OpenMeteo{
			ForecastURL:    openmeteo.DefaultForecastURL,
			AirQualityURL:  openmeteo.DefaultAirQualityURL,
			GeocodingURL:   openmeteo.DefaultGeocodingURL,
			ArchiveURL:     openmeteo.DefaultArchiveURL,
			Timeout:        15 * time.Second,
			ArchiveTimeout: 30 * time.Second,
			Retries:        3,
		},
		NWS: NWS{
			BaseURL:   nws.DefaultBaseURL,
			UserAgent: nws.DefaultUserAgent,
			Timeout:   10 * time.Second,
		},
		USNO: USNO{
			BaseURL: usno.DefaultBaseURL,
			Timeout: 10 * time.Second,
		},
	}
}

// Load builds the configuration. An explicit path must exist; with an empty
// path DefaultPath is read only if present.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat(DefaultPath); err == nil {
		if err := hydrateFromFile(cfg, DefaultPath); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: load .env: %v", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = d
		}
		return nil
	}

	str("PORT", &cfg.Port)
	str("WEATHER_DB", &cfg.DBPath)
	str("WEATHER_TZ", &cfg.Timezone)
	str("SCHEDULE_MORNING", &cfg.Schedule.Morning)
	str("SCHEDULE_EVENING", &cfg.Schedule.Evening)
	str("NWS_USER_AGENT", &cfg.NWS.UserAgent)
	str("NWS_BASE_URL", &cfg.NWS.BaseURL)
	str("OPEN_METEO_FORECAST_URL", &cfg.OpenMeteo.ForecastURL)
	str("OPEN_METEO_ARCHIVE_URL", &cfg.OpenMeteo.ArchiveURL)
	str("USNO_BASE_URL", &cfg.USNO.BaseURL)

	if v := os.Getenv("HISTORY_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid HISTORY_DAYS: %w", err)
		}
		cfg.HistoryDays = n
	}
	if v := os.Getenv("OPEN_METEO_RETRIES"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid OPEN_METEO_RETRIES: %w", err)
		}
		cfg.OpenMeteo.Retries = n
	}

	for key, dst := range map[string]*time.Duration{
		"CURRENT_TTL":           &cfg.Cache.CurrentTTL,
		"GEOCODE_TTL":           &cfg.Cache.GeocodeTTL,
		"FORECAST_TEXT_TTL":     &cfg.Cache.ForecastTextTTL,
		"COMPARE_FETCH_TIMEOUT": &cfg.Compare.FetchTimeout,
	} {
		if err := dur(key, dst); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db path is required"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	for name, v := range map[string]string{"morning": c.Schedule.Morning, "evening": c.Schedule.Evening} {
		if _, err := time.Parse("15:04", v); err != nil {
			errs = append(errs, fmt.Errorf("schedule.%s %q: want HH:MM", name, v))
		}
	}
	if c.HistoryDays <= 0 {
		errs = append(errs, errors.New("historyDays must be positive"))
	}
	for name, d := range map[string]time.Duration{
		"cache.currentTtl":         c.Cache.CurrentTTL,
		"cache.geocodeTtl":         c.Cache.GeocodeTTL,
		"cache.forecastTextTtl":    c.Cache.ForecastTextTTL,
		"compare.fetchTimeout":     c.Compare.FetchTimeout,
		"openMeteo.timeout":        c.OpenMeteo.Timeout,
		"openMeteo.archiveTimeout": c.OpenMeteo.ArchiveTimeout,
		"nws.timeout":              c.NWS.Timeout,
		"usno.timeout":             c.USNO.Timeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	return errors.Join(errs...)
}

// Location returns the configured scheduling timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
