// Package cache holds the in-memory forecast, current-conditions, geocoding
// and forecast-text caches.
package cache

import (
	"sync"
	"time"

	"github.com/lox/weatherpwa/internal/metrics"
	"github.com/lox/weatherpwa/internal/models"
)

const (
	DefaultCurrentTTL      = 10 * time.Minute
	DefaultGeocodeTTL      = 24 * time.Hour
	DefaultForecastTextTTL = time.Hour
)

type TTLs struct {
	Current      time.Duration
	Geocode      time.Duration
	ForecastText time.Duration
}

type stamped[T any] struct {
	value T
	at    time.Time
}

// Cache is safe for concurrent use. Forecasts have no TTL; the scheduler
// replaces them.
type Cache struct {
	mu   sync.Mutex
	ttls TTLs
	now  func() time.Time

	forecast     map[string]stamped[*models.WeatherData]
	forecastText map[string]time.Time
	current      map[string]stamped[*models.CurrentConditions]
	geocode      map[string]stamped[[]models.Location]
}

func New(ttls TTLs) *Cache {
	if ttls.Current <= 0 {
		ttls.Current = DefaultCurrentTTL
	}
	if ttls.Geocode <= 0 {
		ttls.Geocode = DefaultGeocodeTTL
	}
	if ttls.ForecastText <= 0 {
		ttls.ForecastText = DefaultForecastTextTTL
	}
	return &Cache{
		ttls:         ttls,
		now:          time.Now,
		forecast:     make(map[string]stamped[*models.WeatherData]),
		forecastText: make(map[string]time.Time),
		current:      make(map[string]stamped[*models.CurrentConditions]),
		geocode:      make(map[string]stamped[[]models.Location]),
	}
}

// TTLs returns the effective TTLs.
func (c *Cache) TTLs() TTLs {
	return c.ttls
}

func (c *Cache) GetForecast(key string) *models.WeatherData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.forecast[key].value
}

// SetForecast stores wd, which also counts as a forecast-text refresh.
func (c *Cache) SetForecast(key string, wd *models.WeatherData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.forecast[key] = stamped[*models.WeatherData]{value: wd, at: now}
	c.forecastText[key] = now
}

// ForecastTextAge is the time since the forecast text for key was last
// refreshed.
func (c *Cache) ForecastTextAge(key string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts, ok := c.forecastText[key]
	if !ok {
		return 0, false
	}
	return c.now().Sub(ts), true
}

// ForecastTextStale reports whether the forecast text for key is missing or
// older than its TTL.
func (c *Cache) ForecastTextStale(key string) bool {
	age, ok := c.ForecastTextAge(key)
	return !ok || age >= c.ttls.ForecastText
}

// UpdateForecastText swaps in new forecast text on the cached forecast. The
// cached value is replaced, not mutated, so readers holding the previous
// pointer are unaffected.
func (c *Cache) UpdateForecastText(key string, periods []models.ForecastPeriod) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.forecast[key]; ok && entry.value != nil {
		wd := *entry.value
		wd.ForecastText = periods
		entry.value = &wd
		c.forecast[key] = entry
	}
	c.forecastText[key] = c.now()
}

// GetCurrent returns the current conditions for key if still fresh.
func (c *Cache) GetCurrent(key string) *models.CurrentConditions {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.current[key]
	if !ok || c.now().Sub(e.at) >= c.ttls.Current {
		return nil
	}
	return e.value
}

// GetStaleCurrent returns the last current conditions for key regardless
// of age.
func (c *Cache) GetStaleCurrent(key string) *models.CurrentConditions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current[key].value
}

func (c *Cache) SetCurrent(key string, cur *models.CurrentConditions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current[key] = stamped[*models.CurrentConditions]{value: cur, at: c.now()}
}

func (c *Cache) CurrentAge(key string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.current[key]
	if !ok {
		return 0, false
	}
	return c.now().Sub(e.at), true
}

func (c *Cache) GetGeocode(query string) ([]models.Location, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.geocode[query]
	if !ok || c.now().Sub(e.at) >= c.ttls.Geocode {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) SetGeocode(query string, results []models.Location) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.geocode[query] = stamped[[]models.Location]{value: results, at: c.now()}
}

// ClearForecast drops the forecast for key, or all forecasts when key is
// empty.
func (c *Cache) ClearForecast(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if key == "" {
		metrics.CacheInvalidations.WithLabelValues("forecast").Add(float64(len(c.forecast)))
		c.forecast = make(map[string]stamped[*models.WeatherData])
		c.forecastText = make(map[string]time.Time)
		return
	}
	if _, ok := c.forecast[key]; ok {
		metrics.CacheInvalidations.WithLabelValues("forecast").Inc()
	}
	delete(c.forecast, key)
	delete(c.forecastText, key)
}

// ClearCurrent drops current conditions for key, or all when key is empty.
func (c *Cache) ClearCurrent(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if key == "" {
		metrics.CacheInvalidations.WithLabelValues("current").Add(float64(len(c.current)))
		c.current = make(map[string]stamped[*models.CurrentConditions])
		return
	}
	if _, ok := c.current[key]; ok {
		metrics.CacheInvalidations.WithLabelValues("current").Inc()
	}
	delete(c.current, key)
}
