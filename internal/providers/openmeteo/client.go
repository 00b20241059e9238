// Package openmeteo is a client for the Open-Meteo forecast, air quality,
// geocoding and archive APIs.
package openmeteo

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lox/weatherpwa/internal/httputil"
	"github.com/lox/weatherpwa/internal/models"
)

const (
	DefaultForecastURL   = "https://api.open-meteo.com/v1/forecast"
	DefaultAirQualityURL = "https://air-quality-api.open-meteo.com/v1/air-quality"
	DefaultGeocodingURL  = "https://geocoding-api.open-meteo.com/v1/search"
	DefaultArchiveURL    = "https://archive-api.open-meteo.com/v1/archive"

	forecastDays  = 14
	forecastHours = 72
	searchResults = 5
)

var (
	currentFields = []string{
		"temperature_2m", "apparent_temperature", "relative_humidity_2m",
		"wind_speed_10m", "wind_direction_10m", "precipitation",
		"weather_code", "is_day", "uv_index", "visibility", "cloud_cover",
	}
	hourlyFields = []string{
		"temperature_2m", "apparent_temperature", "precipitation_probability",
		"precipitation", "weather_code", "wind_speed_10m", "wind_direction_10m",
		"relative_humidity_2m", "uv_index", "is_day", "cloud_cover",
	}
	dailyFields = []string{
		"temperature_2m_max", "temperature_2m_min", "weather_code",
		"precipitation_sum", "precipitation_probability_max",
		"sunrise", "sunset", "uv_index_max", "wind_speed_10m_max",
	}
	minutelyFields = []string{"precipitation", "rain", "snowfall"}
	airFields      = []string{
		"us_aqi", "pm10", "pm2_5", "ozone",
		"nitrogen_dioxide", "sulphur_dioxide", "carbon_monoxide",
	}
	archiveFields = []string{
		"temperature_2m_max", "temperature_2m_min", "precipitation_sum",
	}
	archiveExpandedFields = []string{
		"temperature_2m_max", "temperature_2m_min", "precipitation_sum",
		"sunshine_duration", "snowfall_sum", "weather_code", "sunrise", "sunset",
		"apparent_temperature_max",
	}
)

type Config struct {
	ForecastURL    string
	AirQualityURL  string
	GeocodingURL   string
	ArchiveURL     string
	Timeout        time.Duration
	ArchiveTimeout time.Duration
	Retries        uint64
}

// Client talks to Open-Meteo. Forecast-side calls retry with backoff;
// archive calls are made once under their own timeout.
type Client struct {
	cfg     Config
	api     *httputil.Client
	archive *httputil.Client
}

func New(cfg Config) *Client {
	if cfg.ForecastURL == "" {
		cfg.ForecastURL = DefaultForecastURL
	}
	if cfg.AirQualityURL == "" {
		cfg.AirQualityURL = DefaultAirQualityURL
	}
	if cfg.GeocodingURL == "" {
		cfg.GeocodingURL = DefaultGeocodingURL
	}
	if cfg.ArchiveURL == "" {
		cfg.ArchiveURL = DefaultArchiveURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.ArchiveTimeout <= 0 {
		cfg.ArchiveTimeout = 30 * time.Second
	}
	return &Client{
		cfg: cfg,
		api: httputil.New(httputil.Options{
			Provider: "openmeteo",
			Timeout:  cfg.Timeout,
			Retries:  cfg.Retries,
		}),
		archive: httputil.New(httputil.Options{
			Provider: "openmeteo_archive",
			Timeout:  cfg.ArchiveTimeout,
		}),
	}
}

func coordParams(loc models.Location) url.Values {
	v := url.Values{}
	v.Set("latitude", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
	v.Set("longitude", strconv.FormatFloat(loc.Lon, 'f', -1, 64))
	return v
}

func imperial(v url.Values) {
	v.Set("temperature_unit", "fahrenheit")
	v.Set("windspeed_unit", "mph")
	v.Set("precipitation_unit", "inch")
}

// FetchForecast returns the raw forecast document: current conditions,
// 72 hours, 14 days and 15-minute precipitation.
func (c *Client) FetchForecast(ctx context.Context, loc models.Location) (*ForecastResponse, error) {
	v := coordParams(loc)
	v.Set("timezone", loc.TZ())
	imperial(v)
	v.Set("forecast_days", strconv.Itoa(forecastDays))
	v.Set("forecast_hours", strconv.Itoa(forecastHours))
	v.Set("current", strings.Join(currentFields, ","))
	v.Set("hourly", strings.Join(hourlyFields, ","))
	v.Set("daily", strings.Join(dailyFields, ","))
	v.Set("minutely_15", strings.Join(minutelyFields, ","))

	var resp ForecastResponse
	if err := c.api.GetJSON(ctx, "forecast", c.cfg.ForecastURL+"?"+v.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("fetch forecast: %w", err)
	}
	return &resp, nil
}

// FetchCurrent is the lightweight on-demand call: current conditions plus
// today's high and low.
func (c *Client) FetchCurrent(ctx context.Context, loc models.Location) (*models.CurrentConditions, error) {
	v := coordParams(loc)
	v.Set("timezone", loc.TZ())
	imperial(v)
	v.Set("current", strings.Join(currentFields, ","))
	v.Set("daily", "temperature_2m_max,temperature_2m_min")
	v.Set("forecast_days", "1")

	var resp ForecastResponse
	if err := c.api.GetJSON(ctx, "current", c.cfg.ForecastURL+"?"+v.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("fetch current: %w", err)
	}
	return ParseCurrentConditions(&resp, time.Now()), nil
}

func (c *Client) FetchAirQuality(ctx context.Context, loc models.Location) (*AirQualityResponse, error) {
	v := coordParams(loc)
	v.Set("hourly", strings.Join(airFields, ","))

	var resp AirQualityResponse
	if err := c.api.GetJSON(ctx, "air_quality", c.cfg.AirQualityURL+"?"+v.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("fetch air quality: %w", err)
	}
	return &resp, nil
}

// SearchLocations geocodes a free-text query to at most five locations.
func (c *Client) SearchLocations(ctx context.Context, query string) ([]models.Location, error) {
	v := url.Values{}
	v.Set("name", query)
	v.Set("count", strconv.Itoa(searchResults))
	v.Set("language", "en")

	var resp struct {
		Results []struct {
			Name      string  `json:"name"`
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
			Timezone  string  `json:"timezone"`
			Admin1    string  `json:"admin1"`
			Country   string  `json:"country"`
		} `json:"results"`
	}
	if err := c.api.GetJSON(ctx, "geocode", c.cfg.GeocodingURL+"?"+v.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("search locations: %w", err)
	}

	out := make([]models.Location, 0, len(resp.Results))
	for _, r := range resp.Results {
		tz := r.Timezone
		if tz == "" {
			tz = "UTC"
		}
		out = append(out, models.Location{
			Name:     r.Name,
			Lat:      r.Latitude,
			Lon:      r.Longitude,
			Timezone: tz,
			Region:   r.Admin1,
			Country:  r.Country,
		})
	}
	return out, nil
}

func (c *Client) fetchArchive(ctx context.Context, endpoint string, loc models.Location, start, end string, fields []string) (*archiveDaily, error) {
	v := coordParams(loc)
	v.Set("start_date", start)
	v.Set("end_date", end)
	v.Set("daily", strings.Join(fields, ","))
	v.Set("temperature_unit", "fahrenheit")
	v.Set("precipitation_unit", "inch")
	v.Set("timezone", loc.TZ())

	var resp struct {
		Daily archiveDaily `json:"daily"`
	}
	if err := c.archive.GetJSON(ctx, endpoint, c.cfg.ArchiveURL+"?"+v.Encode(), &resp); err != nil {
		return nil, err
	}
	return &resp.Daily, nil
}

// FetchHistorical returns high, low and precipitation per day for the
// short rolling history.
func (c *Client) FetchHistorical(ctx context.Context, loc models.Location, start, end string) ([]models.HistoryRecord, error) {
	d, err := c.fetchArchive(ctx, "archive", loc, start, end, archiveFields)
	if err != nil {
		return nil, fmt.Errorf("fetch historical: %w", err)
	}
	out := make([]models.HistoryRecord, 0, len(d.Time))
	for i, date := range d.Time {
		out = append(out, models.HistoryRecord{
			Date:   date,
			High:   index(d.TempMax, i),
			Low:    index(d.TempMin, i),
			Precip: index(d.PrecipSum, i),
		})
	}
	return out, nil
}

// FetchHistoricalExpanded returns the full daily record used by comparisons.
func (c *Client) FetchHistoricalExpanded(ctx context.Context, loc models.Location, start, end string) ([]models.DailyRecord, error) {
	d, err := c.fetchArchive(ctx, "archive_expanded", loc, start, end, archiveExpandedFields)
	if err != nil {
		return nil, fmt.Errorf("fetch historical expanded: %w", err)
	}
	out := make([]models.DailyRecord, 0, len(d.Time))
	for i, date := range d.Time {
		rec := models.DailyRecord{
			Date:         date,
			High:         index(d.TempMax, i),
			Low:          index(d.TempMin, i),
			Precip:       index(d.PrecipSum, i),
			SunshineSec:  index(d.SunshineDuration, i),
			Snowfall:     index(d.SnowfallSum, i),
			Sunrise:      index(d.Sunrise, i),
			Sunset:       index(d.Sunset, i),
			ApparentHigh: index(d.ApparentMax, i),
		}
		if code := index(d.WeatherCode, i); code != nil {
			rec.WeatherCode = intPtr(*code)
		}
		out = append(out, rec)
	}
	return out, nil
}
