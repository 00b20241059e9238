// Package nws is a client for the US National Weather Service API: alerts,
// text forecasts, station observations and gridpoint forecasts, plus the
// overlay of those onto an Open-Meteo view.
package nws

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lox/weatherpwa/internal/httputil"
	"github.com/lox/weatherpwa/internal/models"
	"github.com/lox/weatherpwa/internal/wmo"
)

const (
	DefaultBaseURL   = "https://api.weather.gov"
	DefaultUserAgent = "weatherpwa (personal use)"
)

type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Points are the per-gridpoint endpoints returned by /points. StationID is
// filled lazily from ObservationStations.
type Points struct {
	Forecast            string
	ForecastHourly      string
	ObservationStations string
	StationID           string
}

type Client struct {
	baseURL string
	http    *httputil.Client

	mu sync.Mutex
	// a nil value records a non-US location
	points map[string]*Points
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: httputil.New(httputil.Options{
			Provider: "nws",
			Timeout:  cfg.Timeout,
			Headers: map[string]string{
				"User-Agent": cfg.UserAgent,
				"Accept":     "application/geo+json",
			},
		}),
		points: make(map[string]*Points),
	}
}

func pointKey(lat, lon float64) string {
	return models.Coordinates{Lat: lat, Lon: lon}.Key()
}

// resolvePoints returns nil, nil for locations outside NWS coverage.
func (c *Client) resolvePoints(ctx context.Context, lat, lon float64) (*Points, error) {
	key := pointKey(lat, lon)
	c.mu.Lock()
	p, ok := c.points[key]
	c.mu.Unlock()
	if ok {
		return p, nil
	}

	var resp struct {
		Properties struct {
			Forecast            string `json:"forecast"`
			ForecastHourly      string `json:"forecastHourly"`
			ObservationStations string `json:"observationStations"`
		} `json:"properties"`
	}
	err := c.http.GetJSON(ctx, "points", c.baseURL+"/points/"+key, &resp)
	if errors.Is(err, httputil.ErrNotFound) {
		c.mu.Lock()
		c.points[key] = nil
		c.mu.Unlock()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve points %s: %w", key, err)
	}

	p = &Points{
		Forecast:            resp.Properties.Forecast,
		ForecastHourly:      resp.Properties.ForecastHourly,
		ObservationStations: resp.Properties.ObservationStations,
	}
	c.mu.Lock()
	c.points[key] = p
	c.mu.Unlock()
	return p, nil
}

func (c *Client) stationID(ctx context.Context, p *Points) (string, error) {
	c.mu.Lock()
	id := p.StationID
	c.mu.Unlock()
	if id != "" {
		return id, nil
	}

	var resp struct {
		Features []struct {
			Properties struct {
				StationIdentifier string `json:"stationIdentifier"`
			} `json:"properties"`
		} `json:"features"`
	}
	if err := c.http.GetJSON(ctx, "stations", p.ObservationStations, &resp); err != nil {
		return "", fmt.Errorf("list stations: %w", err)
	}
	if len(resp.Features) == 0 || resp.Features[0].Properties.StationIdentifier == "" {
		return "", nil
	}
	id = resp.Features[0].Properties.StationIdentifier
	c.mu.Lock()
	p.StationID = id
	c.mu.Unlock()
	return id, nil
}

// FetchAlerts returns active alerts for a point. Non-US points have none.
func (c *Client) FetchAlerts(ctx context.Context, lat, lon float64) ([]models.Alert, error) {
	v := url.Values{}
	v.Set("point", pointKey(lat, lon))

	var resp struct {
		Features []struct {
			Properties struct {
				Event       string `json:"event"`
				Severity    string `json:"severity"`
				Headline    string `json:"headline"`
				Description string `json:"description"`
				Instruction string `json:"instruction"`
				Onset       string `json:"onset"`
				Expires     string `json:"expires"`
			} `json:"properties"`
		} `json:"features"`
	}
	err := c.http.GetJSON(ctx, "alerts", c.baseURL+"/alerts/active?"+v.Encode(), &resp)
	if errors.Is(err, httputil.ErrNotFound) {
		return []models.Alert{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch alerts: %w", err)
	}

	alerts := make([]models.Alert, 0, len(resp.Features))
	for _, f := range resp.Features {
		p := f.Properties
		alerts = append(alerts, models.Alert{
			Event:       p.Event,
			Severity:    p.Severity,
			Headline:    p.Headline,
			Description: p.Description,
			Instruction: p.Instruction,
			Onset:       p.Onset,
			Expires:     p.Expires,
		})
	}
	return alerts, nil
}

type quantity struct {
	Value *float64 `json:"value"`
}

type period struct {
	Name                       string    `json:"name"`
	StartTime                  string    `json:"startTime"`
	IsDaytime                  *bool     `json:"isDaytime"`
	Temperature                *float64  `json:"temperature"`
	WindSpeed                  string    `json:"windSpeed"`
	WindDirection              string    `json:"windDirection"`
	ShortForecast              string    `json:"shortForecast"`
	DetailedForecast           string    `json:"detailedForecast"`
	ProbabilityOfPrecipitation *quantity `json:"probabilityOfPrecipitation"`
	RelativeHumidity           *quantity `json:"relativeHumidity"`
}

func (p period) daytime() bool {
	return p.IsDaytime == nil || *p.IsDaytime
}

func (c *Client) fetchPeriods(ctx context.Context, endpoint, u string) ([]period, error) {
	var resp struct {
		Properties struct {
			Periods []period `json:"periods"`
		} `json:"properties"`
	}
	if err := c.http.GetJSON(ctx, endpoint, u, &resp); err != nil {
		return nil, err
	}
	return resp.Properties.Periods, nil
}

// FetchForecastText returns the named text forecast periods. Non-US points
// return nil.
func (c *Client) FetchForecastText(ctx context.Context, lat, lon float64) ([]models.ForecastPeriod, error) {
	p, err := c.resolvePoints(ctx, lat, lon)
	if err != nil || p == nil || p.Forecast == "" {
		return nil, err
	}
	periods, err := c.fetchPeriods(ctx, "forecast", p.Forecast)
	if errors.Is(err, httputil.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch forecast text: %w", err)
	}

	out := make([]models.ForecastPeriod, 0, len(periods))
	for _, pr := range periods {
		out = append(out, models.ForecastPeriod{
			Name:      pr.Name,
			Short:     pr.ShortForecast,
			Detailed:  pr.DetailedForecast,
			IsDaytime: pr.daytime(),
		})
	}
	return out, nil
}

// Observation is the latest station report, converted to °F and mph.
// Fields the station did not report are nil or empty.
type Observation struct {
	Temperature   *float64
	Humidity      *float64
	WindSpeed     *float64
	WindDirection string
	Visibility    *float64
	Desc          string
	Icon          string
	IsDay         bool
}

// FetchObservation returns the latest observation from the nearest station,
// or nil when there is none.
func (c *Client) FetchObservation(ctx context.Context, lat, lon float64) (*Observation, error) {
	p, err := c.resolvePoints(ctx, lat, lon)
	if err != nil || p == nil || p.ObservationStations == "" {
		return nil, err
	}
	id, err := c.stationID(ctx, p)
	if err != nil || id == "" {
		return nil, err
	}

	var resp struct {
		Properties struct {
			Temperature      *quantity `json:"temperature"`
			RelativeHumidity *quantity `json:"relativeHumidity"`
			WindSpeed        *quantity `json:"windSpeed"`
			WindDirection    *quantity `json:"windDirection"`
			Visibility       *quantity `json:"visibility"`
			TextDescription  string    `json:"textDescription"`
			Icon             string    `json:"icon"`
		} `json:"properties"`
	}
	u := c.baseURL + "/stations/" + url.PathEscape(id) + "/observations/latest"
	if err := c.http.GetJSON(ctx, "observation", u, &resp); err != nil {
		return nil, fmt.Errorf("fetch observation %s: %w", id, err)
	}
	props := resp.Properties

	obs := &Observation{IsDay: true}
	if props.Icon != "" {
		obs.IsDay = strings.Contains(props.Icon, "/day/")
	}
	if v := value(props.Temperature); v != nil {
		obs.Temperature = ptr(round1(*v*9/5 + 32))
	}
	if v := value(props.RelativeHumidity); v != nil {
		obs.Humidity = ptr(math.Round(*v))
	}
	if v := value(props.WindSpeed); v != nil {
		obs.WindSpeed = ptr(round1(*v * 0.621371))
	}
	if v := value(props.WindDirection); v != nil {
		obs.WindDirection = wmo.Compass(v)
	}
	if v := value(props.Visibility); v != nil {
		obs.Visibility = ptr(math.Round(*v))
	}
	if props.TextDescription != "" {
		obs.Desc = props.TextDescription
		obs.Icon = DescToIcon(props.TextDescription, obs.IsDay)
	}
	return obs, nil
}

// HourlyPeriod is one hour of the gridpoint forecast, keyed by
// YYYY-MM-DDTHH for matching against Open-Meteo hours.
type HourlyPeriod struct {
	TimeKey       string
	Temperature   *float64
	WindSpeed     float64
	WindDirection string
	PrecipProb    float64
	Humidity      *float64
	Desc          string
	Icon          string
	IsDay         bool
}

func (c *Client) FetchHourly(ctx context.Context, lat, lon float64) ([]HourlyPeriod, error) {
	p, err := c.resolvePoints(ctx, lat, lon)
	if err != nil || p == nil || p.ForecastHourly == "" {
		return nil, err
	}
	periods, err := c.fetchPeriods(ctx, "forecast_hourly", p.ForecastHourly)
	if err != nil {
		return nil, fmt.Errorf("fetch hourly: %w", err)
	}

	out := make([]HourlyPeriod, 0, len(periods))
	for _, pr := range periods {
		isDay := pr.daytime()
		h := HourlyPeriod{
			TimeKey:       HourKey(pr.StartTime),
			Temperature:   pr.Temperature,
			WindSpeed:     ParseWind(pr.WindSpeed),
			WindDirection: pr.WindDirection,
			Humidity:      value(pr.RelativeHumidity),
			Desc:          pr.ShortForecast,
			Icon:          DescToIcon(pr.ShortForecast, isDay),
			IsDay:         isDay,
		}
		if v := value(pr.ProbabilityOfPrecipitation); v != nil {
			h.PrecipProb = *v
		}
		out = append(out, h)
	}
	return out, nil
}

// DailyPeriod pairs the day and night periods sharing a date.
type DailyPeriod struct {
	Date          string
	TempMax       *float64
	TempMin       *float64
	Desc          string
	Icon          string
	WindSpeedMax  *float64
	PrecipProbMax *float64
}

func (c *Client) FetchDaily(ctx context.Context, lat, lon float64) ([]DailyPeriod, error) {
	p, err := c.resolvePoints(ctx, lat, lon)
	if err != nil || p == nil || p.Forecast == "" {
		return nil, err
	}
	periods, err := c.fetchPeriods(ctx, "forecast", p.Forecast)
	if err != nil {
		return nil, fmt.Errorf("fetch daily: %w", err)
	}
	return pairDaily(periods), nil
}

func pairDaily(periods []period) []DailyPeriod {
	type dayNight struct{ day, night *period }
	byDate := make(map[string]*dayNight)
	var dates []string
	for i := range periods {
		pr := &periods[i]
		if len(pr.StartTime) < 10 {
			continue
		}
		date := pr.StartTime[:10]
		dn, ok := byDate[date]
		if !ok {
			dn = &dayNight{}
			byDate[date] = dn
			dates = append(dates, date)
		}
		if pr.IsDaytime != nil && *pr.IsDaytime {
			dn.day = pr
		} else {
			dn.night = pr
		}
	}
	sort.Strings(dates)

	out := make([]DailyPeriod, 0, len(dates))
	for _, date := range dates {
		dn := byDate[date]
		d := DailyPeriod{Date: date}
		if dn.day != nil {
			d.TempMax = dn.day.Temperature
			d.Desc = dn.day.ShortForecast
			d.Icon = DescToIcon(dn.day.ShortForecast, true)
			d.WindSpeedMax = ptr(ParseWind(dn.day.WindSpeed))
			d.PrecipProbMax = value(dn.day.ProbabilityOfPrecipitation)
		}
		if dn.night != nil {
			d.TempMin = dn.night.Temperature
			// night-only first day
			if dn.day == nil {
				d.Desc = dn.night.ShortForecast
				d.Icon = DescToIcon(dn.night.ShortForecast, false)
			}
		}
		out = append(out, d)
	}
	return out
}

// HourKey truncates an ISO timestamp to YYYY-MM-DDTHH. It accepts both
// offset-free local and offset timestamps.
func HourKey(ts string) string {
	if len(ts) < 13 {
		return ts
	}
	return ts[:13]
}

var windNumber = regexp.MustCompile(`\d+`)

// ParseWind reads "10 mph" or "10 to 15 mph" as the largest (last) number.
func ParseWind(s string) float64 {
	nums := windNumber.FindAllString(s, -1)
	if len(nums) == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(nums[len(nums)-1], 64)
	if err != nil {
		return 0
	}
	return v
}

func value(q *quantity) *float64 {
	if q == nil {
		return nil
	}
	return q.Value
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func ptr[T any](v T) *T {
	return &v
}
