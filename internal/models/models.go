package models

import (
	"strconv"
	"time"
)

const DefaultTimezone = "America/Chicago"

// Location is a saved or referenced place. Key() identifies it everywhere
// (caches, history, comparison entries).
type Location struct {
	Name     string  `json:"name"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Timezone string  `json:"timezone"`
	Region   string  `json:"region"`
	Country  string  `json:"country"`
}

func (l Location) Key() string {
	return Coordinates{Lat: l.Lat, Lon: l.Lon}.Key()
}

// TZ returns the location's timezone, falling back to DefaultTimezone.
func (l Location) TZ() string {
	if l.Timezone == "" {
		return DefaultTimezone
	}
	return l.Timezone
}

// Coordinates is a bare lat/lon pair as supplied by API callers.
type Coordinates struct {
	Lat float64
	Lon float64
}

func (c Coordinates) Key() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lon, 'f', -1, 64)
}

// Settings is the persisted user configuration.
type Settings struct {
	Locations   []Location       `json:"locations"`
	Units       string           `json:"units"`
	Comparisons []ComparisonPref `json:"comparisons"`
}

// ComparisonPref is a saved "compare these two" shortcut.
type ComparisonPref struct {
	Loc1          Location `json:"loc1"`
	Loc2          Location `json:"loc2"`
	HiddenMetrics []string `json:"hidden_metrics"`
}

// HistoryRecord is one day of the short rolling history shown on the
// location page.
type HistoryRecord struct {
	Date   string   `json:"date"`
	High   *float64 `json:"high"`
	Low    *float64 `json:"low"`
	Precip *float64 `json:"precip"`
}

type CurrentWeather struct {
	Temperature   float64  `json:"temperature"`
	FeelsLike     float64  `json:"feels_like"`
	Humidity      float64  `json:"humidity"`
	WindSpeed     float64  `json:"wind_speed"`
	WindDirection string   `json:"wind_direction"`
	Precipitation float64  `json:"precipitation"`
	WeatherCode   int      `json:"weather_code"`
	WeatherDesc   string   `json:"weather_desc"`
	WeatherIcon   string   `json:"weather_icon"`
	IsDay         bool     `json:"is_day"`
	UVIndex       float64  `json:"uv_index"`
	Visibility    *float64 `json:"visibility"`
	CloudCover    *float64 `json:"cloud_cover"`
}

// CurrentConditions is the on-demand refresh payload: current weather plus
// today's high and low.
type CurrentConditions struct {
	CurrentWeather
	TodayHigh *float64  `json:"today_high"`
	TodayLow  *float64  `json:"today_low"`
	FetchedAt time.Time `json:"fetched_at"`
}

type HourlyForecast struct {
	Time              string   `json:"time"`
	Temperature       float64  `json:"temperature"`
	FeelsLike         float64  `json:"feels_like"`
	PrecipitationProb float64  `json:"precipitation_prob"`
	Precipitation     float64  `json:"precipitation"`
	WeatherCode       int      `json:"weather_code"`
	WeatherDesc       string   `json:"weather_desc"`
	WeatherIcon       string   `json:"weather_icon"`
	WindSpeed         float64  `json:"wind_speed"`
	WindDirection     string   `json:"wind_direction"`
	Humidity          float64  `json:"humidity"`
	UVIndex           float64  `json:"uv_index"`
	IsDay             bool     `json:"is_day"`
	CloudCover        *float64 `json:"cloud_cover"`
}

type DailyForecast struct {
	Date                 string  `json:"date"`
	TempMax              float64 `json:"temp_max"`
	TempMin              float64 `json:"temp_min"`
	WeatherCode          int     `json:"weather_code"`
	WeatherDesc          string  `json:"weather_desc"`
	WeatherIcon          string  `json:"weather_icon"`
	PrecipitationSum     float64 `json:"precipitation_sum"`
	PrecipitationProbMax float64 `json:"precipitation_prob_max"`
	Sunrise              string  `json:"sunrise"`
	Sunset               string  `json:"sunset"`
	UVIndexMax           float64 `json:"uv_index_max"`
	WindSpeedMax         float64 `json:"wind_speed_max"`
}

type AirQuality struct {
	Time     string   `json:"time"`
	USAQI    *int     `json:"us_aqi"`
	AQILabel string   `json:"aqi_label"`
	AQIColor string   `json:"aqi_color"`
	PM25     *float64 `json:"pm2_5"`
	PM10     *float64 `json:"pm10"`
	Ozone    *float64 `json:"ozone"`
	NO2      *float64 `json:"no2"`
	SO2      *float64 `json:"so2"`
	CO       *float64 `json:"co"`
}

type MinutelyPrecip struct {
	Time          string  `json:"time"`
	Precipitation float64 `json:"precipitation"`
	Rain          float64 `json:"rain"`
	Snowfall      float64 `json:"snowfall"`
}

// Alert is an active NWS alert.
type Alert struct {
	Event       string `json:"event"`
	Severity    string `json:"severity"`
	Headline    string `json:"headline"`
	Description string `json:"description"`
	Instruction string `json:"instruction"`
	Onset       string `json:"onset"`
	Expires     string `json:"expires"`
}

// ForecastPeriod is one period of the NWS text forecast.
type ForecastPeriod struct {
	Name      string `json:"name"`
	Short     string `json:"short"`
	Detailed  string `json:"detailed"`
	IsDaytime bool   `json:"isDaytime"`
}

type SunTimes struct {
	Rise string `json:"rise,omitempty"`
	Set  string `json:"set,omitempty"`
	Dawn string `json:"dawn,omitempty"`
	Dusk string `json:"dusk,omitempty"`
}

type MoonTimes struct {
	Rise          string `json:"rise,omitempty"`
	Set           string `json:"set,omitempty"`
	Phase         string `json:"phase"`
	Illumination  string `json:"illumination"`
	NextPhase     string `json:"next_phase,omitempty"`
	NextPhaseDate string `json:"next_phase_date,omitempty"`
}

// SunMoon is empty (both nil) when the astronomical lookup failed.
type SunMoon struct {
	Sun  *SunTimes  `json:"sun,omitempty"`
	Moon *MoonTimes `json:"moon,omitempty"`
}

// WeatherData is the full per-location view held in the forecast cache.
type WeatherData struct {
	Location     Location         `json:"location"`
	Current      *CurrentWeather  `json:"current"`
	Hourly       []HourlyForecast `json:"hourly"`
	Daily        []DailyForecast  `json:"daily"`
	Minutely     []MinutelyPrecip `json:"minutely"`
	AirQuality   []AirQuality     `json:"air_quality"`
	Alerts       []Alert          `json:"alerts"`
	ForecastText []ForecastPeriod `json:"forecast_text"`
	SunMoon      SunMoon          `json:"sun_moon"`
	FetchedAt    time.Time        `json:"fetched_at"`
}
