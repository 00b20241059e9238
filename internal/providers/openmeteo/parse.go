package openmeteo

import (
	"math"
	"time"

	"github.com/lox/weatherpwa/internal/models"
	"github.com/lox/weatherpwa/internal/wmo"
)

// Arrays hold pointers because Open-Meteo emits null for missing values.

type ForecastResponse struct {
	Current    *CurrentBlock `json:"current"`
	Hourly     HourlyBlock   `json:"hourly"`
	Daily      DailyBlock    `json:"daily"`
	Minutely15 MinutelyBlock `json:"minutely_15"`
}

type CurrentBlock struct {
	Temperature   *float64 `json:"temperature_2m"`
	Apparent      *float64 `json:"apparent_temperature"`
	Humidity      *float64 `json:"relative_humidity_2m"`
	WindSpeed     *float64 `json:"wind_speed_10m"`
	WindDirection *float64 `json:"wind_direction_10m"`
	Precipitation *float64 `json:"precipitation"`
	WeatherCode   *float64 `json:"weather_code"`
	IsDay         *float64 `json:"is_day"`
	UVIndex       *float64 `json:"uv_index"`
	Visibility    *float64 `json:"visibility"`
	CloudCover    *float64 `json:"cloud_cover"`
}

type HourlyBlock struct {
	Time          []string   `json:"time"`
	Temperature   []*float64 `json:"temperature_2m"`
	Apparent      []*float64 `json:"apparent_temperature"`
	PrecipProb    []*float64 `json:"precipitation_probability"`
	Precipitation []*float64 `json:"precipitation"`
	WeatherCode   []*float64 `json:"weather_code"`
	WindSpeed     []*float64 `json:"wind_speed_10m"`
	WindDirection []*float64 `json:"wind_direction_10m"`
	Humidity      []*float64 `json:"relative_humidity_2m"`
	UVIndex       []*float64 `json:"uv_index"`
	IsDay         []*float64 `json:"is_day"`
	CloudCover    []*float64 `json:"cloud_cover"`
}

type DailyBlock struct {
	Time          []string   `json:"time"`
	TempMax       []*float64 `json:"temperature_2m_max"`
	TempMin       []*float64 `json:"temperature_2m_min"`
	WeatherCode   []*float64 `json:"weather_code"`
	PrecipSum     []*float64 `json:"precipitation_sum"`
	PrecipProbMax []*float64 `json:"precipitation_probability_max"`
	Sunrise       []*string  `json:"sunrise"`
	Sunset        []*string  `json:"sunset"`
	UVIndexMax    []*float64 `json:"uv_index_max"`
	WindSpeedMax  []*float64 `json:"wind_speed_10m_max"`
}

type MinutelyBlock struct {
	Time          []string   `json:"time"`
	Precipitation []*float64 `json:"precipitation"`
	Rain          []*float64 `json:"rain"`
	Snowfall      []*float64 `json:"snowfall"`
}

type AirQualityResponse struct {
	Hourly struct {
		Time  []string   `json:"time"`
		USAQI []*float64 `json:"us_aqi"`
		PM10  []*float64 `json:"pm10"`
		PM25  []*float64 `json:"pm2_5"`
		Ozone []*float64 `json:"ozone"`
		NO2   []*float64 `json:"nitrogen_dioxide"`
		SO2   []*float64 `json:"sulphur_dioxide"`
		CO    []*float64 `json:"carbon_monoxide"`
	} `json:"hourly"`
}

type archiveDaily struct {
	Time             []string   `json:"time"`
	TempMax          []*float64 `json:"temperature_2m_max"`
	TempMin          []*float64 `json:"temperature_2m_min"`
	PrecipSum        []*float64 `json:"precipitation_sum"`
	SunshineDuration []*float64 `json:"sunshine_duration"`
	SnowfallSum      []*float64 `json:"snowfall_sum"`
	WeatherCode      []*float64 `json:"weather_code"`
	Sunrise          []*string  `json:"sunrise"`
	Sunset           []*string  `json:"sunset"`
	ApparentMax      []*float64 `json:"apparent_temperature_max"`
}

// ParseCurrent maps the current block; nil when the response has none.
func ParseCurrent(resp *ForecastResponse) *models.CurrentWeather {
	if resp == nil || resp.Current == nil {
		return nil
	}
	c := resp.Current
	code := int(deref(c.WeatherCode, 0))
	isDay := deref(c.IsDay, 1) != 0
	desc, icon := wmo.Info(code, isDay)
	return &models.CurrentWeather{
		Temperature:   deref(c.Temperature, 0),
		FeelsLike:     deref(c.Apparent, 0),
		Humidity:      deref(c.Humidity, 0),
		WindSpeed:     deref(c.WindSpeed, 0),
		WindDirection: wmo.Compass(c.WindDirection),
		Precipitation: deref(c.Precipitation, 0),
		WeatherCode:   code,
		WeatherDesc:   desc,
		WeatherIcon:   icon,
		IsDay:         isDay,
		UVIndex:       deref(c.UVIndex, 0),
		Visibility:    c.Visibility,
		CloudCover:    c.CloudCover,
	}
}

// ParseCurrentConditions adds today's high and low to the current block.
func ParseCurrentConditions(resp *ForecastResponse, fetchedAt time.Time) *models.CurrentConditions {
	out := &models.CurrentConditions{FetchedAt: fetchedAt}
	if cur := ParseCurrent(resp); cur != nil {
		out.CurrentWeather = *cur
	}
	if resp != nil {
		out.TodayHigh = index(resp.Daily.TempMax, 0)
		out.TodayLow = index(resp.Daily.TempMin, 0)
	}
	return out
}

// ParseWeather assembles the per-location view from a forecast and an
// optional air quality response. Missing array entries take the zero
// default for the field.
func ParseWeather(fc *ForecastResponse, aq *AirQualityResponse, loc models.Location, fetchedAt time.Time) *models.WeatherData {
	wd := &models.WeatherData{
		Location:  loc,
		Current:   ParseCurrent(fc),
		FetchedAt: fetchedAt,
	}
	if fc != nil {
		wd.Hourly = parseHourly(fc.Hourly)
		wd.Daily = parseDaily(fc.Daily)
		wd.Minutely = parseMinutely(fc.Minutely15)
	}
	if aq != nil {
		wd.AirQuality = parseAirQuality(aq)
	}
	return wd
}

func parseHourly(h HourlyBlock) []models.HourlyForecast {
	out := make([]models.HourlyForecast, 0, len(h.Time))
	for i, t := range h.Time {
		code := int(at(h.WeatherCode, i, 0))
		isDay := at(h.IsDay, i, 1) != 0
		desc, icon := wmo.Info(code, isDay)
		out = append(out, models.HourlyForecast{
			Time:              t,
			Temperature:       at(h.Temperature, i, 0),
			FeelsLike:         at(h.Apparent, i, 0),
			PrecipitationProb: at(h.PrecipProb, i, 0),
			Precipitation:     at(h.Precipitation, i, 0),
			WeatherCode:       code,
			WeatherDesc:       desc,
			WeatherIcon:       icon,
			WindSpeed:         at(h.WindSpeed, i, 0),
			WindDirection:     wmo.Compass(index(h.WindDirection, i)),
			Humidity:          at(h.Humidity, i, 0),
			UVIndex:           at(h.UVIndex, i, 0),
			IsDay:             isDay,
			CloudCover:        index(h.CloudCover, i),
		})
	}
	return out
}

func parseDaily(d DailyBlock) []models.DailyForecast {
	out := make([]models.DailyForecast, 0, len(d.Time))
	for i, date := range d.Time {
		code := int(at(d.WeatherCode, i, 0))
		desc, icon := wmo.Info(code, true)
		out = append(out, models.DailyForecast{
			Date:                 date,
			TempMax:              at(d.TempMax, i, 0),
			TempMin:              at(d.TempMin, i, 0),
			WeatherCode:          code,
			WeatherDesc:          desc,
			WeatherIcon:          icon,
			PrecipitationSum:     at(d.PrecipSum, i, 0),
			PrecipitationProbMax: at(d.PrecipProbMax, i, 0),
			Sunrise:              at(d.Sunrise, i, ""),
			Sunset:               at(d.Sunset, i, ""),
			UVIndexMax:           at(d.UVIndexMax, i, 0),
			WindSpeedMax:         at(d.WindSpeedMax, i, 0),
		})
	}
	return out
}

func parseMinutely(m MinutelyBlock) []models.MinutelyPrecip {
	out := make([]models.MinutelyPrecip, 0, len(m.Time))
	for i, t := range m.Time {
		out = append(out, models.MinutelyPrecip{
			Time:          t,
			Precipitation: at(m.Precipitation, i, 0),
			Rain:          at(m.Rain, i, 0),
			Snowfall:      at(m.Snowfall, i, 0),
		})
	}
	return out
}

func parseAirQuality(aq *AirQualityResponse) []models.AirQuality {
	h := aq.Hourly
	out := make([]models.AirQuality, 0, len(h.Time))
	for i, t := range h.Time {
		var aqi *int
		if v := index(h.USAQI, i); v != nil {
			aqi = intPtr(*v)
		}
		label, color := wmo.AQIInfo(aqi)
		out = append(out, models.AirQuality{
			Time:     t,
			USAQI:    aqi,
			AQILabel: label,
			AQIColor: color,
			PM25:     index(h.PM25, i),
			PM10:     index(h.PM10, i),
			Ozone:    index(h.Ozone, i),
			NO2:      index(h.NO2, i),
			SO2:      index(h.SO2, i),
			CO:       index(h.CO, i),
		})
	}
	return out
}

// index returns arr[i], or nil when out of range or null.
func index[T any](arr []*T, i int) *T {
	if i < 0 || i >= len(arr) {
		return nil
	}
	return arr[i]
}

func at[T any](arr []*T, i int, def T) T {
	if v := index(arr, i); v != nil {
		return *v
	}
	return def
}

func deref(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func intPtr(f float64) *int {
	i := int(math.Round(f))
	return &i
}
