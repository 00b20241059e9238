package nws

import (
	"context"
	"log"
	"strings"

	"github.com/lox/weatherpwa/internal/models"
)

const (
	iconSun      = "☀️"
	iconNewMoon  = "\U0001F311"
	iconSunCloud = "\U0001F324️"
	iconPartly   = "⛅"
	iconCloud    = "☁️"
	iconFog      = "\U0001F32B️"
	iconSunRain  = "\U0001F326️"
	iconRain     = "\U0001F327️"
	iconSnow     = "\U0001F328️"
	iconStorm    = "⛈️"
	iconUnknown  = "❓"
)

// DescToIcon maps an NWS short forecast to an icon.
func DescToIcon(desc string, isDay bool) string {
	if desc == "" {
		return iconUnknown
	}
	d := strings.ToLower(desc)
	has := func(subs ...string) bool {
		for _, s := range subs {
			if strings.Contains(d, s) {
				return true
			}
		}
		return false
	}
	dayNight := func(day, night string) string {
		if isDay {
			return day
		}
		return night
	}

	switch {
	case has("thunder"):
		return iconStorm
	case has("snow", "blizzard", "flurr", "ice", "sleet", "freezing"):
		return iconSnow
	case has("rain", "shower", "drizzle"):
		if has("slight", "light", "chance") {
			return dayNight(iconSunRain, iconRain)
		}
		return iconRain
	case has("fog", "mist", "haze"):
		return iconFog
	case has("overcast", "mostly cloudy", "considerable"):
		return iconCloud
	case has("partly"):
		return dayNight(iconPartly, iconCloud)
	case has("mostly clear", "mostly sunny"):
		return dayNight(iconSunCloud, iconNewMoon)
	}
	return dayNight(iconSun, iconNewMoon)
}

// OverlayCurrent replaces the observed fields of cur with the station
// observation. Feels-like, UV, cloud cover, precipitation and weather code
// are kept.
func OverlayCurrent(cur *models.CurrentWeather, obs *Observation) {
	if cur == nil || obs == nil {
		return
	}
	if obs.Temperature != nil {
		cur.Temperature = *obs.Temperature
	}
	if obs.Humidity != nil {
		cur.Humidity = *obs.Humidity
	}
	if obs.WindSpeed != nil {
		cur.WindSpeed = *obs.WindSpeed
	}
	if obs.WindDirection != "" {
		cur.WindDirection = obs.WindDirection
	}
	if obs.Visibility != nil {
		cur.Visibility = ptr(*obs.Visibility)
	}
	if obs.Desc != "" {
		cur.WeatherDesc = obs.Desc
		cur.WeatherIcon = obs.Icon
		cur.IsDay = obs.IsDay
	}
}

// OverlayHourly patches hours matched on YYYY-MM-DDTHH.
func OverlayHourly(hourly []models.HourlyForecast, periods []HourlyPeriod) {
	if len(hourly) == 0 || len(periods) == 0 {
		return
	}
	byHour := make(map[string]HourlyPeriod, len(periods))
	for _, p := range periods {
		if p.TimeKey != "" {
			byHour[p.TimeKey] = p
		}
	}
	for i := range hourly {
		p, ok := byHour[HourKey(hourly[i].Time)]
		if !ok {
			continue
		}
		h := &hourly[i]
		if p.Temperature != nil {
			h.Temperature = *p.Temperature
		}
		h.WindSpeed = p.WindSpeed
		if p.WindDirection != "" {
			h.WindDirection = p.WindDirection
		}
		h.PrecipitationProb = p.PrecipProb
		if p.Humidity != nil {
			h.Humidity = *p.Humidity
		}
		if p.Desc != "" {
			h.WeatherDesc = p.Desc
		}
		if p.Icon != "" {
			h.WeatherIcon = p.Icon
		}
		h.IsDay = p.IsDay
	}
}

// OverlayDaily patches days matched on date. Sunrise, sunset, UV, rain
// totals and weather code are kept.
func OverlayDaily(daily []models.DailyForecast, periods []DailyPeriod) {
	if len(daily) == 0 || len(periods) == 0 {
		return
	}
	byDate := make(map[string]DailyPeriod, len(periods))
	for _, p := range periods {
		byDate[p.Date] = p
	}
	for i := range daily {
		p, ok := byDate[daily[i].Date]
		if !ok {
			continue
		}
		d := &daily[i]
		if p.TempMax != nil {
			d.TempMax = *p.TempMax
		}
		if p.TempMin != nil {
			d.TempMin = *p.TempMin
		}
		if p.Desc != "" {
			d.WeatherDesc = p.Desc
		}
		if p.Icon != "" {
			d.WeatherIcon = p.Icon
		}
		if p.WindSpeedMax != nil {
			d.WindSpeedMax = *p.WindSpeedMax
		}
		if p.PrecipProbMax != nil {
			d.PrecipitationProbMax = *p.PrecipProbMax
		}
	}
}

// Overlay applies the observation, hourly and daily overlays to wd. Each
// piece is fetched and applied independently; a failure leaves that part
// of wd untouched.
func (c *Client) Overlay(ctx context.Context, wd *models.WeatherData) {
	lat, lon := wd.Location.Lat, wd.Location.Lon

	if obs, err := c.FetchObservation(ctx, lat, lon); err != nil {
		log.Printf("nws: observation %s: %v", wd.Location.Key(), err)
	} else {
		OverlayCurrent(wd.Current, obs)
	}

	if hourly, err := c.FetchHourly(ctx, lat, lon); err != nil {
		log.Printf("nws: hourly %s: %v", wd.Location.Key(), err)
	} else {
		OverlayHourly(wd.Hourly, hourly)
	}

	if daily, err := c.FetchDaily(ctx, lat, lon); err != nil {
		log.Printf("nws: daily %s: %v", wd.Location.Key(), err)
	} else {
		OverlayDaily(wd.Daily, daily)
	}
}
