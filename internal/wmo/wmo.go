// Package wmo maps WMO weather codes, US AQI values and wind bearings to
// display strings.
package wmo

import "math"

type codeInfo struct {
	desc      string
	dayIcon   string
	nightIcon string
}

const (
	sun        = "☀️"
	newMoon    = "\U0001F311"
	sunCloud   = "\U0001F324️"
	partly     = "⛅"
	cloud      = "☁️"
	fog        = "\U0001F32B️"
	sunRain    = "\U0001F326️"
	rain       = "\U0001F327️"
	snow       = "\U0001F328️"
	storm      = "⛈️"
	unknownIco = "❓"
)

var codes = map[int]codeInfo{
	0:  {"Clear sky", sun, newMoon},
	1:  {"Mainly clear", sunCloud, newMoon},
	2:  {"Partly cloudy", partly, cloud},
	3:  {"Overcast", cloud, cloud},
	45: {"Fog", fog, fog},
	48: {"Depositing rime fog", fog, fog},
	51: {"Light drizzle", sunRain, rain},
	53: {"Moderate drizzle", rain, rain},
	55: {"Dense drizzle", rain, rain},
	56: {"Light freezing drizzle", rain, rain},
	57: {"Dense freezing drizzle", rain, rain},
	61: {"Slight rain", sunRain, rain},
	63: {"Moderate rain", rain, rain},
	65: {"Heavy rain", rain, rain},
	66: {"Light freezing rain", rain, rain},
	67: {"Heavy freezing rain", rain, rain},
	71: {"Slight snow", snow, snow},
	73: {"Moderate snow", snow, snow},
	75: {"Heavy snow", snow, snow},
	77: {"Snow grains", snow, snow},
	80: {"Slight rain showers", sunRain, rain},
	81: {"Moderate rain showers", rain, rain},
	82: {"Violent rain showers", rain, rain},
	85: {"Slight snow showers", snow, snow},
	86: {"Heavy snow showers", snow, snow},
	95: {"Thunderstorm", storm, storm},
	96: {"Thunderstorm with slight hail", storm, storm},
	99: {"Thunderstorm with heavy hail", storm, storm},
}

// Info returns the description and icon for a WMO code.
func Info(code int, isDay bool) (desc, icon string) {
	c, ok := codes[code]
	if !ok {
		return "Unknown", unknownIco
	}
	if isDay {
		return c.desc, c.dayIcon
	}
	return c.desc, c.nightIcon
}

var aqiLevels = []struct {
	max   int
	label string
	color string
}{
	{50, "Good", "#4caf50"},
	{100, "Moderate", "#ffeb3b"},
	{150, "Unhealthy for Sensitive Groups", "#ff9800"},
	{200, "Unhealthy", "#f44336"},
	{300, "Very Unhealthy", "#9c27b0"},
	{500, "Hazardous", "#800000"},
}

// AQIInfo returns the US AQI category label and colour. A nil value is
// "Unknown".
func AQIInfo(aqi *int) (label, color string) {
	if aqi == nil {
		return "Unknown", "#999"
	}
	for _, l := range aqiLevels {
		if *aqi <= l.max {
			return l.label, l.color
		}
	}
	return "Hazardous", "#800000"
}

var compassPoints = []string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// Compass converts a bearing in degrees to a 16-point compass direction.
func Compass(deg *float64) string {
	if deg == nil || math.IsNaN(*deg) {
		return "N/A"
	}
	idx := int(math.Round(*deg/22.5)) % 16
	if idx < 0 {
		idx += 16
	}
	return compassPoints[idx]
}
