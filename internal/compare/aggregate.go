package compare

import (
	"math"
	"sort"
	"time"

	"github.com/lox/weatherpwa/internal/models"
)

const (
	rainThreshold     = 0.01 // inches
	freezingThreshold = 32.0 // °F, low
	hotThreshold      = 90.0 // °F, high
	stickyThreshold   = 100.0
	cozyMinHigh       = 50.0
	cozyMaxApparent   = 90.0
	overcastCode      = 3
)

// MonthlyMetrics summarises one calendar month of daily records. Averages are
// nil when no day in the month carried the underlying value.
type MonthlyMetrics struct {
	Month            string   `json:"month"`
	DaysInData       int      `json:"days_in_data"`
	SunshineHours    float64  `json:"sunshine_hours"`
	RainyDays        int      `json:"rainy_days"`
	SnowDays         int      `json:"snow_days"`
	OvercastDays     int      `json:"overcast_days"`
	AvgHigh          *float64 `json:"avg_high"`
	AvgLow           *float64 `json:"avg_low"`
	FreezingDays     int      `json:"freezing_days"`
	HotDays          int      `json:"hot_days"`
	StickyDays       int      `json:"sticky_days"`
	CozyOvercastDays int      `json:"cozy_overcast_days"`
	AvgSunsetMin     *int     `json:"avg_sunset_min"`
	AvgDaylightHours *float64 `json:"avg_daylight_hours"`
}

type monthAccumulator struct {
	m           MonthlyMetrics
	sunshineSec float64
	highs, lows mean
	sunsets     mean
	daylight    mean
}

type mean struct {
	sum float64
	n   int
}

func (a *mean) add(v float64) {
	a.sum += v
	a.n++
}

func (a mean) value() (float64, bool) {
	if a.n == 0 {
		return 0, false
	}
	return a.sum / float64(a.n), true
}

// Aggregate groups days by calendar month and derives the monthly metrics.
// It is a pure function; output is in ascending month order.
func Aggregate(days []models.DailyRecord) []MonthlyMetrics {
	months := make(map[string]*monthAccumulator)
	for _, d := range days {
		if len(d.Date) < 7 {
			continue
		}
		key := d.Date[:7]
		acc, ok := months[key]
		if !ok {
			acc = &monthAccumulator{m: MonthlyMetrics{Month: key}}
			months[key] = acc
		}
		acc.add(d)
	}

	out := make([]MonthlyMetrics, 0, len(months))
	for _, acc := range months {
		out = append(out, acc.finish())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

func (a *monthAccumulator) add(d models.DailyRecord) {
	a.m.DaysInData++

	precip := valueOr(d.Precip, 0)
	snowfall := valueOr(d.Snowfall, 0)
	a.sunshineSec += valueOr(d.SunshineSec, 0)

	if precip > rainThreshold {
		a.m.RainyDays++
	}
	if snowfall > 0 {
		a.m.SnowDays++
	}

	dryOvercast := d.WeatherCode != nil && *d.WeatherCode == overcastCode &&
		precip <= rainThreshold && snowfall <= 0
	if dryOvercast {
		a.m.OvercastDays++
	}

	if d.High != nil {
		a.highs.add(*d.High)
		if *d.High >= hotThreshold {
			a.m.HotDays++
		}
	}
	if d.Low != nil {
		a.lows.add(*d.Low)
		if *d.Low <= freezingThreshold {
			a.m.FreezingDays++
		}
	}
	if d.ApparentHigh != nil && *d.ApparentHigh >= stickyThreshold {
		a.m.StickyDays++
	}
	if dryOvercast && d.High != nil && *d.High > cozyMinHigh &&
		(d.ApparentHigh == nil || *d.ApparentHigh < cozyMaxApparent) {
		a.m.CozyOvercastDays++
	}

	sunset, setOK := parseLocalTime(d.Sunset)
	if setOK {
		a.sunsets.add(float64(sunset.Hour()*60 + sunset.Minute()))
	}
	if sunrise, riseOK := parseLocalTime(d.Sunrise); riseOK && setOK {
		if mins := sunset.Sub(sunrise).Minutes(); mins > 0 {
			a.daylight.add(mins / 60)
		}
	}
}

func (a *monthAccumulator) finish() MonthlyMetrics {
	m := a.m
	m.SunshineHours = round1(a.sunshineSec / 3600)
	if v, ok := a.highs.value(); ok {
		m.AvgHigh = ptr(round1(v))
	}
	if v, ok := a.lows.value(); ok {
		m.AvgLow = ptr(round1(v))
	}
	if v, ok := a.sunsets.value(); ok {
		m.AvgSunsetMin = ptr(int(math.Round(v)))
	}
	if v, ok := a.daylight.value(); ok {
		m.AvgDaylightHours = ptr(round1(v))
	}
	return m
}

var localTimeLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// parseLocalTime parses an archive timestamp. Wall-clock fields are kept as
// written; RFC 3339 offsets are not converted.
func parseLocalTime(s *string) (time.Time, bool) {
	if s == nil || *s == "" {
		return time.Time{}, false
	}
	for _, layout := range localTimeLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func ptr[T any](v T) *T {
	return &v
}
