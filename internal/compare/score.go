package compare

import (
	"errors"
	"fmt"
	"math"
)

const sunsetTieBandMin = 10

var ErrUnknownCriterion = errors.New("unknown metric")

type direction int

const (
	higherWins direction = iota
	lowerWins
)

// MonthScore is the outcome of scoring one month for two locations.
type MonthScore struct {
	Loc1Points int `json:"loc1_points"`
	Loc2Points int `json:"loc2_points"`
	Ties       int `json:"ties"`
}

// Evaluated is the number of criteria that produced a point or a tie.
func (s MonthScore) Evaluated() int {
	return s.Loc1Points + s.Loc2Points + s.Ties
}

// Winner returns "loc1", "loc2" or "tie".
func (s MonthScore) Winner() string {
	return winnerOf(s.Loc1Points, s.Loc2Points)
}

type criterion struct {
	key   string
	score func(a, b MonthlyMetrics) outcome
}

type outcome int

const (
	skipped outcome = iota
	loc1Wins
	loc2Wins
	tied
)

// criteria is evaluated in order. Sunshine, rain and overcast are always
// evaluated; the phenomenon counts are skipped when neither month has any.
var criteria = []criterion{
	{"sunshine_hours", func(a, b MonthlyMetrics) outcome {
		return compareValues(a.SunshineHours, b.SunshineHours, higherWins)
	}},
	{"rainy_days", func(a, b MonthlyMetrics) outcome {
		return compareCounts(a.RainyDays, b.RainyDays, lowerWins, false)
	}},
	{"overcast_days", func(a, b MonthlyMetrics) outcome {
		return compareCounts(a.OvercastDays, b.OvercastDays, higherWins, false)
	}},
	{"cozy_overcast_days", func(a, b MonthlyMetrics) outcome {
		return compareCounts(a.CozyOvercastDays, b.CozyOvercastDays, higherWins, true)
	}},
	{"snow_days", func(a, b MonthlyMetrics) outcome {
		return compareCounts(a.SnowDays, b.SnowDays, lowerWins, true)
	}},
	{"freezing_days", func(a, b MonthlyMetrics) outcome {
		return compareCounts(a.FreezingDays, b.FreezingDays, lowerWins, true)
	}},
	{"hot_days", func(a, b MonthlyMetrics) outcome {
		return compareCounts(a.HotDays, b.HotDays, lowerWins, true)
	}},
	{"sticky_days", func(a, b MonthlyMetrics) outcome {
		return compareCounts(a.StickyDays, b.StickyDays, lowerWins, true)
	}},
	{"avg_daylight_hours", func(a, b MonthlyMetrics) outcome {
		if a.AvgDaylightHours == nil || b.AvgDaylightHours == nil {
			return skipped
		}
		return compareValues(*a.AvgDaylightHours, *b.AvgDaylightHours, higherWins)
	}},
	{"avg_sunset_min", func(a, b MonthlyMetrics) outcome {
		if a.AvgSunsetMin == nil || b.AvgSunsetMin == nil {
			return skipped
		}
		diff := *a.AvgSunsetMin - *b.AvgSunsetMin
		switch {
		case diff > sunsetTieBandMin:
			return loc1Wins
		case diff < -sunsetTieBandMin:
			return loc2Wins
		}
		return tied
	}},
}

// Criteria returns the scoring criterion keys in evaluation order.
func Criteria() []string {
	keys := make([]string, len(criteria))
	for i, c := range criteria {
		keys[i] = c.key
	}
	return keys
}

// IsCriterion reports whether key names a scoring criterion.
func IsCriterion(key string) bool {
	for _, c := range criteria {
		if c.key == key {
			return true
		}
	}
	return false
}

// CheckCriteria returns ErrUnknownCriterion for the first key that is not
// a scoring criterion.
func CheckCriteria(keys []string) error {
	for _, k := range keys {
		if !IsCriterion(k) {
			return fmt.Errorf("%w %q", ErrUnknownCriterion, k)
		}
	}
	return nil
}

// ScoreMonth awards one point per criterion to the better month, or a tie.
// Criteria named in hidden are not evaluated.
func ScoreMonth(a, b MonthlyMetrics, hidden map[string]bool) MonthScore {
	var s MonthScore
	for _, c := range criteria {
		if hidden[c.key] {
			continue
		}
		switch c.score(a, b) {
		case loc1Wins:
			s.Loc1Points++
		case loc2Wins:
			s.Loc2Points++
		case tied:
			s.Ties++
		}
	}
	return s
}

func compareCounts(a, b int, dir direction, skipBothZero bool) outcome {
	if skipBothZero && a == 0 && b == 0 {
		return skipped
	}
	return compareValues(float64(a), float64(b), dir)
}

func compareValues(a, b float64, dir direction) outcome {
	if a == b || math.IsNaN(a) || math.IsNaN(b) {
		return tied
	}
	if (a > b) == (dir == higherWins) {
		return loc1Wins
	}
	return loc2Wins
}

func winnerOf(loc1, loc2 int) string {
	switch {
	case loc1 > loc2:
		return "loc1"
	case loc2 > loc1:
		return "loc2"
	}
	return "tie"
}
