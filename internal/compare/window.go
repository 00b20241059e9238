package compare

import (
	"time"

	"github.com/lox/weatherpwa/internal/models"
)

const windowYears = 5

// Window is the date range a comparison covers. Dates are YYYY-MM-DD.
// Cutoff is the last day whose archive data is considered final; it can lie
// past End, in which case the extra days are fetched and cached but not
// scored.
type Window struct {
	Start  string `json:"start"`
	End    string `json:"end"`
	Cutoff string `json:"-"`
}

// ComparisonWindow returns the window for a comparison made at now: Jan 1 of
// five years ago through the last day of the previous month, with yesterday
// as the cutoff.
func ComparisonWindow(now time.Time) Window {
	return comparisonWindow(now, windowYears)
}

func comparisonWindow(now time.Time, years int) Window {
	y, m, d := now.Date()
	loc := now.Location()
	start := time.Date(y-years, time.January, 1, 0, 0, 0, 0, loc)
	end := time.Date(y, m, 1, 0, 0, 0, 0, loc).AddDate(0, 0, -1)
	cutoff := time.Date(y, m, d, 0, 0, 0, 0, loc).AddDate(0, 0, -1)
	return Window{
		Start:  start.Format(models.DateLayout),
		End:    end.Format(models.DateLayout),
		Cutoff: cutoff.Format(models.DateLayout),
	}
}

// Contains reports whether date lies in [Start, End].
func (w Window) Contains(date string) bool {
	return date >= w.Start && date <= w.End
}

func parseDate(s string) (time.Time, bool) {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func shiftDate(s string, days int) string {
	t, ok := parseDate(s)
	if !ok {
		return s
	}
	return t.AddDate(0, 0, days).Format(models.DateLayout)
}
