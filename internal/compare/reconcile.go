package compare

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/lox/weatherpwa/internal/metrics"
	"github.com/lox/weatherpwa/internal/models"
)

const DefaultFetchTimeout = 30 * time.Second

// HistoryFetcher fetches archive days for loc over the inclusive range
// [start, end].
type HistoryFetcher interface {
	FetchHistoricalExpanded(ctx context.Context, loc models.Location, start, end string) ([]models.DailyRecord, error)
}

// Reconciler brings a location's cached days up to date with a window using
// at most one backfill and one forward-fill fetch.
type Reconciler struct {
	fetcher HistoryFetcher
	timeout time.Duration
}

func NewReconciler(fetcher HistoryFetcher, timeout time.Duration) *Reconciler {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Reconciler{fetcher: fetcher, timeout: timeout}
}

// Reconcile returns cached extended to cover [w.Start, w.Cutoff]. It never
// fails: a fetch that errors contributes nothing and the cached days are
// kept. The result is sorted by date and has no duplicate dates.
func (r *Reconciler) Reconcile(ctx context.Context, key string, loc models.Location, cached []models.DailyRecord, w Window) []models.DailyRecord {
	if len(cached) > 0 && cached[0].LegacySchema() {
		log.Printf("compare: %s: cached days predate apparent_high, refetching %d days", key, len(cached))
		metrics.CacheInvalidations.WithLabelValues("comparison_schema").Inc()
		cached = nil
	}

	days := make(map[string]models.DailyRecord, len(cached))
	for _, d := range cached {
		if _, ok := parseDate(d.Date); !ok {
			continue
		}
		if _, dup := days[d.Date]; !dup {
			days[d.Date] = d
		}
	}

	earliest, latest := dateBounds(days)

	if earliest != "" && w.Start < earliest {
		r.fetchInto(ctx, days, key, loc, "backfill", w.Start, shiftDate(earliest, -1))
	}

	fetchStart := w.Start
	if latest != "" {
		fetchStart = shiftDate(latest, 1)
	}
	if fetchStart <= w.Cutoff {
		r.fetchInto(ctx, days, key, loc, "forward", fetchStart, w.Cutoff)
	}

	out := make([]models.DailyRecord, 0, len(days))
	for _, d := range days {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func (r *Reconciler) fetchInto(ctx context.Context, days map[string]models.DailyRecord, key string, loc models.Location, direction, start, end string) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	fetched, err := r.fetcher.FetchHistoricalExpanded(ctx, loc, start, end)
	if err != nil {
		log.Printf("compare: %s: %s fetch %s..%s: %v", key, direction, start, end, err)
		metrics.HistoryFetchFailures.WithLabelValues(direction).Inc()
		return
	}

	added := 0
	for _, d := range fetched {
		if _, ok := parseDate(d.Date); !ok {
			continue
		}
		if _, exists := days[d.Date]; exists {
			continue
		}
		days[d.Date] = d
		added++
	}
	metrics.HistoryDaysFetched.WithLabelValues(direction).Add(float64(added))
	log.Printf("compare: %s: %s fetch %s..%s added %d days", key, direction, start, end, added)
}

func dateBounds(days map[string]models.DailyRecord) (earliest, latest string) {
	for date := range days {
		if earliest == "" || date < earliest {
			earliest = date
		}
		if latest == "" || date > latest {
			latest = date
		}
	}
	return earliest, latest
}
