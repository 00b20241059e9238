package compare

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lox/weatherpwa/internal/models"
)

type fetchCall struct{ start, end string }

// fakeFetcher returns one record per day in the requested range.
type fakeFetcher struct {
	mu    sync.Mutex
	calls map[string][]fetchCall
	err   error
	// optional per-day customisation
	fill func(loc models.Location, d *models.DailyRecord)
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{calls: make(map[string][]fetchCall)}
}

func (f *fakeFetcher) FetchHistoricalExpanded(ctx context.Context, loc models.Location, start, end string) ([]models.DailyRecord, error) {
	f.mu.Lock()
	f.calls[loc.Key()] = append(f.calls[loc.Key()], fetchCall{start, end})
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("fetch without deadline")
	}
	return dayRange(start, end, func(d *models.DailyRecord) {
		if f.fill != nil {
			f.fill(loc, d)
		}
	}), nil
}

func (f *fakeFetcher) callsFor(key string) []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func dayRange(start, end string, fill func(*models.DailyRecord)) []models.DailyRecord {
	s, _ := time.Parse(models.DateLayout, start)
	e, _ := time.Parse(models.DateLayout, end)
	var out []models.DailyRecord
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		rec := models.DailyRecord{Date: d.Format(models.DateLayout), ApparentHigh: ptr(80.0)}
		if fill != nil {
			fill(&rec)
		}
		out = append(out, rec)
	}
	return out
}

var houston = models.Location{Name: "Houston", Lat: 29.76, Lon: -95.37}

func TestReconcileBackfillThenForwardFill(t *testing.T) {
	f := newFakeFetcher()
	r := NewReconciler(f, time.Second)

	cached := dayRange("2022-03-01", "2022-03-10", nil)
	w := Window{Start: "2022-01-01", End: "2022-04-01", Cutoff: "2022-03-31"}

	got := r.Reconcile(context.Background(), houston.Key(), houston, cached, w)

	calls := f.callsFor(houston.Key())
	want := []fetchCall{{"2022-01-01", "2022-02-28"}, {"2022-03-11", "2022-03-31"}}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call[%d] = %v, want %v", i, calls[i], want[i])
		}
	}

	if len(got) != 90 {
		t.Errorf("len(days) = %d, want 90", len(got))
	}
	if got[0].Date != "2022-01-01" || got[len(got)-1].Date != "2022-03-31" {
		t.Errorf("range = %s..%s", got[0].Date, got[len(got)-1].Date)
	}
}

func TestReconcileEmptyCacheFetchesWholeWindow(t *testing.T) {
	f := newFakeFetcher()
	r := NewReconciler(f, time.Second)

	w := Window{Start: "2022-01-01", End: "2022-01-31", Cutoff: "2022-02-05"}
	got := r.Reconcile(context.Background(), houston.Key(), houston, nil, w)

	calls := f.callsFor(houston.Key())
	if len(calls) != 1 || calls[0] != (fetchCall{"2022-01-01", "2022-02-05"}) {
		t.Fatalf("calls = %v", calls)
	}
	if len(got) != 36 {
		t.Errorf("len(days) = %d, want 36", len(got))
	}
}

func TestReconcileUpToDateCacheDoesNotFetch(t *testing.T) {
	f := newFakeFetcher()
	r := NewReconciler(f, time.Second)

	cached := dayRange("2022-01-01", "2022-01-31", nil)
	w := Window{Start: "2022-01-01", End: "2022-01-31", Cutoff: "2022-01-31"}
	got := r.Reconcile(context.Background(), houston.Key(), houston, cached, w)

	if calls := f.callsFor(houston.Key()); len(calls) != 0 {
		t.Errorf("calls = %v, want none", calls)
	}
	if len(got) != 31 {
		t.Errorf("len(days) = %d, want 31", len(got))
	}
}

func TestReconcileNoDuplicatesAndSorted(t *testing.T) {
	f := newFakeFetcher()
	r := NewReconciler(f, time.Second)

	// Unsorted with a duplicate and an unparseable date.
	cached := []models.DailyRecord{
		{Date: "2022-01-05", ApparentHigh: ptr(70.0), High: ptr(60.0)},
		{Date: "2022-01-03", ApparentHigh: ptr(70.0)},
		{Date: "2022-01-05", ApparentHigh: ptr(70.0), High: ptr(99.0)},
		{Date: "garbage", ApparentHigh: ptr(70.0)},
		{Date: "2022-01-04", ApparentHigh: ptr(70.0)},
	}
	w := Window{Start: "2022-01-01", End: "2022-01-10", Cutoff: "2022-01-10"}
	got := r.Reconcile(context.Background(), houston.Key(), houston, cached, w)

	seen := make(map[string]bool)
	for i, d := range got {
		if seen[d.Date] {
			t.Errorf("duplicate date %s", d.Date)
		}
		seen[d.Date] = true
		if i > 0 && got[i-1].Date >= d.Date {
			t.Errorf("not sorted at %d: %s >= %s", i, got[i-1].Date, d.Date)
		}
	}
	if len(got) != 10 {
		t.Errorf("len(days) = %d, want 10", len(got))
	}
	for _, d := range got {
		if d.Date == "2022-01-05" && (d.High == nil || *d.High != 60) {
			t.Errorf("2022-01-05 high = %v, want first cached value 60", d.High)
		}
	}
}

func TestReconcileDiscardsLegacySchema(t *testing.T) {
	f := newFakeFetcher()
	r := NewReconciler(f, time.Second)

	var legacy models.DailyRecord
	if err := legacy.UnmarshalJSON([]byte(`{"date":"2022-01-10","high":50}`)); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	cached := append([]models.DailyRecord{legacy}, dayRange("2022-01-11", "2022-01-20", nil)...)

	w := Window{Start: "2022-01-01", End: "2022-01-31", Cutoff: "2022-01-31"}
	got := r.Reconcile(context.Background(), houston.Key(), houston, cached, w)

	calls := f.callsFor(houston.Key())
	if len(calls) != 1 || calls[0] != (fetchCall{"2022-01-01", "2022-01-31"}) {
		t.Fatalf("calls = %v, want one full-window fetch", calls)
	}
	if len(got) != 31 {
		t.Errorf("len(days) = %d, want 31", len(got))
	}
	for _, d := range got {
		if d.LegacySchema() {
			t.Errorf("legacy record %s kept", d.Date)
		}
	}
}

func TestReconcileToleratesFetchFailure(t *testing.T) {
	f := newFakeFetcher()
	f.err = errors.New("connection refused")
	r := NewReconciler(f, time.Second)

	cached := dayRange("2022-03-01", "2022-03-10", nil)
	w := Window{Start: "2022-01-01", End: "2022-04-01", Cutoff: "2022-03-31"}
	got := r.Reconcile(context.Background(), houston.Key(), houston, cached, w)

	if calls := f.callsFor(houston.Key()); len(calls) != 2 {
		t.Errorf("calls = %v, want backfill and forward-fill attempts", calls)
	}
	if len(got) != len(cached) {
		t.Errorf("len(days) = %d, want cached %d", len(got), len(cached))
	}
}
