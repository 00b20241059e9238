package compare

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lox/weatherpwa/internal/models"
)

type memoryStore struct {
	mu        sync.Mutex
	cache     map[string]models.ComparisonEntry
	locations []models.Location
	saves     int
}

func (m *memoryStore) LoadComparisonCache() (map[string]models.ComparisonEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]models.ComparisonEntry, len(m.cache))
	for k, v := range m.cache {
		out[k] = v
	}
	return out, nil
}

func (m *memoryStore) SaveComparisonCache(c map[string]models.ComparisonEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = c
	m.saves++
	return nil
}

func (m *memoryStore) KnownLocations() ([]models.Location, error) {
	return m.locations, nil
}

var (
	sunny  = models.Location{Name: "Sunny", Lat: 33.45, Lon: -112.07}
	cloudy = models.Location{Name: "Cloudy", Lat: 47.61, Lon: -122.33}
	third  = models.Location{Name: "Third", Lat: 40.71, Lon: -74.01}
)

func newTestService(t *testing.T) (*Service, *memoryStore, *fakeFetcher) {
	t.Helper()
	st := &memoryStore{locations: []models.Location{sunny, cloudy, third}}
	f := newFakeFetcher()
	f.fill = func(loc models.Location, d *models.DailyRecord) {
		switch loc.Key() {
		case sunny.Key():
			d.SunshineSec, d.Precip = ptr(36000.0), ptr(0.0)
		default:
			d.SunshineSec, d.Precip = ptr(18000.0), ptr(0.5)
		}
	}
	svc := NewService(st, st, NewReconciler(f, time.Second))
	svc.now = func() time.Time { return time.Date(2022, 3, 15, 12, 0, 0, 0, time.UTC) }
	return svc, st, f
}

func coords(l models.Location) models.Coordinates {
	return models.Coordinates{Lat: l.Lat, Lon: l.Lon}
}

func TestCompareEndToEnd(t *testing.T) {
	svc, st, f := newTestService(t)

	res, err := svc.Compare(context.Background(), coords(sunny), coords(cloudy), nil)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}

	if res.Window.Start != "2017-01-01" || res.Window.End != "2022-02-28" {
		t.Errorf("window = %+v", res.Window)
	}
	// 2017-01 through 2022-02
	if len(res.Months) != 62 {
		t.Fatalf("len(months) = %d, want 62", len(res.Months))
	}
	m := res.Months[0]
	if m.Month != "2017-01" || m.Loc1Points != 2 || m.Loc2Points != 0 || m.Ties != 1 || m.Winner != "loc1" {
		t.Errorf("first month = %+v", m)
	}
	if m.SunsetDiffMin != nil {
		t.Errorf("sunset diff = %d, want nil without sunset data", *m.SunsetDiffMin)
	}
	if res.Loc1.Wins != 62 || res.Loc2.Wins != 0 || res.Winner != "loc1" {
		t.Errorf("wins = %d/%d winner %q", res.Loc1.Wins, res.Loc2.Wins, res.Winner)
	}
	if res.Loc1.Name != "Sunny" || res.Loc2.Key != cloudy.Key() {
		t.Errorf("summaries = %+v / %+v", res.Loc1, res.Loc2)
	}

	entry, ok := st.cache[PairKey(sunny.Key(), cloudy.Key())]
	if !ok {
		t.Fatal("pair not persisted")
	}
	if entry.Loc1Key != sunny.Key() {
		t.Errorf("loc1_key = %q, want %q", entry.Loc1Key, sunny.Key())
	}
	// cutoff is 2022-03-14, past the window end
	if last := entry.Loc1Days[len(entry.Loc1Days)-1].Date; last != "2022-03-14" {
		t.Errorf("last cached day = %s, want 2022-03-14", last)
	}

	// Reversed request hits the same entry and needs no fetch.
	before := len(f.callsFor(sunny.Key())) + len(f.callsFor(cloudy.Key()))
	rev, err := svc.Compare(context.Background(), coords(cloudy), coords(sunny), nil)
	if err != nil {
		t.Fatalf("Compare reversed: %v", err)
	}
	after := len(f.callsFor(sunny.Key())) + len(f.callsFor(cloudy.Key()))
	if after != before {
		t.Errorf("reversed compare made %d fetches, want 0", after-before)
	}
	if rev.Winner != "loc2" || rev.Loc2.Wins != 62 {
		t.Errorf("reversed winner = %q (%d)", rev.Winner, rev.Loc2.Wins)
	}
	if len(st.cache) != 1 {
		t.Errorf("cache entries = %d, want 1", len(st.cache))
	}
}

func TestCompareHiddenMetrics(t *testing.T) {
	svc, _, _ := newTestService(t)

	res, err := svc.Compare(context.Background(), coords(sunny), coords(cloudy), []string{"sunshine_hours", "rainy_days"})
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if res.Winner != "tie" {
		t.Errorf("winner = %q, want tie", res.Winner)
	}
	if m := res.Months[0]; m.Ties != 1 || m.Loc1Points != 0 || m.Winner != "tie" {
		t.Errorf("month = %+v", m)
	}
}

func TestCompareSunsetDiffInsideTieBand(t *testing.T) {
	base, _, _ := newTestService(t)
	want, err := base.Compare(context.Background(), coords(sunny), coords(cloudy), nil)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}

	svc, _, f := newTestService(t)
	inner := f.fill
	f.fill = func(loc models.Location, d *models.DailyRecord) {
		inner(loc, d)
		sunset := d.Date + "T18:00"
		if loc.Key() == sunny.Key() {
			sunset = d.Date + "T18:05"
		}
		d.Sunset = &sunset
	}
	res, err := svc.Compare(context.Background(), coords(sunny), coords(cloudy), nil)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}

	m, b := res.Months[0], want.Months[0]
	if m.SunsetDiffMin == nil || *m.SunsetDiffMin != 5 {
		t.Fatalf("sunset diff = %v, want 5", m.SunsetDiffMin)
	}
	// five minutes is inside the band, so sunset only adds a tie
	if m.Ties != b.Ties+1 || m.Loc1Points != b.Loc1Points || m.Loc2Points != b.Loc2Points {
		t.Errorf("month = %+v, baseline %+v", m, b)
	}
}

func TestCompareLocationNotFound(t *testing.T) {
	svc, st, _ := newTestService(t)

	_, err := svc.Compare(context.Background(), coords(sunny), models.Coordinates{Lat: 1, Lon: 2}, nil)
	if !errors.Is(err, ErrLocationNotFound) {
		t.Fatalf("err = %v, want ErrLocationNotFound", err)
	}
	if st.saves != 0 {
		t.Errorf("saves = %d, want 0", st.saves)
	}
}

func TestComparePreservesOtherPairs(t *testing.T) {
	svc, st, _ := newTestService(t)
	other := PairKey(third.Key(), cloudy.Key())
	st.cache = map[string]models.ComparisonEntry{
		other: {Loc1Key: third.Key(), Loc2Key: cloudy.Key(), Loc1Days: []models.DailyRecord{{Date: "2020-01-01"}}},
	}

	if _, err := svc.Compare(context.Background(), coords(sunny), coords(cloudy), nil); err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if got := st.cache[other]; len(got.Loc1Days) != 1 {
		t.Errorf("unrelated pair clobbered: %+v", got)
	}
}

func TestCompareConcurrentPairs(t *testing.T) {
	svc, st, _ := newTestService(t)

	var wg sync.WaitGroup
	for _, p := range [][2]models.Location{{sunny, cloudy}, {third, sunny}, {cloudy, third}} {
		wg.Add(1)
		go func(a, b models.Location) {
			defer wg.Done()
			if _, err := svc.Compare(context.Background(), coords(a), coords(b), nil); err != nil {
				t.Errorf("Compare: %v", err)
			}
		}(p[0], p[1])
	}
	wg.Wait()

	if len(st.cache) != 3 {
		t.Errorf("cache entries = %d, want 3", len(st.cache))
	}
}

func TestCompareFetchFailureStillAnswers(t *testing.T) {
	svc, st, f := newTestService(t)
	f.err = errors.New("archive down")

	res, err := svc.Compare(context.Background(), coords(sunny), coords(cloudy), nil)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if len(res.Months) != 0 || res.Winner != "tie" {
		t.Errorf("result = %+v, want empty tie", res)
	}
	if st.saves != 1 {
		t.Errorf("saves = %d, want 1", st.saves)
	}
}
