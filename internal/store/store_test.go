package store

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lox/weatherpwa/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store := New(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func f(v float64) *float64 { return &v }

var (
	austin = models.Location{Name: "Austin", Lat: 30.27, Lon: -97.74, Timezone: "America/Chicago", Region: "Texas", Country: "United States"}
	denver = models.Location{Name: "Denver", Lat: 39.74, Lon: -104.99, Timezone: "America/Denver"}
	boston = models.Location{Name: "Boston", Lat: 42.36, Lon: -71.06}
)

func TestMigrate_Idempotent(t *testing.T) {
	store := setupTestStore(t)
	if err := store.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	v, err := store.MigrationVersion()
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if v != len(migrations) {
		t.Errorf("version = %d, want %d", v, len(migrations))
	}
}

func TestGetSettings_Defaults(t *testing.T) {
	store := setupTestStore(t)

	s, err := store.GetSettings()
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if len(s.Locations) != 1 || s.Locations[0] != DefaultLocation {
		t.Errorf("Locations = %+v, want default", s.Locations)
	}
	if s.Units != "imperial" {
		t.Errorf("Units = %q, want imperial", s.Units)
	}
	if s.Comparisons == nil || len(s.Comparisons) != 0 {
		t.Errorf("Comparisons = %v, want empty slice", s.Comparisons)
	}
}

func TestSaveLocations(t *testing.T) {
	store := setupTestStore(t)

	added, err := store.SaveLocations([]models.Location{austin, denver})
	if err != nil {
		t.Fatalf("SaveLocations: %v", err)
	}
	if len(added) != 2 {
		t.Errorf("added = %d, want 2", len(added))
	}

	added, err = store.SaveLocations([]models.Location{boston, austin})
	if err != nil {
		t.Fatalf("SaveLocations: %v", err)
	}
	if len(added) != 1 || added[0].Name != "Boston" {
		t.Errorf("added = %+v, want only Boston", added)
	}

	locs, err := store.GetLocations()
	if err != nil {
		t.Fatalf("GetLocations: %v", err)
	}
	if len(locs) != 2 || locs[0].Name != "Boston" || locs[1] != austin {
		t.Errorf("locations = %+v, want [Boston Austin] in order", locs)
	}
}

func TestSaveUnits(t *testing.T) {
	store := setupTestStore(t)

	if err := store.SaveUnits("metric"); err != nil {
		t.Fatalf("SaveUnits: %v", err)
	}
	if err := store.SaveUnits("imperial"); err != nil {
		t.Fatalf("SaveUnits: %v", err)
	}
	s, err := store.GetSettings()
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if s.Units != "imperial" {
		t.Errorf("Units = %q", s.Units)
	}
}

func TestKnownLocations(t *testing.T) {
	store := setupTestStore(t)

	if _, err := store.SaveLocations([]models.Location{austin}); err != nil {
		t.Fatalf("SaveLocations: %v", err)
	}
	prefs := []models.ComparisonPref{
		{Loc1: austin, Loc2: denver, HiddenMetrics: []string{"hot_days"}},
		{Loc1: denver, Loc2: boston},
	}
	if err := store.SaveComparisons(prefs); err != nil {
		t.Fatalf("SaveComparisons: %v", err)
	}

	got, err := store.GetComparisonPrefs()
	if err != nil {
		t.Fatalf("GetComparisonPrefs: %v", err)
	}
	if len(got) != 2 || got[0].HiddenMetrics[0] != "hot_days" || got[1].HiddenMetrics == nil {
		t.Errorf("prefs = %+v", got)
	}

	known, err := store.KnownLocations()
	if err != nil {
		t.Fatalf("KnownLocations: %v", err)
	}
	var names []string
	for _, l := range known {
		names = append(names, l.Name)
	}
	if len(names) != 3 || names[0] != "Austin" || names[1] != "Denver" || names[2] != "Boston" {
		t.Errorf("known = %v, want [Austin Denver Boston]", names)
	}
}

func TestHistory(t *testing.T) {
	store := setupTestStore(t)
	key := austin.Key()

	if ok, err := store.HasHistory(key); err != nil || ok {
		t.Fatalf("HasHistory = %v, %v; want false", ok, err)
	}

	n, err := store.AppendHistory(key, []models.HistoryRecord{
		{Date: "2024-05-02", High: f(88), Low: f(70), Precip: f(0)},
		{Date: "2024-05-01", High: f(85), Low: nil, Precip: f(0.2)},
		{Date: "2024-03-01", High: f(70), Low: f(50)},
	}, "2024-04-01")
	if err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}
	if n != 3 {
		t.Errorf("inserted = %d, want 3", n)
	}

	// existing dates are kept, not overwritten
	n, err = store.AppendHistory(key, []models.HistoryRecord{
		{Date: "2024-05-02", High: f(99)},
		{Date: "2024-05-03", High: f(90)},
	}, "2024-04-01")
	if err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}
	if n != 1 {
		t.Errorf("inserted = %d, want 1", n)
	}

	got, err := store.GetHistory(key)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3 (pruned 2024-03-01)", len(got))
	}
	if got[0].Date != "2024-05-01" || got[2].Date != "2024-05-03" {
		t.Errorf("dates = %s..%s", got[0].Date, got[2].Date)
	}
	if got[0].Low != nil {
		t.Errorf("Low = %v, want nil", *got[0].Low)
	}
	if *got[1].High != 88 {
		t.Errorf("High = %v, want 88", *got[1].High)
	}

	empty, err := store.GetHistory(denver.Key())
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("GetHistory(unknown) = %v, %v; want empty slice", empty, err)
	}
}

func TestComparisonCache(t *testing.T) {
	store := setupTestStore(t)

	got, err := store.LoadComparisonCache()
	if err != nil {
		t.Fatalf("LoadComparisonCache: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("empty cache has %d entries", len(got))
	}

	entry := models.ComparisonEntry{
		Loc1Key: austin.Key(),
		Loc2Key: denver.Key(),
		Loc1Days: []models.DailyRecord{
			{Date: "2024-01-01", High: f(60), ApparentHigh: nil},
		},
		Loc2Days: []models.DailyRecord{
			{Date: "2024-01-01", High: f(40), ApparentHigh: f(35)},
		},
	}
	if err := store.SaveComparisonCache(map[string]models.ComparisonEntry{"a|b": entry}); err != nil {
		t.Fatalf("SaveComparisonCache: %v", err)
	}

	got, err = store.LoadComparisonCache()
	if err != nil {
		t.Fatalf("LoadComparisonCache: %v", err)
	}
	e, ok := got["a|b"]
	if !ok {
		t.Fatal("entry a|b missing")
	}
	if len(e.Loc1Days) != 1 || *e.Loc1Days[0].High != 60 {
		t.Errorf("Loc1Days = %+v", e.Loc1Days)
	}
	// a stored null apparent_high is not a legacy record
	if e.Loc1Days[0].LegacySchema() {
		t.Error("record with null apparent_high reported legacy")
	}
	if *e.Loc2Days[0].ApparentHigh != 35 {
		t.Errorf("ApparentHigh = %v", e.Loc2Days[0].ApparentHigh)
	}

	// whole-document replace
	if err := store.SaveComparisonCache(map[string]models.ComparisonEntry{"c|d": {}}); err != nil {
		t.Fatalf("SaveComparisonCache: %v", err)
	}
	got, _ = store.LoadComparisonCache()
	if _, ok := got["a|b"]; ok || len(got) != 1 {
		t.Errorf("after replace = %v", got)
	}
}

func TestComparisonCacheSkipsUndecodableEntry(t *testing.T) {
	store := setupTestStore(t)

	good := models.ComparisonEntry{
		Loc1Key:  austin.Key(),
		Loc2Key:  denver.Key(),
		Loc1Days: []models.DailyRecord{{Date: "2024-01-01", High: f(60)}},
	}
	if err := store.SaveComparisonCache(map[string]models.ComparisonEntry{"a|b": good}); err != nil {
		t.Fatalf("SaveComparisonCache: %v", err)
	}
	_, err := store.db.Exec(`
		INSERT INTO comparison_cache (pair_key, entry, updated_at) VALUES (?, ?, ?)
	`, "c|d", `{"loc1_key":"c","loc2_key":"d","loc1_days":[{"date":"2024-01-01","apparent_high":"warm"}]}`, time.Now())
	if err != nil {
		t.Fatalf("insert bad entry: %v", err)
	}

	got, err := store.LoadComparisonCache()
	if err != nil {
		t.Fatalf("LoadComparisonCache: %v", err)
	}
	if _, ok := got["c|d"]; ok {
		t.Error("undecodable entry c|d returned")
	}
	if e, ok := got["a|b"]; !ok || len(e.Loc1Days) != 1 {
		t.Errorf("entry a|b = %+v, %v", e, ok)
	}

	// a save after the skip rewrites the cache without the bad row
	got["c|d"] = models.ComparisonEntry{Loc1Key: "c", Loc2Key: "d"}
	if err := store.SaveComparisonCache(got); err != nil {
		t.Fatalf("SaveComparisonCache: %v", err)
	}
	got, err = store.LoadComparisonCache()
	if err != nil || len(got) != 2 {
		t.Errorf("after resave = %v, %v; want 2 entries", got, err)
	}
}

func TestIngestRuns(t *testing.T) {
	store := setupTestStore(t)
	now := time.Date(2024, 6, 1, 5, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	ok, err := store.StartIngestRun("open-meteo", "forecast", austin.Key())
	if err != nil {
		t.Fatalf("StartIngestRun: %v", err)
	}
	ok.Succeed(14)
	if err := store.CompleteIngestRun(ok); err != nil {
		t.Fatalf("CompleteIngestRun: %v", err)
	}

	now = now.Add(time.Minute)
	bad, err := store.StartIngestRun("nws", "alerts", "")
	if err != nil {
		t.Fatalf("StartIngestRun: %v", err)
	}
	bad.Fail(errors.New("status 500"))
	if err := store.CompleteIngestRun(bad); err != nil {
		t.Fatalf("CompleteIngestRun: %v", err)
	}

	// still running, not reported
	if _, err := store.StartIngestRun("usno", "sun-moon", ""); err != nil {
		t.Fatalf("StartIngestRun: %v", err)
	}

	errs, err := store.GetRecentIngestErrors(10)
	if err != nil {
		t.Fatalf("GetRecentIngestErrors: %v", err)
	}
	if len(errs) != 1 {
		t.Fatalf("len(errs) = %d, want 1", len(errs))
	}
	if errs[0].Source != "nws" || errs[0].Message != "status 500" || errs[0].LocationKey != "" {
		t.Errorf("err = %+v", errs[0])
	}
}
