package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/lox/weatherpwa/internal/models"
)

const (
	DefaultUnits = "imperial"

	prefUnits = "units"
)

// DefaultLocation is returned by GetSettings until a location list is saved.
var DefaultLocation = models.Location{
	Name:     "Houston",
	Lat:      29.76,
	Lon:      -95.37,
	Timezone: "America/Chicago",
	Region:   "Texas",
	Country:  "United States",
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) GetSettings() (*models.Settings, error) {
	locs, err := s.GetLocations()
	if err != nil {
		return nil, fmt.Errorf("get locations: %w", err)
	}
	if len(locs) == 0 {
		locs = []models.Location{DefaultLocation}
	}

	units, err := s.getPreference(prefUnits)
	if err != nil {
		return nil, fmt.Errorf("get units: %w", err)
	}
	if units == "" {
		units = DefaultUnits
	}

	prefs, err := s.GetComparisonPrefs()
	if err != nil {
		return nil, fmt.Errorf("get comparison prefs: %w", err)
	}

	return &models.Settings{Locations: locs, Units: units, Comparisons: prefs}, nil
}

// GetLocations returns the saved locations in their saved order. Unlike
// GetSettings it does not substitute the default location.
func (s *Store) GetLocations() ([]models.Location, error) {
	rows, err := s.db.Query(`
		SELECT name, lat, lon, timezone, region, country
		FROM locations
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locs []models.Location
	for rows.Next() {
		var l models.Location
		if err := rows.Scan(&l.Name, &l.Lat, &l.Lon, &l.Timezone, &l.Region, &l.Country); err != nil {
			return nil, err
		}
		locs = append(locs, l)
	}
	return locs, rows.Err()
}

// SaveLocations replaces the saved location list and returns the locations
// that were not in the previous list.
func (s *Store) SaveLocations(locs []models.Location) ([]models.Location, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	old := make(map[string]bool)
	rows, err := tx.Query(`SELECT location_key FROM locations`)
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return nil, err
		}
		old[key] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(`DELETE FROM locations`); err != nil {
		return nil, fmt.Errorf("clear locations: %w", err)
	}

	var added []models.Location
	seen := make(map[string]bool)
	for i, l := range locs {
		key := l.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		if _, err := tx.Exec(`
			INSERT INTO locations (position, location_key, name, lat, lon, timezone, region, country)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, i, key, l.Name, l.Lat, l.Lon, l.Timezone, l.Region, l.Country); err != nil {
			return nil, fmt.Errorf("insert location %s: %w", key, err)
		}
		if !old[key] {
			added = append(added, l)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return added, nil
}

func (s *Store) SaveUnits(units string) error {
	return s.setPreference(prefUnits, units)
}

func (s *Store) getPreference(name string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM preferences WHERE name = ?`, name).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *Store) setPreference(name, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO preferences (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, name, value, s.now().UTC())
	return err
}

func (s *Store) GetComparisonPrefs() ([]models.ComparisonPref, error) {
	rows, err := s.db.Query(`SELECT loc1, loc2, hidden_metrics FROM comparison_prefs ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prefs := []models.ComparisonPref{}
	for rows.Next() {
		var loc1, loc2, hidden string
		if err := rows.Scan(&loc1, &loc2, &hidden); err != nil {
			return nil, err
		}
		var p models.ComparisonPref
		if err := json.Unmarshal([]byte(loc1), &p.Loc1); err != nil {
			return nil, fmt.Errorf("decode loc1: %w", err)
		}
		if err := json.Unmarshal([]byte(loc2), &p.Loc2); err != nil {
			return nil, fmt.Errorf("decode loc2: %w", err)
		}
		if err := json.Unmarshal([]byte(hidden), &p.HiddenMetrics); err != nil {
			return nil, fmt.Errorf("decode hidden metrics: %w", err)
		}
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

// SaveComparisons replaces the saved comparison shortcuts.
func (s *Store) SaveComparisons(prefs []models.ComparisonPref) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM comparison_prefs`); err != nil {
		return fmt.Errorf("clear comparison prefs: %w", err)
	}
	for i, p := range prefs {
		hidden := p.HiddenMetrics
		if hidden == nil {
			hidden = []string{}
		}
		loc1, err := json.Marshal(p.Loc1)
		if err != nil {
			return err
		}
		loc2, err := json.Marshal(p.Loc2)
		if err != nil {
			return err
		}
		h, err := json.Marshal(hidden)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`
			INSERT INTO comparison_prefs (position, loc1, loc2, hidden_metrics) VALUES (?, ?, ?, ?)
		`, i, string(loc1), string(loc2), string(h)); err != nil {
			return fmt.Errorf("insert comparison pref %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// KnownLocations is every location a comparison may reference: the saved
// list followed by any comparison-preference locations, de-duplicated by
// key.
func (s *Store) KnownLocations() ([]models.Location, error) {
	saved, err := s.GetLocations()
	if err != nil {
		return nil, fmt.Errorf("get locations: %w", err)
	}
	prefs, err := s.GetComparisonPrefs()
	if err != nil {
		return nil, fmt.Errorf("get comparison prefs: %w", err)
	}

	seen := make(map[string]bool)
	var out []models.Location
	add := func(l models.Location) {
		if k := l.Key(); !seen[k] {
			seen[k] = true
			out = append(out, l)
		}
	}
	for _, l := range saved {
		add(l)
	}
	for _, p := range prefs {
		add(p.Loc1)
		add(p.Loc2)
	}
	return out, nil
}

// AppendHistory inserts records whose dates are not yet stored for key and
// prunes anything dated before cutoff (YYYY-MM-DD).
func (s *Store) AppendHistory(key string, records []models.HistoryRecord, cutoff string) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, r := range records {
		res, err := tx.Exec(`
			INSERT INTO history (location_key, date, high, low, precip)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(location_key, date) DO NOTHING
		`, key, r.Date, r.High, r.Low, r.Precip)
		if err != nil {
			return 0, fmt.Errorf("insert history %s: %w", r.Date, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if _, err := tx.Exec(`DELETE FROM history WHERE location_key = ? AND date < ?`, key, cutoff); err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func (s *Store) GetHistory(key string) ([]models.HistoryRecord, error) {
	rows, err := s.db.Query(`
		SELECT date, high, low, precip
		FROM history
		WHERE location_key = ?
		ORDER BY date ASC
	`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.HistoryRecord{}
	for rows.Next() {
		var r models.HistoryRecord
		var high, low, precip sql.NullFloat64
		if err := rows.Scan(&r.Date, &high, &low, &precip); err != nil {
			return nil, err
		}
		r.High = nullFloat(high)
		r.Low = nullFloat(low)
		r.Precip = nullFloat(precip)
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Store) HasHistory(key string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM history WHERE location_key = ?`, key).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// LoadComparisonCache reads every cached comparison entry keyed by pair key.
// Entries that no longer decode are skipped, so that pair is refetched and
// overwritten on its next save.
func (s *Store) LoadComparisonCache() (map[string]models.ComparisonEntry, error) {
	rows, err := s.db.Query(`SELECT pair_key, entry FROM comparison_cache`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]models.ComparisonEntry)
	for rows.Next() {
		var key, doc string
		if err := rows.Scan(&key, &doc); err != nil {
			return nil, err
		}
		var e models.ComparisonEntry
		if err := json.Unmarshal([]byte(doc), &e); err != nil {
			log.Printf("store: dropping comparison entry %s: %v", key, err)
			continue
		}
		out[key] = e
	}
	return out, rows.Err()
}

// SaveComparisonCache replaces the whole comparison cache in one
// transaction. A failed save leaves the previous contents in place.
func (s *Store) SaveComparisonCache(entries map[string]models.ComparisonEntry) error {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM comparison_cache`); err != nil {
		return fmt.Errorf("clear comparison cache: %w", err)
	}
	now := s.now().UTC()
	for _, k := range keys {
		doc, err := json.Marshal(entries[k])
		if err != nil {
			return fmt.Errorf("encode comparison entry %s: %w", k, err)
		}
		if _, err := tx.Exec(`
			INSERT INTO comparison_cache (pair_key, entry, updated_at) VALUES (?, ?, ?)
		`, k, string(doc), now); err != nil {
			return fmt.Errorf("insert comparison entry %s: %w", k, err)
		}
	}
	return tx.Commit()
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
