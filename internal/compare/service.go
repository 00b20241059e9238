package compare

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lox/weatherpwa/internal/metrics"
	"github.com/lox/weatherpwa/internal/models"
)

// ErrLocationNotFound is returned when a requested coordinate pair matches
// no saved location and no location in a saved comparison.
var ErrLocationNotFound = errors.New("locations not found")

// CacheStore persists the comparison cache as a whole document.
type CacheStore interface {
	LoadComparisonCache() (map[string]models.ComparisonEntry, error)
	SaveComparisonCache(map[string]models.ComparisonEntry) error
}

// LocationResolver lists every location a comparison may refer to.
type LocationResolver interface {
	KnownLocations() ([]models.Location, error)
}

type LocationSummary struct {
	Name string `json:"name"`
	Key  string `json:"key"`
	Wins int    `json:"wins"`
}

type MonthResult struct {
	Month string         `json:"month"`
	Loc1  MonthlyMetrics `json:"loc1"`
	Loc2  MonthlyMetrics `json:"loc2"`
	MonthScore
	Winner string `json:"winner"`
	// loc1 minus loc2, before the tie band is applied
	SunsetDiffMin *int `json:"sunset_diff_min"`
}

type Result struct {
	Loc1   LocationSummary `json:"loc1"`
	Loc2   LocationSummary `json:"loc2"`
	Winner string          `json:"winner"`
	Months []MonthResult   `json:"months"`
	Window Window          `json:"window"`
}

// Service builds comparisons, keeping the archive cache for each location
// pair up to date as it goes.
type Service struct {
	store      CacheStore
	locations  LocationResolver
	reconciler *Reconciler
	now        func() time.Time

	// guards the read-modify-write of the cache document
	mu sync.Mutex
}

func NewService(store CacheStore, locations LocationResolver, reconciler *Reconciler) *Service {
	return &Service{
		store:      store,
		locations:  locations,
		reconciler: reconciler,
		now:        time.Now,
	}
}

// Compare scores location a against location b month by month. hidden lists
// criterion keys to leave out of the scoring.
func (s *Service) Compare(ctx context.Context, a, b models.Coordinates, hidden []string) (*Result, error) {
	loc1, loc2, err := s.resolve(a, b)
	if err != nil {
		if errors.Is(err, ErrLocationNotFound) {
			metrics.ComparisonsTotal.WithLabelValues("not_found").Inc()
		} else {
			metrics.ComparisonsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	w := ComparisonWindow(s.now())
	key1, key2 := loc1.Key(), loc2.Key()
	pair := PairKey(key1, key2)

	entry := s.loadEntry(pair, key1, key2)

	var days1, days2 []models.DailyRecord
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		days1 = s.reconciler.Reconcile(ctx, key1, loc1, entry.DaysFor(key1), w)
	}()
	go func() {
		defer wg.Done()
		days2 = s.reconciler.Reconcile(ctx, key2, loc2, entry.DaysFor(key2), w)
	}()
	wg.Wait()

	entry.SetDays(key1, days1)
	entry.SetDays(key2, days2)
	if err := s.persist(pair, entry); err != nil {
		log.Printf("compare: persist %s: %v", pair, err)
	}

	res := buildResult(loc1, loc2, days1, days2, w, toSet(hidden))
	metrics.ComparisonsTotal.WithLabelValues("ok").Inc()
	return res, nil
}

func (s *Service) resolve(a, b models.Coordinates) (models.Location, models.Location, error) {
	known, err := s.locations.KnownLocations()
	if err != nil {
		return models.Location{}, models.Location{}, fmt.Errorf("list known locations: %w", err)
	}
	byKey := make(map[string]models.Location, len(known))
	for _, l := range known {
		if _, ok := byKey[l.Key()]; !ok {
			byKey[l.Key()] = l
		}
	}
	loc1, ok1 := byKey[a.Key()]
	loc2, ok2 := byKey[b.Key()]
	if !ok1 || !ok2 {
		return models.Location{}, models.Location{}, ErrLocationNotFound
	}
	return loc1, loc2, nil
}

// loadEntry returns the cached entry for pair, or a fresh one with key1 as
// the first side. A load failure is treated as an empty cache.
func (s *Service) loadEntry(pair, key1, key2 string) models.ComparisonEntry {
	s.mu.Lock()
	cache, err := s.store.LoadComparisonCache()
	s.mu.Unlock()
	if err != nil {
		log.Printf("compare: load cache: %v", err)
	}
	if entry, ok := cache[pair]; ok {
		return entry
	}
	return models.ComparisonEntry{Loc1Key: key1, Loc2Key: key2}
}

// persist re-reads the cache, replaces only this pair and writes it back so
// concurrent updates to other pairs survive.
func (s *Service) persist(pair string, entry models.ComparisonEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cache, err := s.store.LoadComparisonCache()
	if err != nil {
		return fmt.Errorf("reload cache: %w", err)
	}
	if cache == nil {
		cache = make(map[string]models.ComparisonEntry)
	}
	cache[pair] = entry
	if err := s.store.SaveComparisonCache(cache); err != nil {
		return fmt.Errorf("save cache: %w", err)
	}
	return nil
}

func buildResult(loc1, loc2 models.Location, days1, days2 []models.DailyRecord, w Window, hidden map[string]bool) *Result {
	months1 := Aggregate(inWindow(days1, w))
	months2 := make(map[string]MonthlyMetrics)
	for _, m := range Aggregate(inWindow(days2, w)) {
		months2[m.Month] = m
	}

	res := &Result{
		Loc1:   LocationSummary{Name: loc1.Name, Key: loc1.Key()},
		Loc2:   LocationSummary{Name: loc2.Name, Key: loc2.Key()},
		Months: []MonthResult{},
		Window: w,
	}

	for _, m1 := range months1 {
		m2, ok := months2[m1.Month]
		if !ok {
			continue
		}
		score := ScoreMonth(m1, m2, hidden)
		mr := MonthResult{
			Month:      m1.Month,
			Loc1:       m1,
			Loc2:       m2,
			MonthScore: score,
			Winner:     score.Winner(),
		}
		if m1.AvgSunsetMin != nil && m2.AvgSunsetMin != nil {
			mr.SunsetDiffMin = ptr(*m1.AvgSunsetMin - *m2.AvgSunsetMin)
		}
		switch mr.Winner {
		case "loc1":
			res.Loc1.Wins++
		case "loc2":
			res.Loc2.Wins++
		}
		res.Months = append(res.Months, mr)
	}

	res.Winner = winnerOf(res.Loc1.Wins, res.Loc2.Wins)
	return res
}

func inWindow(days []models.DailyRecord, w Window) []models.DailyRecord {
	out := make([]models.DailyRecord, 0, len(days))
	for _, d := range days {
		if w.Contains(d.Date) {
			out = append(out, d)
		}
	}
	return out
}

func toSet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}
