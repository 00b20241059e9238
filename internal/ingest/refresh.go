package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lox/weatherpwa/internal/cache"
	"github.com/lox/weatherpwa/internal/models"
	"github.com/lox/weatherpwa/internal/providers/nws"
	"github.com/lox/weatherpwa/internal/providers/openmeteo"
	"github.com/lox/weatherpwa/internal/providers/usno"
	"github.com/lox/weatherpwa/internal/store"
)

const DefaultHistoryDays = 60

type ForecastSource interface {
	FetchForecast(ctx context.Context, loc models.Location) (*openmeteo.ForecastResponse, error)
	FetchAirQuality(ctx context.Context, loc models.Location) (*openmeteo.AirQualityResponse, error)
	FetchCurrent(ctx context.Context, loc models.Location) (*models.CurrentConditions, error)
	FetchHistorical(ctx context.Context, loc models.Location, start, end string) ([]models.HistoryRecord, error)
}

type NWSSource interface {
	Overlay(ctx context.Context, wd *models.WeatherData)
	FetchObservation(ctx context.Context, lat, lon float64) (*nws.Observation, error)
	FetchAlerts(ctx context.Context, lat, lon float64) ([]models.Alert, error)
	FetchForecastText(ctx context.Context, lat, lon float64) ([]models.ForecastPeriod, error)
}

type AstroSource interface {
	FetchSunMoon(ctx context.Context, lat, lon float64, timezone string) (models.SunMoon, error)
}

// Refresher runs the data-fetch jobs that keep the cache and history
// store current. Every job tolerates provider failures and logs them.
type Refresher struct {
	store       *store.Store
	cache       *cache.Cache
	meteo       ForecastSource
	nws         NWSSource
	astro       AstroSource
	loc         *time.Location
	historyDays int
	now         func() time.Time
}

func NewRefresher(st *store.Store, c *cache.Cache, meteo ForecastSource, nwsSrc NWSSource, astro AstroSource, loc *time.Location) *Refresher {
	if loc == nil {
		loc = time.Local
	}
	return &Refresher{
		store:       st,
		cache:       c,
		meteo:       meteo,
		nws:         nwsSrc,
		astro:       astro,
		loc:         loc,
		historyDays: DefaultHistoryDays,
		now:         time.Now,
	}
}

// SetHistoryDays sets the rolling history window length.
func (r *Refresher) SetHistoryDays(n int) {
	if n > 0 {
		r.historyDays = n
	}
}

func (r *Refresher) Locations() []models.Location {
	settings, err := r.store.GetSettings()
	if err != nil {
		log.Printf("refresh: load settings: %v", err)
		return []models.Location{store.DefaultLocation}
	}
	return settings.Locations
}

// track records fn as an ingest run.
func (r *Refresher) track(source, endpoint, key string, fn func() (int, error)) error {
	run, err := r.store.StartIngestRun(source, endpoint, key)
	if err != nil {
		log.Printf("refresh: start ingest run: %v", err)
	}
	n, ferr := fn()
	if ferr != nil {
		run.Fail(ferr)
	} else {
		run.Succeed(n)
	}
	if err := r.store.CompleteIngestRun(run); err != nil {
		log.Printf("refresh: complete ingest run: %v", err)
	}
	return ferr
}

// RefreshAllForecasts refreshes every saved location and returns how many
// succeeded.
func (r *Refresher) RefreshAllForecasts(ctx context.Context) int {
	locs := r.Locations()
	log.Printf("refresh: refreshing forecasts for %d locations", len(locs))
	ok := 0
	for _, loc := range locs {
		if ctx.Err() != nil {
			break
		}
		if err := r.RefreshLocation(ctx, loc); err != nil {
			log.Printf("refresh: forecast %s: %v", loc.Name, err)
			continue
		}
		ok++
	}
	return ok
}

// RefreshLocation fetches the full forecast view for loc and replaces it in
// the cache. Only the primary forecast is required; air quality, the NWS
// overlay, alerts, text forecast and sun/moon are best effort.
func (r *Refresher) RefreshLocation(ctx context.Context, loc models.Location) error {
	key := loc.Key()
	var fc *openmeteo.ForecastResponse
	err := r.track("open-meteo", "forecast", key, func() (int, error) {
		var err error
		fc, err = r.meteo.FetchForecast(ctx, loc)
		if err != nil {
			return 0, err
		}
		return len(fc.Daily.Time), nil
	})
	if err != nil {
		return fmt.Errorf("fetch forecast: %w", err)
	}

	aq, err := r.meteo.FetchAirQuality(ctx, loc)
	if err != nil {
		log.Printf("refresh: air quality %s: %v", loc.Name, err)
	}

	wd := openmeteo.ParseWeather(fc, aq, loc, r.now())
	if r.nws != nil {
		r.nws.Overlay(ctx, wd)

		_ = r.track("nws", "alerts", key, func() (int, error) {
			alerts, err := r.nws.FetchAlerts(ctx, loc.Lat, loc.Lon)
			if err != nil {
				return 0, err
			}
			wd.Alerts = alerts
			return len(alerts), nil
		})

		if text, err := r.nws.FetchForecastText(ctx, loc.Lat, loc.Lon); err != nil {
			log.Printf("refresh: forecast text %s: %v", loc.Name, err)
		} else {
			wd.ForecastText = text
		}
	}
	if wd.Alerts == nil {
		wd.Alerts = []models.Alert{}
	}

	if r.astro != nil {
		sm, err := r.astro.FetchSunMoon(ctx, loc.Lat, loc.Lon, loc.TZ())
		if err != nil {
			log.Printf("refresh: sun/moon %s: %v", loc.Name, err)
			sm = models.SunMoon{Moon: usno.EstimateMoon(r.now())}
		}
		wd.SunMoon = sm
	}

	r.cache.SetForecast(key, wd)
	log.Printf("refresh: forecast updated for %s", loc.Name)
	return nil
}

// RefreshCurrent refreshes current conditions for every saved location,
// keyed by location key. Entries younger than the current TTL are reused.
// When a fetch fails the last cached value, however old, is returned.
// Stale forecast text is refreshed afterwards on its own TTL.
func (r *Refresher) RefreshCurrent(ctx context.Context) map[string]*models.CurrentConditions {
	locs := r.Locations()
	ttl := r.cache.TTLs().Current
	results := make(map[string]*models.CurrentConditions, len(locs))

	for _, loc := range locs {
		key := loc.Key()
		if age, ok := r.cache.CurrentAge(key); ok && age < ttl {
			if cur := r.cache.GetStaleCurrent(key); cur != nil {
				results[key] = cur
				continue
			}
		}

		cur, err := r.meteo.FetchCurrent(ctx, loc)
		if err != nil {
			log.Printf("refresh: current %s: %v", loc.Name, err)
			if stale := r.cache.GetStaleCurrent(key); stale != nil {
				results[key] = stale
			}
			continue
		}

		if r.nws != nil {
			if obs, err := r.nws.FetchObservation(ctx, loc.Lat, loc.Lon); err != nil {
				log.Printf("refresh: observation %s: %v", loc.Name, err)
			} else {
				nws.OverlayCurrent(&cur.CurrentWeather, obs)
			}
		}
		cur.FetchedAt = r.now()
		r.cache.SetCurrent(key, cur)
		results[key] = cur
	}

	if r.nws != nil {
		for _, loc := range locs {
			key := loc.Key()
			if !r.cache.ForecastTextStale(key) {
				continue
			}
			text, err := r.nws.FetchForecastText(ctx, loc.Lat, loc.Lon)
			if err != nil {
				log.Printf("refresh: forecast text %s: %v", loc.Name, err)
				continue
			}
			if len(text) > 0 {
				r.cache.UpdateForecastText(key, text)
			}
		}
	}
	return results
}

func (r *Refresher) today() time.Time {
	n := r.now().In(r.loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, r.loc)
}

func (r *Refresher) historyCutoff() string {
	return r.today().AddDate(0, 0, -r.historyDays).Format(models.DateLayout)
}

// BackfillHistory loads the full rolling history window for loc.
func (r *Refresher) BackfillHistory(ctx context.Context, loc models.Location) error {
	start := r.historyCutoff()
	end := r.today().AddDate(0, 0, -1).Format(models.DateLayout)
	return r.appendHistory(ctx, loc, "history/backfill", start, end)
}

// AppendYesterday adds yesterday's record for every saved location.
func (r *Refresher) AppendYesterday(ctx context.Context) {
	yesterday := r.today().AddDate(0, 0, -1).Format(models.DateLayout)
	for _, loc := range r.Locations() {
		if err := r.appendHistory(ctx, loc, "history/daily", yesterday, yesterday); err != nil {
			log.Printf("refresh: append history %s: %v", loc.Name, err)
		}
	}
}

func (r *Refresher) appendHistory(ctx context.Context, loc models.Location, endpoint, start, end string) error {
	key := loc.Key()
	return r.track("open-meteo", endpoint, key, func() (int, error) {
		records, err := r.meteo.FetchHistorical(ctx, loc, start, end)
		if err != nil {
			return 0, fmt.Errorf("fetch history: %w", err)
		}
		n, err := r.store.AppendHistory(key, filterHistory(key, records), r.historyCutoff())
		if err != nil {
			return 0, fmt.Errorf("store history: %w", err)
		}
		log.Printf("refresh: stored %d history days for %s", n, loc.Name)
		return n, nil
	})
}

// BackfillMissing backfills every saved location that has no history.
func (r *Refresher) BackfillMissing(ctx context.Context) {
	for _, loc := range r.Locations() {
		has, err := r.store.HasHistory(loc.Key())
		if err != nil {
			log.Printf("refresh: check history %s: %v", loc.Name, err)
			continue
		}
		if has {
			continue
		}
		log.Printf("refresh: backfilling history for %s", loc.Name)
		if err := r.BackfillHistory(ctx, loc); err != nil {
			log.Printf("refresh: backfill %s: %v", loc.Name, err)
		}
	}
}

// OnLocationsSaved backfills history and fetches a forecast for locations
// newly added to the saved list.
func (r *Refresher) OnLocationsSaved(ctx context.Context, added []models.Location) {
	for _, loc := range added {
		if err := r.BackfillHistory(ctx, loc); err != nil {
			log.Printf("refresh: backfill %s: %v", loc.Name, err)
		}
		if err := r.RefreshLocation(ctx, loc); err != nil {
			log.Printf("refresh: forecast for new location %s: %v", loc.Name, err)
		}
	}
}

// Startup is the initial fetch run when the server starts.
func (r *Refresher) Startup(ctx context.Context) {
	log.Println("refresh: running startup fetch")
	r.RefreshAllForecasts(ctx)
	r.BackfillMissing(ctx)
	log.Println("refresh: startup fetch complete")
}

func validDate(s string) bool {
	_, err := time.Parse(models.DateLayout, s)
	return err == nil
}
