package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	_ "modernc.org/sqlite"

	"github.com/lox/weatherpwa/internal/api"
	"github.com/lox/weatherpwa/internal/cache"
	"github.com/lox/weatherpwa/internal/compare"
	"github.com/lox/weatherpwa/internal/config"
	"github.com/lox/weatherpwa/internal/ingest"
	"github.com/lox/weatherpwa/internal/models"
	"github.com/lox/weatherpwa/internal/providers/nws"
	"github.com/lox/weatherpwa/internal/providers/openmeteo"
	"github.com/lox/weatherpwa/internal/providers/usno"
	"github.com/lox/weatherpwa/internal/store"
)

type CLI struct {
	Config string `help:"Path to YAML config file." type:"path" env:"WEATHER_CONFIG"`

	Serve    ServeCmd    `cmd:"" default:"withargs" help:"Run the HTTP server and refresh scheduler."`
	Refresh  RefreshCmd  `cmd:"" help:"Refresh forecasts for all saved locations once and exit."`
	Backfill BackfillCmd `cmd:"" help:"Backfill rolling history for saved locations that have none."`
	Compare  CompareCmd  `cmd:"" help:"Compare two known locations and print the result as JSON."`
}

type ServeCmd struct {
	NoPoll bool `help:"Disable the scheduler (server only, for local dev)."`
}

type RefreshCmd struct{}

type BackfillCmd struct{}

type CompareCmd struct {
	Lat1 float64  `required:"" help:"Latitude of the first location."`
	Lon1 float64  `required:"" help:"Longitude of the first location."`
	Lat2 float64  `required:"" help:"Latitude of the second location."`
	Lon2 float64  `required:"" help:"Longitude of the second location."`
	Hide []string `sep:"," help:"Comma separated criteria to leave out of scoring."`
}

type app struct {
	cfg       *config.Config
	db        *sql.DB
	store     *store.Store
	cache     *cache.Cache
	meteo     *openmeteo.Client
	nws       *nws.Client
	refresher *ingest.Refresher
	comparer  *compare.Service
}

func newApp(cfg *config.Config) (*app, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Println("database migrated")

	c := cache.New(cache.TTLs{
		Current:      cfg.Cache.CurrentTTL,
		Geocode:      cfg.Cache.GeocodeTTL,
		ForecastText: cfg.Cache.ForecastTextTTL,
	})
	meteo := openmeteo.New(openmeteo.Config{
		ForecastURL:    cfg.OpenMeteo.ForecastURL,
		AirQualityURL:  cfg.OpenMeteo.AirQualityURL,
		GeocodingURL:   cfg.OpenMeteo.GeocodingURL,
		ArchiveURL:     cfg.OpenMeteo.ArchiveURL,
		Timeout:        cfg.OpenMeteo.Timeout,
		ArchiveTimeout: cfg.OpenMeteo.ArchiveTimeout,
		Retries:        cfg.OpenMeteo.Retries,
	})
	nwsClient := nws.New(nws.Config{
		BaseURL:   cfg.NWS.BaseURL,
		UserAgent: cfg.NWS.UserAgent,
		Timeout:   cfg.NWS.Timeout,
	})
	astro := usno.New(cfg.USNO.BaseURL, cfg.USNO.Timeout)

	refresher := ingest.NewRefresher(st, c, meteo, nwsClient, astro, cfg.Location())
	refresher.SetHistoryDays(cfg.HistoryDays)

	comparer := compare.NewService(st, st, compare.NewReconciler(meteo, cfg.Compare.FetchTimeout))

	return &app{
		cfg:       cfg,
		db:        db,
		store:     st,
		cache:     c,
		meteo:     meteo,
		nws:       nwsClient,
		refresher: refresher,
		comparer:  comparer,
	}, nil
}

func (cmd *ServeCmd) Run(a *app) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if !cmd.NoPoll {
		sched := ingest.NewScheduler(a.refresher, a.cfg.Location(), a.cfg.Schedule.Morning, a.cfg.Schedule.Evening)
		go func() {
			if err := sched.Run(ctx); err != nil {
				log.Printf("scheduler: %v", err)
			}
		}()
	} else {
		log.Println("polling disabled (--no-poll)")
	}

	server := api.NewServer(api.Deps{
		Store:     a.store,
		Cache:     a.cache,
		Refresher: a.refresher,
		Geocoder:  a.meteo,
		Alerts:    a.nws,
		Comparer:  a.comparer,
	}, a.cfg.Port)
	return server.Run(ctx)
}

func (cmd *RefreshCmd) Run(a *app) error {
	ctx := context.Background()
	locs := a.refresher.Locations()
	if n := a.refresher.RefreshAllForecasts(ctx); n < len(locs) {
		return fmt.Errorf("refreshed %d of %d locations", n, len(locs))
	}
	a.refresher.AppendYesterday(ctx)
	log.Println("done")
	return nil
}

func (cmd *BackfillCmd) Run(a *app) error {
	a.refresher.BackfillMissing(context.Background())
	log.Println("done")
	return nil
}

func (cmd *CompareCmd) Run(a *app) error {
	if err := compare.CheckCriteria(cmd.Hide); err != nil {
		return err
	}
	res, err := a.comparer.Compare(context.Background(),
		models.Coordinates{Lat: cmd.Lat1, Lon: cmd.Lon1},
		models.Coordinates{Lat: cmd.Lat2, Lon: cmd.Lon2},
		cmd.Hide,
	)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("weatherpwa"),
		kong.Description("Multi-provider weather aggregator with location comparison."),
		kong.UsageOnError(),
	)

	cfg, err := config.Load(cli.Config)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	a, err := newApp(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer a.db.Close()

	kctx.FatalIfErrorf(kctx.Run(a))
}
