package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/lox/weatherpwa/internal/metrics"
)

// Scheduler runs the refresh jobs on a daily cron: 05:00 forecasts plus
// yesterday's history, 17:00 forecasts again for the afternoon model runs.
type Scheduler struct {
	refresher *Refresher
	cron      *gocron.Scheduler
	morning   string
	evening   string
}

func NewScheduler(r *Refresher, loc *time.Location, morning, evening string) *Scheduler {
	if morning == "" {
		morning = "05:00"
	}
	if evening == "" {
		evening = "17:00"
	}
	return &Scheduler{
		refresher: r,
		cron:      gocron.NewScheduler(loc),
		morning:   morning,
		evening:   evening,
	}
}

func (s *Scheduler) Morning(ctx context.Context) {
	metrics.ScheduledJobsTotal.WithLabelValues("morning").Inc()
	log.Println("scheduler: running morning jobs")
	s.refresher.RefreshAllForecasts(ctx)
	s.refresher.AppendYesterday(ctx)
}

func (s *Scheduler) Evening(ctx context.Context) {
	metrics.ScheduledJobsTotal.WithLabelValues("evening").Inc()
	log.Println("scheduler: running evening jobs")
	s.refresher.RefreshAllForecasts(ctx)
}

// Run runs the startup fetch in the background, registers the cron jobs
// and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.cron.Every(1).Day().At(s.morning).Do(s.Morning, ctx); err != nil {
		return fmt.Errorf("schedule morning job: %w", err)
	}
	if _, err := s.cron.Every(1).Day().At(s.evening).Do(s.Evening, ctx); err != nil {
		return fmt.Errorf("schedule evening job: %w", err)
	}

	go s.refresher.Startup(ctx)

	s.cron.StartAsync()
	log.Printf("scheduler: started, jobs at %s and %s", s.morning, s.evening)

	<-ctx.Done()
	s.cron.Stop()
	log.Println("scheduler: shutting down")
	return nil
}
