package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/lox/weatherpwa/internal/metrics"
)

func TestSchedulerJobs(t *testing.T) {
	h := newHarness(t)
	s := NewScheduler(h.r, time.UTC, "", "")
	if s.morning != "05:00" || s.evening != "17:00" {
		t.Errorf("defaults = %s/%s", s.morning, s.evening)
	}

	before := testutil.ToFloat64(metrics.ScheduledJobsTotal.WithLabelValues("morning"))
	s.Morning(context.Background())
	if got := testutil.ToFloat64(metrics.ScheduledJobsTotal.WithLabelValues("morning")); got != before+1 {
		t.Errorf("morning jobs = %v, want %v", got, before+1)
	}
	if h.cache.GetForecast(houston.Key()) == nil {
		t.Error("morning job did not refresh forecast")
	}
	if len(h.meteo.history) != 1 || h.meteo.history[0][0] != "2024-06-14" {
		t.Errorf("morning history calls = %v", h.meteo.history)
	}

	h.cache.ClearForecast("")
	s.Evening(context.Background())
	if h.cache.GetForecast(houston.Key()) == nil {
		t.Error("evening job did not refresh forecast")
	}
	if len(h.meteo.history) != 1 {
		t.Errorf("evening job fetched history")
	}
}

func TestSchedulerRun_StopsOnCancel(t *testing.T) {
	h := newHarness(t)
	s := NewScheduler(h.r, time.UTC, "05:00", "17:00")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
