package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/billforge/billforge-backend/internal/sweeper"
)

type stubSweeper struct {
	result *sweeper.SweepResult
	err    error
	gotNow time.Time
}

func (s *stubSweeper) Sweep(_ context.Context, now time.Time) (*sweeper.SweepResult, error) {
	s.gotNow = now
	return s.result, s.err
}

func TestSweepJobPassesClockAndSucceeds(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
	sweep := &stubSweeper{result: &sweeper.SweepResult{Renewed: 2, Downgraded: 1}}
	job, err := NewSweepJob(SweepJobParams{
		Logger:  testLogger(),
		Sweeper: sweep,
		Now:     func() time.Time { return fixed },
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if job.Name() != "subscription_sweep" {
		t.Fatalf("unexpected job name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run job: %v", err)
	}
	if !sweep.gotNow.Equal(fixed) {
		t.Fatalf("expected sweep clock %v, got %v", fixed, sweep.gotNow)
	}
}

func TestSweepJobSurfacesPartialFailures(t *testing.T) {
	sweep := &stubSweeper{result: &sweeper.SweepResult{Failed: 1, Err: errors.New("tenant 42: lock timeout")}}
	job, err := NewSweepJob(SweepJobParams{Logger: testLogger(), Sweeper: sweep})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected partial failures to fail the run")
	}
}

func TestSweepJobSurfacesSweepError(t *testing.T) {
	sweep := &stubSweeper{err: errors.New("list expired: connection refused")}
	job, err := NewSweepJob(SweepJobParams{Logger: testLogger(), Sweeper: sweep})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected sweep error to fail the run")
	}
}
