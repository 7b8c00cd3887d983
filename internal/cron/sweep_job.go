package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/billforge/billforge-backend/internal/sweeper"
	"github.com/billforge/billforge-backend/pkg/logger"
)

// SweepJobParams configures the scheduled subscription sweep.
type SweepJobParams struct {
	Logger  *logger.Logger
	Sweeper sweeper.Service
	Now     func() time.Time
}

// NewSweepJob constructs the renewal/downgrade sweep job.
func NewSweepJob(params SweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("sweeper service required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &sweepJob{
		logg:    params.Logger,
		sweeper: params.Sweeper,
		now:     now,
	}, nil
}

type sweepJob struct {
	logg    *logger.Logger
	sweeper sweeper.Service
	now     func() time.Time
}

func (j *sweepJob) Name() string { return "subscription_sweep" }

func (j *sweepJob) Run(ctx context.Context) error {
	result, err := j.sweeper.Sweep(ctx, j.now().UTC())
	if err != nil {
		return err
	}
	ctx = j.logg.WithFields(ctx, map[string]any{
		"renewed":    result.Renewed,
		"downgraded": result.Downgraded,
		"enforced":   result.Enforced,
		"failed":     result.Failed,
	})
	if result.Err != nil {
		// Partial failures surface through the job failure counter while the
		// rest of the batch stays committed.
		j.logg.Warn(ctx, "sweep finished with per-subscription errors")
		return result.Err
	}
	j.logg.Info(ctx, "sweep finished")
	return nil
}
