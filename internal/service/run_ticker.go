package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
	"go.uber.org/zap"
)

const defaultAcquisitionInterval = time.Hour

// RunTrigger starts one synchronous acquisition run.
type RunTrigger interface {
	TriggerRun(ctx context.Context) (*domain.Run, error)
}

// RunTicker triggers an acquisition run at start and then on every interval.
type RunTicker struct {
	acquisition RunTrigger
	logger      *zap.Logger
	interval    time.Duration
}

func NewRunTicker(acquisition RunTrigger, interval time.Duration, logger *zap.Logger) (*RunTicker, error) {
	if acquisition == nil {
		return nil, fmt.Errorf("run trigger is required")
	}
	if interval <= 0 {
		interval = defaultAcquisitionInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RunTicker{
		acquisition: acquisition,
		logger:      logger,
		interval:    interval,
	}, nil
}

func (t *RunTicker) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := t.tick(ctx); err != nil && ctx.Err() == nil {
		t.logger.Error("initial acquisition run failed", zap.Error(err))
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := t.tick(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				t.logger.Error("scheduled acquisition run failed", zap.Error(err))
			}
		}
	}
}

func (t *RunTicker) tick(ctx context.Context) error {
	run, err := t.acquisition.TriggerRun(ctx)
	if errors.Is(err, domain.ErrRunInProgress) {
		t.logger.Info("skipping scheduled acquisition run, another run is in progress")
		return nil
	}
	if err != nil {
		return err
	}

	t.logger.Info("scheduled acquisition run finished",
		zap.String("runId", run.ID),
		zap.String("status", run.Status.String()),
		zap.Duration("nextIn", t.interval),
	)
	return nil
}
