package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRunTickerRunsImmediatelyAndOnInterval(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int64
	trigger := &fakeTrigger{triggerFn: func(ctx context.Context) (*domain.Run, error) {
		if calls.Add(1) == 3 {
			cancel()
		}
		return &domain.Run{ID: "run", Status: domain.RunStatusCompleted}, nil
	}}

	ticker, err := NewRunTicker(trigger, 5*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewRunTicker() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- ticker.Start(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after cancellation")
	}
	if calls.Load() < 3 {
		t.Fatalf("trigger calls = %d, want at least 3", calls.Load())
	}
}

func TestRunTickerSkipsRunInProgress(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	ticker, _ := NewRunTicker(&fakeTrigger{triggerFn: func(ctx context.Context) (*domain.Run, error) {
		return nil, domain.ErrRunInProgress
	}}, time.Hour, zap.New(core))

	if err := ticker.tick(context.Background()); err != nil {
		t.Fatalf("tick() error = %v, want nil for run in progress", err)
	}
	if logs.FilterMessageSnippet("another run is in progress").Len() != 1 {
		t.Fatalf("skip log entries = %d, want 1", logs.FilterMessageSnippet("another run is in progress").Len())
	}
}

func TestRunTickerSurvivesFailedRun(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int64
	trigger := &fakeTrigger{triggerFn: func(ctx context.Context) (*domain.Run, error) {
		if calls.Add(1) >= 2 {
			cancel()
		}
		return nil, errors.New("credentials unavailable")
	}}

	core, logs := observer.New(zapcore.ErrorLevel)
	ticker, _ := NewRunTicker(trigger, 5*time.Millisecond, zap.New(core))

	if err := ticker.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if calls.Load() < 2 {
		t.Fatalf("trigger calls = %d, want ticker to keep going after a failure", calls.Load())
	}
	if logs.FilterMessage("initial acquisition run failed").Len() != 1 {
		t.Fatal("initial failure was not logged")
	}
}

func TestNewRunTickerDefaults(t *testing.T) {
	t.Parallel()

	if _, err := NewRunTicker(nil, time.Minute, nil); err == nil {
		t.Fatal("NewRunTicker(nil) error = nil, want error")
	}

	ticker, err := NewRunTicker(&fakeTrigger{}, 0, nil)
	if err != nil {
		t.Fatalf("NewRunTicker() error = %v", err)
	}
	if ticker.interval != defaultAcquisitionInterval {
		t.Fatalf("interval = %s, want %s", ticker.interval, defaultAcquisitionInterval)
	}
}
