package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
	"github.com/kursadbilgin/issuance-engine/internal/observability"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBatchSize  = 20
	defaultBatchDelay = 5 * time.Second
)

// CredentialRunner drives one credential to a terminal outcome.
type CredentialRunner interface {
	Run(ctx context.Context, cred domain.Credential) CredentialOutcome
}

// BatchSink receives the codes of each finished batch. A sink error stops the
// schedule before the next batch starts.
type BatchSink func(ctx context.Context, batchIndex int, codes []string) error

// ScheduleResult summarizes a completed or aborted schedule.
type ScheduleResult struct {
	Codes          []string
	Succeeded      int
	Failed         int
	Batches        int
	BatchesStarted int
}

type BatchScheduler struct {
	runner     CredentialRunner
	batchSize  int
	batchDelay time.Duration
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewBatchScheduler(runner CredentialRunner, batchSize int, batchDelay time.Duration, logger *zap.Logger) (*BatchScheduler, error) {
	if runner == nil {
		return nil, fmt.Errorf("credential runner is required")
	}
	if batchSize < 1 {
		batchSize = defaultBatchSize
	}
	if batchDelay < 0 {
		batchDelay = defaultBatchDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BatchScheduler{
		runner:     runner,
		batchSize:  batchSize,
		batchDelay: batchDelay,
		logger:     logger,
		now:        time.Now,
		sleep:      sleepWithContext,
	}, nil
}

func (s *BatchScheduler) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Partition splits creds into contiguous batches of size; the last may be shorter.
func Partition(creds []domain.Credential, size int) [][]domain.Credential {
	if size < 1 {
		size = 1
	}
	if len(creds) == 0 {
		return nil
	}

	batches := make([][]domain.Credential, 0, (len(creds)+size-1)/size)
	for start := 0; start < len(creds); start += size {
		end := min(start+size, len(creds))
		batches = append(batches, creds[start:end])
	}
	return batches
}

// Run executes batches strictly in sequence and every credential of a batch
// concurrently, pausing batchDelay between batches.
func (s *BatchScheduler) Run(ctx context.Context, creds []domain.Credential, sink BatchSink) (ScheduleResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	batches := Partition(creds, s.batchSize)
	aggregator := NewResultAggregator(len(creds))
	logger := observability.WithContextLogger(s.logger, ctx)

	result := ScheduleResult{Batches: len(batches)}
	finish := func(err error) (ScheduleResult, error) {
		result.Codes = aggregator.Codes()
		result.Succeeded = aggregator.Succeeded()
		result.Failed = aggregator.Failed()
		return result, err
	}

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		result.BatchesStarted++

		startedAt := s.now()
		outcomes := s.runBatch(ctx, batch)
		codes := aggregator.Add(outcomes)
		duration := s.now().Sub(startedAt)
		s.metrics.ObserveBatchDuration(duration)

		logger.Info("batch completed",
			zap.Int("batch", i+1),
			zap.Int("batches", len(batches)),
			zap.Int("size", len(batch)),
			zap.Int("acquired", len(codes)),
			zap.Int("failed", len(batch)-len(codes)),
			zap.Duration("duration", duration),
		)

		if sink != nil {
			if err := sink(ctx, i, codes); err != nil {
				return finish(fmt.Errorf("batch %d: %w", i+1, err))
			}
		}

		if i < len(batches)-1 {
			if err := s.sleep(ctx, s.batchDelay); err != nil {
				return finish(err)
			}
		}
	}

	return finish(nil)
}

func (s *BatchScheduler) runBatch(ctx context.Context, batch []domain.Credential) []CredentialOutcome {
	outcomes := make([]CredentialOutcome, len(batch))

	// The group only joins; each goroutine reports through its outcome slot.
	var g errgroup.Group
	for i, cred := range batch {
		g.Go(func() error {
			outcomes[i] = s.runner.Run(ctx, cred)
			return nil
		})
	}
	g.Wait()

	return outcomes
}
