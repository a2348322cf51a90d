package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/issuance-engine/internal/credential"
	"github.com/kursadbilgin/issuance-engine/internal/domain"
	"github.com/kursadbilgin/issuance-engine/internal/observability"
	"github.com/kursadbilgin/issuance-engine/internal/repository"
	"go.uber.org/zap"
)

// Scheduler runs a credential set to completion.
type Scheduler interface {
	Run(ctx context.Context, creds []domain.Credential, sink BatchSink) (ScheduleResult, error)
}

// RunReporter is told about every run that reaches a terminal status.
type RunReporter interface {
	RunCompleted(ctx context.Context, run domain.Run)
}

// AcquisitionService owns the acquisition run lifecycle. At most one run
// executes at a time.
type AcquisitionService struct {
	credentials credential.Source
	scheduler   Scheduler
	codes       repository.CodeRepository
	runs        repository.RunRepository
	batchSize   int
	reporter    RunReporter
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time
	newID       func() string

	running sync.Mutex
	baseCtx context.Context
	wg      sync.WaitGroup
}

func NewAcquisitionService(
	credentials credential.Source,
	scheduler Scheduler,
	codes repository.CodeRepository,
	runs repository.RunRepository,
	batchSize int,
	logger *zap.Logger,
) (*AcquisitionService, error) {
	if credentials == nil {
		return nil, fmt.Errorf("credential source is required")
	}
	if scheduler == nil {
		return nil, fmt.Errorf("scheduler is required")
	}
	if codes == nil || runs == nil {
		return nil, fmt.Errorf("code and run repositories are required")
	}
	if batchSize < 1 {
		batchSize = defaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AcquisitionService{
		credentials: credentials,
		scheduler:   scheduler,
		codes:       codes,
		runs:        runs,
		batchSize:   batchSize,
		logger:      logger,
		now:         time.Now,
		newID:       uuid.NewString,
		baseCtx:     context.Background(),
	}, nil
}

func (s *AcquisitionService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *AcquisitionService) SetReporter(reporter RunReporter) {
	if s == nil {
		return
	}
	s.reporter = reporter
}

// SetBaseContext sets the parent context of runs started with StartRun.
// Canceling it stops background runs between attempts.
func (s *AcquisitionService) SetBaseContext(ctx context.Context) {
	if s == nil || ctx == nil {
		return
	}
	s.baseCtx = ctx
}

// TriggerRun performs one full acquisition run and returns its terminal record.
// Per-credential failures only lower the yield; the returned error is non-nil
// for config and persistence failures or cancellation.
func (s *AcquisitionService) TriggerRun(ctx context.Context) (*domain.Run, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !s.running.TryLock() {
		return nil, domain.ErrRunInProgress
	}
	defer s.running.Unlock()

	run, creds, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, run, creds)
}

// StartRun registers a run and executes it in the background. The returned
// record is still PROCESSING.
func (s *AcquisitionService) StartRun(ctx context.Context) (*domain.Run, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !s.running.TryLock() {
		return nil, domain.ErrRunInProgress
	}

	run, creds, err := s.begin(ctx)
	if err != nil {
		s.running.Unlock()
		return nil, err
	}

	started := *run
	runCtx := s.baseCtx
	if requestID, ok := observability.RequestIDFromContext(ctx); ok {
		runCtx = observability.WithRequestID(runCtx, requestID)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Unlock()
		_, _ = s.execute(runCtx, run, creds)
	}()

	return &started, nil
}

// Wait blocks until background runs have finished.
func (s *AcquisitionService) Wait() {
	s.wg.Wait()
}

func (s *AcquisitionService) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	run, err := s.runs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, persistenceError("get run", err)
	}
	return run, nil
}

func (s *AcquisitionService) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	runs, err := s.runs.ListRecent(ctx, limit)
	if err != nil {
		return nil, persistenceError("list runs", err)
	}
	return runs, nil
}

func (s *AcquisitionService) begin(ctx context.Context) (*domain.Run, []domain.Credential, error) {
	creds, err := s.credentials.Load(ctx)
	if err != nil {
		return nil, nil, err
	}

	now := s.now().UTC()
	run := &domain.Run{
		ID:              s.newID(),
		Status:          domain.RunStatusProcessing,
		CredentialCount: len(creds),
		BatchCount:      len(Partition(creds, s.batchSize)),
		StartedAt:       now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, nil, persistenceError("create run", err)
	}
	return run, creds, nil
}

func (s *AcquisitionService) execute(ctx context.Context, run *domain.Run, creds []domain.Credential) (*domain.Run, error) {
	ctx = observability.WithRunID(ctx, run.ID)
	logger := observability.WithContextLogger(s.logger, ctx)
	logger.Info("acquisition run started",
		zap.Int("credentials", run.CredentialCount),
		zap.Int("batches", run.BatchCount),
	)

	sink := func(ctx context.Context, _ int, codes []string) error {
		if len(codes) == 0 {
			return nil
		}
		if err := s.codes.Store(ctx, codes); err != nil {
			return persistenceError("store codes", err)
		}
		return nil
	}

	result, runErr := s.scheduler.Run(ctx, creds, sink)

	finishedAt := s.now().UTC()
	run.AcquiredCount = result.Succeeded
	run.FailedCount = result.Failed
	run.Status = domain.FinalStatus(result.Failed, runErr)
	run.FinishedAt = &finishedAt
	if runErr != nil {
		msg := runErr.Error()
		run.Error = &msg
	}

	// The record must reach a terminal state even when ctx was canceled.
	finishCtx := context.WithoutCancel(ctx)
	if err := s.runs.Finish(finishCtx, run); err != nil {
		logger.Error("failed to record run result", zap.Error(err))
		if runErr == nil {
			runErr = persistenceError("finish run", err)
		}
	}

	duration := finishedAt.Sub(run.StartedAt)
	s.metrics.ObserveRun(run.Status.String(), duration)

	fields := []zap.Field{
		zap.String("status", run.Status.String()),
		zap.Int("acquired", run.AcquiredCount),
		zap.Int("failed", run.FailedCount),
		zap.Int("batchesStarted", result.BatchesStarted),
		zap.Duration("duration", duration),
	}
	if runErr != nil {
		logger.Error("acquisition run failed", append(fields, zap.Error(runErr))...)
	} else {
		logger.Info("acquisition run finished", fields...)
	}

	if s.reporter != nil {
		s.reporter.RunCompleted(finishCtx, *run)
	}

	if runErr != nil {
		return run, fmt.Errorf("acquisition run %s: %w", run.ID, runErr)
	}
	return run, nil
}

func persistenceError(op string, err error) error {
	if errors.Is(err, domain.ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrPersistence, op, err)
}
