package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
	"github.com/kursadbilgin/issuance-engine/internal/observability"
	"github.com/kursadbilgin/issuance-engine/internal/queue"
	"go.uber.org/zap"
)

// RequestWorker turns broker run requests into synchronous acquisition runs.
type RequestWorker struct {
	consumer    queue.Consumer
	acquisition RunTrigger
	logger      *zap.Logger
}

func NewRequestWorker(consumer queue.Consumer, acquisition RunTrigger, logger *zap.Logger) (*RequestWorker, error) {
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if acquisition == nil {
		return nil, fmt.Errorf("run trigger is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RequestWorker{
		consumer:    consumer,
		acquisition: acquisition,
		logger:      logger,
	}, nil
}

// Start consumes run requests until context cancellation.
func (w *RequestWorker) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	w.logger.Info("request worker started", zap.String("queue", queue.RequestsQueue))
	err := w.consumer.Consume(ctx, queue.RequestsQueue, w.handle)
	if err != nil {
		w.logger.Error("request worker stopped with error", zap.Error(err))
		return err
	}

	w.logger.Info("request worker stopped")
	return nil
}

func (w *RequestWorker) handle(ctx context.Context, msg queue.RunRequestMessage) error {
	ctx = observability.WithRequestID(ctx, msg.RequestID)
	logger := observability.WithContextLogger(w.logger, ctx)

	run, err := w.acquisition.TriggerRun(ctx)
	if errors.Is(err, domain.ErrRunInProgress) {
		logger.Info("run request dropped, another run is in progress",
			zap.String("requestedBy", msg.RequestedBy),
		)
		return nil
	}
	if err != nil {
		return err
	}

	logger.Info("run request served",
		zap.String("requestedBy", msg.RequestedBy),
		zap.String("runId", run.ID),
		zap.String("status", run.Status.String()),
	)
	return nil
}
