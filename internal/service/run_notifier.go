package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
	"github.com/kursadbilgin/issuance-engine/internal/notify"
	"github.com/kursadbilgin/issuance-engine/internal/observability"
	"github.com/kursadbilgin/issuance-engine/internal/queue"
	"github.com/kursadbilgin/issuance-engine/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultNotifyConcurrency = 4
	notifyRetryDelay         = time.Second
)

// RunNotifier fans a finished run out to registered webhooks and the event
// queue. Delivery failures are logged and never change the run's status.
type RunNotifier struct {
	channels    repository.ChannelRepository
	codes       repository.CodeRepository
	sender      notify.Sender
	publisher   queue.Publisher
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

var _ RunReporter = (*RunNotifier)(nil)

func NewRunNotifier(
	channels repository.ChannelRepository,
	codes repository.CodeRepository,
	sender notify.Sender,
	publisher queue.Publisher,
	logger *zap.Logger,
) (*RunNotifier, error) {
	if codes == nil {
		return nil, fmt.Errorf("code repository is required")
	}
	if sender != nil && channels == nil {
		return nil, fmt.Errorf("channel repository is required when a webhook sender is set")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RunNotifier{
		channels:    channels,
		codes:       codes,
		sender:      sender,
		publisher:   publisher,
		logger:      logger,
		concurrency: defaultNotifyConcurrency,
		now:         time.Now,
		sleep:       sleepWithContext,
	}, nil
}

func (n *RunNotifier) SetMetrics(metrics *observability.Metrics) {
	if n == nil {
		return
	}
	n.metrics = metrics
}

func (n *RunNotifier) RunCompleted(ctx context.Context, run domain.Run) {
	logger := observability.WithContextLogger(n.logger, ctx)

	unused, err := n.codes.CountUnused(ctx)
	if err != nil {
		logger.Warn("failed to count unused codes for run summary", zap.Error(err))
	}

	completedAt := n.now().UTC()
	if run.FinishedAt != nil {
		completedAt = run.FinishedAt.UTC()
	}
	summary := notify.NewRunSummary(run, unused, completedAt)

	if n.publisher != nil {
		n.publish(ctx, logger, summary)
	}
	if n.sender != nil {
		n.deliverAll(ctx, logger, summary)
	}
}

func (n *RunNotifier) publish(ctx context.Context, logger *zap.Logger, summary notify.RunSummary) {
	msg := queue.RunCompletedMessage{
		RunID:           summary.RunID,
		Status:          summary.Status,
		CredentialCount: summary.Credentials,
		AcquiredCount:   summary.Acquired,
		FailedCount:     summary.Failed,
		UnusedCount:     summary.Unused,
		CompletedAt:     summary.CompletedAt,
	}
	if err := n.publisher.Publish(ctx, queue.EventsQueue, msg); err != nil {
		n.metrics.IncRunNotification("queue", "error")
		logger.Error("failed to publish run completed event",
			zap.String("queue", queue.EventsQueue),
			zap.Error(err),
		)
		return
	}
	n.metrics.IncRunNotification("queue", "ok")
}

func (n *RunNotifier) deliverAll(ctx context.Context, logger *zap.Logger, summary notify.RunSummary) {
	channels, err := n.channels.List(ctx)
	if err != nil {
		logger.Error("failed to list notification channels", zap.Error(err))
		return
	}

	// The group bounds and joins deliveries; deliver logs and counts its own failures.
	var g errgroup.Group
	g.SetLimit(n.concurrency)
	for _, channel := range channels {
		g.Go(func() error {
			n.deliver(ctx, logger, channel, summary)
			return nil
		})
	}
	g.Wait()
}

// deliver repeats a transient failure once.
func (n *RunNotifier) deliver(ctx context.Context, logger *zap.Logger, channel domain.NotificationChannel, summary notify.RunSummary) {
	err := n.sender.Send(ctx, channel.WebhookURL, summary)
	if err != nil && notify.IsTransient(err) {
		if sleepErr := n.sleep(ctx, notifyRetryDelay); sleepErr == nil {
			err = n.sender.Send(ctx, channel.WebhookURL, summary)
		}
	}

	if err != nil {
		n.metrics.IncRunNotification("webhook", "error")
		logger.Warn("failed to deliver run summary",
			zap.String("channelId", channel.ID),
			zap.Error(err),
		)
		return
	}
	n.metrics.IncRunNotification("webhook", "ok")
}
