package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
	"github.com/kursadbilgin/issuance-engine/internal/notify"
	"github.com/kursadbilgin/issuance-engine/internal/queue"
)

func mustCredential(t *testing.T, secret string) domain.Credential {
	t.Helper()
	cred, err := domain.NewCredential(secret)
	if err != nil {
		t.Fatalf("NewCredential(%q) error = %v", secret, err)
	}
	return cred
}

func credentials(t *testing.T, n int) []domain.Credential {
	t.Helper()
	creds := make([]domain.Credential, n)
	for i := range creds {
		creds[i] = mustCredential(t, fmt.Sprintf("token-%03d", i))
	}
	return creds
}

type fakeIssuer struct {
	attemptFn func(ctx context.Context, cred domain.Credential) (string, error)
}

func (f *fakeIssuer) Attempt(ctx context.Context, cred domain.Credential) (string, error) {
	if f.attemptFn != nil {
		return f.attemptFn(ctx, cred)
	}
	return "CODE-" + cred.Secret(), nil
}

type fakeRunner struct {
	runFn func(ctx context.Context, cred domain.Credential) CredentialOutcome
}

func (f *fakeRunner) Run(ctx context.Context, cred domain.Credential) CredentialOutcome {
	if f.runFn != nil {
		return f.runFn(ctx, cred)
	}
	return CredentialOutcome{Credential: cred, Code: "CODE-" + cred.Secret(), State: domain.AttemptStateSucceeded}
}

type fakeScheduler struct {
	runFn func(ctx context.Context, creds []domain.Credential, sink BatchSink) (ScheduleResult, error)
}

func (f *fakeScheduler) Run(ctx context.Context, creds []domain.Credential, sink BatchSink) (ScheduleResult, error) {
	if f.runFn != nil {
		return f.runFn(ctx, creds, sink)
	}
	return ScheduleResult{}, nil
}

type fakeSource struct {
	loadFn func(ctx context.Context) ([]domain.Credential, error)
}

func (f *fakeSource) Load(ctx context.Context) ([]domain.Credential, error) {
	if f.loadFn != nil {
		return f.loadFn(ctx)
	}
	return nil, nil
}

type fakeCodeRepo struct {
	storeFn       func(ctx context.Context, codes []string) error
	dispenseFn    func(ctx context.Context, n int) ([]domain.IssuedCode, error)
	countUnusedFn func(ctx context.Context) (int64, error)
}

func (f *fakeCodeRepo) Store(ctx context.Context, codes []string) error {
	if f.storeFn != nil {
		return f.storeFn(ctx, codes)
	}
	return nil
}

func (f *fakeCodeRepo) Dispense(ctx context.Context, n int) ([]domain.IssuedCode, error) {
	if f.dispenseFn != nil {
		return f.dispenseFn(ctx, n)
	}
	return nil, nil
}

func (f *fakeCodeRepo) CountUnused(ctx context.Context) (int64, error) {
	if f.countUnusedFn != nil {
		return f.countUnusedFn(ctx)
	}
	return 0, nil
}

type fakeRunRepo struct {
	createFn     func(ctx context.Context, run *domain.Run) error
	finishFn     func(ctx context.Context, run *domain.Run) error
	getByIDFn    func(ctx context.Context, id string) (*domain.Run, error)
	listRecentFn func(ctx context.Context, limit int) ([]domain.Run, error)
}

func (f *fakeRunRepo) Create(ctx context.Context, run *domain.Run) error {
	if f.createFn != nil {
		return f.createFn(ctx, run)
	}
	return nil
}

func (f *fakeRunRepo) Finish(ctx context.Context, run *domain.Run) error {
	if f.finishFn != nil {
		return f.finishFn(ctx, run)
	}
	return nil
}

func (f *fakeRunRepo) GetByID(ctx context.Context, id string) (*domain.Run, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeRunRepo) ListRecent(ctx context.Context, limit int) ([]domain.Run, error) {
	if f.listRecentFn != nil {
		return f.listRecentFn(ctx, limit)
	}
	return nil, nil
}

type fakeChannelRepo struct {
	createFn func(ctx context.Context, channel *domain.NotificationChannel) error
	deleteFn func(ctx context.Context, id string) error
	listFn   func(ctx context.Context) ([]domain.NotificationChannel, error)
}

func (f *fakeChannelRepo) Create(ctx context.Context, channel *domain.NotificationChannel) error {
	if f.createFn != nil {
		return f.createFn(ctx, channel)
	}
	return nil
}

func (f *fakeChannelRepo) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

func (f *fakeChannelRepo) List(ctx context.Context) ([]domain.NotificationChannel, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return nil, nil
}

type fakeSender struct {
	mu     sync.Mutex
	sendFn func(ctx context.Context, webhookURL string, summary notify.RunSummary) error
	sent   []string
}

func (f *fakeSender) Send(ctx context.Context, webhookURL string, summary notify.RunSummary) error {
	f.mu.Lock()
	f.sent = append(f.sent, webhookURL)
	f.mu.Unlock()
	if f.sendFn != nil {
		return f.sendFn(ctx, webhookURL, summary)
	}
	return nil
}

type fakePublisher struct {
	publishFn func(ctx context.Context, queueName string, msg queue.Message) error
	closeFn   func() error
}

func (f *fakePublisher) Publish(ctx context.Context, queueName string, msg queue.Message) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, queueName, msg)
	}
	return nil
}

func (f *fakePublisher) Close() error {
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}

type fakeConsumer struct {
	consumeFn func(ctx context.Context, queueName string, handler queue.RunRequestHandler) error
	closeFn   func() error
}

func (f *fakeConsumer) Consume(ctx context.Context, queueName string, handler queue.RunRequestHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, queueName, handler)
	}
	return nil
}

func (f *fakeConsumer) Close() error {
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}

type fakeTrigger struct {
	triggerFn func(ctx context.Context) (*domain.Run, error)
}

func (f *fakeTrigger) TriggerRun(ctx context.Context) (*domain.Run, error) {
	if f.triggerFn != nil {
		return f.triggerFn(ctx)
	}
	return &domain.Run{ID: "run-1", Status: domain.RunStatusCompleted}, nil
}

type fakeReporter struct {
	mu   sync.Mutex
	runs []domain.Run
}

func (f *fakeReporter) RunCompleted(_ context.Context, run domain.Run) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
}

// recordingSleep records requested durations without blocking.
type recordingSleep struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.calls = append(r.calls, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordingSleep) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}
