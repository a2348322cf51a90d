package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
	"github.com/kursadbilgin/issuance-engine/internal/issuance"
	"github.com/kursadbilgin/issuance-engine/internal/observability"
	"go.uber.org/zap"
)

const (
	defaultMaxAttempts  = 3
	defaultAttemptDelay = 2 * time.Second
)

// Issuer performs one issuance exchange for one credential.
type Issuer interface {
	Attempt(ctx context.Context, cred domain.Credential) (string, error)
}

// CredentialOutcome is the terminal result of driving one credential through
// the retry state machine.
type CredentialOutcome struct {
	Credential domain.Credential
	Code       string
	State      domain.AttemptState
	Attempts   []domain.Attempt
	Err        error
}

func (o CredentialOutcome) Succeeded() bool {
	return o.State == domain.AttemptStateSucceeded && o.Code != ""
}

// advance moves the outcome to next if the attempt state machine allows it.
func (o *CredentialOutcome) advance(next domain.AttemptState) error {
	if !o.State.CanTransitionTo(next) {
		return fmt.Errorf("illegal attempt transition %s -> %s", o.State, next)
	}
	o.State = next
	return nil
}

// RetryPolicy makes up to maxAttempts exchanges per credential with a fixed
// delay between consecutive failures. Every failure class is retried.
type RetryPolicy struct {
	issuer      Issuer
	maxAttempts int
	delay       time.Duration
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewRetryPolicy(issuer Issuer, maxAttempts int, delay time.Duration, logger *zap.Logger) (*RetryPolicy, error) {
	if issuer == nil {
		return nil, fmt.Errorf("issuer is required")
	}
	if maxAttempts < 1 {
		maxAttempts = defaultMaxAttempts
	}
	if delay < 0 {
		delay = defaultAttemptDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RetryPolicy{
		issuer:      issuer,
		maxAttempts: maxAttempts,
		delay:       delay,
		logger:      logger,
		now:         time.Now,
		sleep:       sleepWithContext,
	}, nil
}

func (p *RetryPolicy) SetMetrics(metrics *observability.Metrics) {
	if p == nil {
		return
	}
	p.metrics = metrics
}

// Run never returns an error to the caller; exhaustion is reported through the
// outcome so one credential cannot abort its batch.
func (p *RetryPolicy) Run(ctx context.Context, cred domain.Credential) CredentialOutcome {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := observability.WithContextLogger(p.logger, ctx).With(zap.Stringer("credential", cred))
	outcome := CredentialOutcome{
		Credential: cred,
		State:      domain.AttemptStatePending,
		Attempts:   make([]domain.Attempt, 0, p.maxAttempts),
	}

	for number := 1; ; number++ {
		if err := outcome.advance(domain.AttemptStateAttempting); err != nil {
			return p.exhaust(logger, outcome, number-1, err)
		}

		startedAt := p.now()
		p.metrics.IncAttemptsInFlight()
		code, err := p.issuer.Attempt(ctx, cred)
		p.metrics.DecAttemptsInFlight()
		duration := p.now().Sub(startedAt)

		result := issuance.OutcomeOf(err)
		p.metrics.ObserveAttempt(result.String(), duration)
		outcome.Attempts = append(outcome.Attempts, domain.Attempt{
			Credential: cred,
			Number:     number,
			Outcome:    result,
			Code:       code,
			Err:        err,
			StartedAt:  startedAt,
			Duration:   duration,
		})

		if err == nil {
			if advanceErr := outcome.advance(domain.AttemptStateSucceeded); advanceErr != nil {
				return p.exhaust(logger, outcome, number, advanceErr)
			}
			outcome.Code = code
			outcome.Err = nil
			p.metrics.IncCodesAcquired()
			logger.Debug("code acquired", zap.Int("attempt", number))
			return outcome
		}

		if number >= p.maxAttempts || ctx.Err() != nil {
			return p.exhaust(logger, outcome, number, err)
		}

		logger.Warn("issuance attempt failed",
			zap.Int("attempt", number),
			zap.Int("maxAttempts", p.maxAttempts),
			zap.String("outcome", result.String()),
			zap.Duration("retryIn", p.delay),
			zap.Error(err),
		)

		if advanceErr := outcome.advance(domain.AttemptStateBackingOff); advanceErr != nil {
			return p.exhaust(logger, outcome, number, advanceErr)
		}
		if sleepErr := p.sleep(ctx, p.delay); sleepErr != nil {
			return p.exhaust(logger, outcome, number, sleepErr)
		}
	}
}

func (p *RetryPolicy) exhaust(logger *zap.Logger, outcome CredentialOutcome, attempts int, cause error) CredentialOutcome {
	if err := outcome.advance(domain.AttemptStateExhausted); err != nil {
		// Only reachable from a terminal state; keep the outcome terminal.
		outcome.State = domain.AttemptStateExhausted
		cause = fmt.Errorf("%w (%v)", cause, err)
	}
	outcome.Err = fmt.Errorf("%w after %d attempts: %w", domain.ErrExhaustedRetries, attempts, cause)
	p.metrics.IncCredentialExhausted()

	logger.Warn("credential exhausted",
		zap.Int("attempts", attempts),
		zap.Error(cause),
	)
	return outcome
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
