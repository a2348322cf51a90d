package domain

import "time"

// AttemptState is a step of the per-credential retry state machine.
type AttemptState string

const (
	AttemptStatePending    AttemptState = "PENDING"
	AttemptStateAttempting AttemptState = "ATTEMPTING"
	AttemptStateBackingOff AttemptState = "BACKING_OFF"
	AttemptStateSucceeded  AttemptState = "SUCCEEDED"
	AttemptStateExhausted  AttemptState = "EXHAUSTED"
)

func (s AttemptState) String() string { return string(s) }

func (s AttemptState) IsTerminal() bool {
	return s == AttemptStateSucceeded || s == AttemptStateExhausted
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s AttemptState) CanTransitionTo(next AttemptState) bool {
	switch s {
	case AttemptStatePending:
		return next == AttemptStateAttempting
	case AttemptStateAttempting:
		return next == AttemptStateSucceeded || next == AttemptStateBackingOff || next == AttemptStateExhausted
	case AttemptStateBackingOff:
		return next == AttemptStateAttempting || next == AttemptStateExhausted
	}
	return false
}

// AttemptOutcome classifies a single issuance exchange.
type AttemptOutcome string

const (
	AttemptOutcomeSuccess        AttemptOutcome = "success"
	AttemptOutcomeTransportError AttemptOutcome = "transport_error"
	AttemptOutcomeThrottled      AttemptOutcome = "throttled"
	AttemptOutcomeTimeout        AttemptOutcome = "timeout"
	AttemptOutcomeParseError     AttemptOutcome = "parse_error"
	AttemptOutcomeCanceled       AttemptOutcome = "canceled"
)

func (o AttemptOutcome) String() string { return string(o) }

// Attempt records one exchange for one credential. It is never persisted.
type Attempt struct {
	Credential Credential
	Number     int
	Outcome    AttemptOutcome
	Code       string
	Err        error
	StartedAt  time.Time
	Duration   time.Duration
}
