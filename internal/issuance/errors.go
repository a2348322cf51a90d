package issuance

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
)

// TransportError covers network failures and non-success HTTP statuses.
type TransportError struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *TransportError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "issuance transport error")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func (e *TransportError) Is(target error) bool { return target == domain.ErrTransport }

// Throttled reports whether the endpoint or proxy pushed back on rate.
func (e *TransportError) Throttled() bool {
	return e != nil && e.StatusCode == http.StatusTooManyRequests
}

// ParseError means the response did not match the issuance schema.
type ParseError struct {
	Field string
	Cause error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "<nil>"
	}

	msg := "issuance parse error"
	if e.Field != "" {
		msg += ": missing or malformed " + e.Field
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func (e *ParseError) Is(target error) bool { return target == domain.ErrParse }

// OutcomeOf classifies an Attempt error for logging and metrics.
func OutcomeOf(err error) domain.AttemptOutcome {
	switch {
	case err == nil:
		return domain.AttemptOutcomeSuccess
	case errors.Is(err, context.Canceled):
		return domain.AttemptOutcomeCanceled
	case errors.Is(err, domain.ErrParse):
		return domain.AttemptOutcomeParseError
	case IsTimeout(err):
		return domain.AttemptOutcomeTimeout
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) && transportErr.Throttled() {
		return domain.AttemptOutcomeThrottled
	}
	return domain.AttemptOutcomeTransportError
}

// IsTimeout reports whether err came from a deadline or network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
