package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")

	// ErrRunInProgress is returned when an acquisition run is requested while another one is executing.
	ErrRunInProgress = fmt.Errorf("%w: acquisition run already in progress", ErrConflict)

	ErrTransport        = errors.New("transport error")
	ErrParse            = errors.New("parse error")
	ErrExhaustedRetries = errors.New("retries exhausted")
	ErrPersistence      = errors.New("persistence error")
	ErrConfig           = errors.New("config error")
)
