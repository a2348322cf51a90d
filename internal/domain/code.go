package domain

import (
	"fmt"
	"strings"
	"time"
)

// IssuedCode is a single-use promotional code held in storage.
// Used only ever moves from false to true.
type IssuedCode struct {
	ID        string
	Code      string
	Used      bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NormalizeCode(code string) (string, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "", fmt.Errorf("%w: code is empty", ErrValidation)
	}
	return trimmed, nil
}
