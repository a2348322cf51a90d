package domain

import (
	"fmt"
	"strings"
)

const credentialVisiblePrefix = 4

// Credential is an opaque bearer secret exchanged for one issued code.
// Its String form is masked so it can be passed to loggers safely.
type Credential struct {
	secret string
}

func NewCredential(secret string) (Credential, error) {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return Credential{}, fmt.Errorf("%w: credential is empty", ErrValidation)
	}
	if strings.ContainsAny(trimmed, " \t\r\n") {
		return Credential{}, fmt.Errorf("%w: credential contains whitespace", ErrValidation)
	}
	return Credential{secret: trimmed}, nil
}

// Secret returns the raw token. Only the issuance client should call it.
func (c Credential) Secret() string { return c.secret }

func (c Credential) IsZero() bool { return c.secret == "" }

// Masked returns a short prefix and the token length.
func (c Credential) Masked() string {
	if c.secret == "" {
		return "<empty>"
	}
	runes := []rune(c.secret)
	if len(runes) <= credentialVisiblePrefix {
		return fmt.Sprintf("****(len=%d)", len(runes))
	}
	return fmt.Sprintf("%s****(len=%d)", string(runes[:credentialVisiblePrefix]), len(runes))
}

func (c Credential) String() string { return c.Masked() }

// GoString keeps %#v from printing the secret.
func (c Credential) GoString() string { return "domain.Credential{" + c.Masked() + "}" }
