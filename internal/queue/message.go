package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
)

// RunRequestMessage asks the engine to perform one acquisition run.
type RunRequestMessage struct {
	RequestID   string `json:"requestId"`
	RequestedBy string `json:"requestedBy,omitempty"`
}

func (m RunRequestMessage) Validate() error {
	if strings.TrimSpace(m.RequestID) == "" {
		return fmt.Errorf("requestId is required")
	}
	return nil
}

func (m RunRequestMessage) MessageID() string { return m.RequestID }

// RunCompletedMessage is published once a run reaches a terminal status.
type RunCompletedMessage struct {
	RunID           string           `json:"runId"`
	Status          domain.RunStatus `json:"status"`
	CredentialCount int              `json:"credentials"`
	AcquiredCount   int              `json:"acquired"`
	FailedCount     int              `json:"failed"`
	UnusedCount     int64            `json:"unused"`
	CompletedAt     time.Time        `json:"completedAt"`
}

func (m RunCompletedMessage) Validate() error {
	if strings.TrimSpace(m.RunID) == "" {
		return fmt.Errorf("runId is required")
	}
	if !m.Status.IsTerminal() {
		return fmt.Errorf("status %q is not terminal", m.Status)
	}
	return nil
}

func (m RunCompletedMessage) MessageID() string { return m.RunID }
