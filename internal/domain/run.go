package domain

import "time"

// RunStatus represents the processing state of an acquisition run.
type RunStatus string

const (
	RunStatusProcessing     RunStatus = "PROCESSING"
	RunStatusCompleted      RunStatus = "COMPLETED"
	RunStatusPartialFailure RunStatus = "PARTIAL_FAILURE"
	RunStatusFailed         RunStatus = "FAILED"
)

func (s RunStatus) String() string { return string(s) }

func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusProcessing, RunStatusCompleted, RunStatusPartialFailure, RunStatusFailed:
		return true
	}
	return false
}

func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusPartialFailure || s == RunStatusFailed
}

// Run is the audit record of one acquisition invocation. It holds counts only;
// acquired codes live in storage.
type Run struct {
	ID              string
	Status          RunStatus
	CredentialCount int
	BatchCount      int
	AcquiredCount   int
	FailedCount     int
	Error           *string
	StartedAt       time.Time
	FinishedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FinalStatus derives the terminal status from the run's outcome counts.
func FinalStatus(failed int, runErr error) RunStatus {
	switch {
	case runErr != nil:
		return RunStatusFailed
	case failed > 0:
		return RunStatusPartialFailure
	default:
		return RunStatusCompleted
	}
}
