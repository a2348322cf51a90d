package notify

import (
	"fmt"
	"time"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
)

// EventRunCompleted names the summary posted when a run finishes.
const EventRunCompleted = "acquisition.run.completed"

// RunSummary is the payload posted to every registered webhook. Content
// carries a one-line human rendering so chat webhooks can display it as is.
type RunSummary struct {
	Event       string           `json:"event"`
	RunID       string           `json:"runId"`
	Status      domain.RunStatus `json:"status"`
	Credentials int              `json:"credentials"`
	Acquired    int              `json:"acquired"`
	Failed      int              `json:"failed"`
	Unused      int64            `json:"unused"`
	CompletedAt time.Time        `json:"completedAt"`
	Content     string           `json:"content"`
}

func NewRunSummary(run domain.Run, unused int64, completedAt time.Time) RunSummary {
	summary := RunSummary{
		Event:       EventRunCompleted,
		RunID:       run.ID,
		Status:      run.Status,
		Credentials: run.CredentialCount,
		Acquired:    run.AcquiredCount,
		Failed:      run.FailedCount,
		Unused:      unused,
		CompletedAt: completedAt.UTC(),
	}
	summary.Content = summary.text()
	return summary
}

func (s RunSummary) text() string {
	if s.Status == domain.RunStatusFailed {
		return fmt.Sprintf("Acquisition run %s failed after %d new codes. %d unused codes in stock.",
			s.RunID, s.Acquired, s.Unused)
	}
	return fmt.Sprintf("Acquisition run finished: %d new codes from %d credentials (%d failed). %d unused codes in stock.",
		s.Acquired, s.Credentials, s.Failed, s.Unused)
}
