package service

import "sync"

// ResultAggregator collects codes from credential outcomes. Failed outcomes
// only count toward Failed.
type ResultAggregator struct {
	mu        sync.Mutex
	codes     []string
	succeeded int
	failed    int
}

func NewResultAggregator(capacity int) *ResultAggregator {
	if capacity < 0 {
		capacity = 0
	}
	return &ResultAggregator{codes: make([]string, 0, capacity)}
}

// Add records outcomes and returns the codes they contributed, in input order.
func (a *ResultAggregator) Add(outcomes []CredentialOutcome) []string {
	added := make([]string, 0, len(outcomes))
	for _, outcome := range outcomes {
		if outcome.Succeeded() {
			added = append(added, outcome.Code)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.codes = append(a.codes, added...)
	a.succeeded += len(added)
	a.failed += len(outcomes) - len(added)
	return added
}

func (a *ResultAggregator) Codes() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.codes...)
}

func (a *ResultAggregator) Succeeded() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.succeeded
}

func (a *ResultAggregator) Failed() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failed
}
