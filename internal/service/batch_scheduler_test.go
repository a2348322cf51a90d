package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
)

func newTestScheduler(t *testing.T, runner CredentialRunner, batchSize int, delay time.Duration) (*BatchScheduler, *recordingSleep) {
	t.Helper()
	scheduler, err := NewBatchScheduler(runner, batchSize, delay, nil)
	if err != nil {
		t.Fatalf("NewBatchScheduler() error = %v", err)
	}
	sleeper := &recordingSleep{}
	scheduler.sleep = sleeper.sleep
	return scheduler, sleeper
}

func TestPartition(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		total     int
		size      int
		wantSizes []int
	}{
		{total: 45, size: 20, wantSizes: []int{20, 20, 5}},
		{total: 40, size: 20, wantSizes: []int{20, 20}},
		{total: 1, size: 20, wantSizes: []int{1}},
		{total: 7, size: 3, wantSizes: []int{3, 3, 1}},
		{total: 0, size: 20, wantSizes: nil},
		{total: 3, size: 0, wantSizes: []int{1, 1, 1}},
	}

	for _, tt := range testCases {
		tt := tt
		t.Run(fmt.Sprintf("%d/%d", tt.total, tt.size), func(t *testing.T) {
			t.Parallel()

			creds := credentials(t, tt.total)
			batches := Partition(creds, tt.size)
			if len(batches) != len(tt.wantSizes) {
				t.Fatalf("batch count = %d, want %d", len(batches), len(tt.wantSizes))
			}

			next := 0
			for i, batch := range batches {
				if len(batch) != tt.wantSizes[i] {
					t.Fatalf("batch %d size = %d, want %d", i, len(batch), tt.wantSizes[i])
				}
				for _, cred := range batch {
					if cred.Secret() != creds[next].Secret() {
						t.Fatalf("batch %d is not contiguous at %d", i, next)
					}
					next++
				}
			}
		})
	}
}

func TestBatchSchedulerRunsBatchesInSequenceWithDelays(t *testing.T) {
	t.Parallel()

	const batchSize = 20
	creds := credentials(t, 45)
	index := make(map[string]int, len(creds))
	for i, cred := range creds {
		index[cred.Secret()] = i
	}

	var completed atomic.Int64
	var inflight, maxInflight atomic.Int64
	runner := &fakeRunner{runFn: func(ctx context.Context, cred domain.Credential) CredentialOutcome {
		i := index[cred.Secret()]
		if done := completed.Load(); done < int64((i/batchSize)*batchSize) {
			t.Errorf("credential %d started with only %d settled", i, done)
		}

		current := inflight.Add(1)
		for {
			seen := maxInflight.Load()
			if current <= seen || maxInflight.CompareAndSwap(seen, current) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inflight.Add(-1)
		completed.Add(1)

		return CredentialOutcome{Credential: cred, Code: "C-" + cred.Secret(), State: domain.AttemptStateSucceeded}
	}}

	scheduler, sleeper := newTestScheduler(t, runner, batchSize, 5*time.Second)

	var sinkSizes []int
	sink := func(ctx context.Context, batchIndex int, codes []string) error {
		if batchIndex != len(sinkSizes) {
			t.Errorf("sink batchIndex = %d, want %d", batchIndex, len(sinkSizes))
		}
		sinkSizes = append(sinkSizes, len(codes))
		return nil
	}

	result, err := scheduler.Run(context.Background(), creds, sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Batches != 3 || result.BatchesStarted != 3 {
		t.Fatalf("batches = %d/%d, want 3/3", result.BatchesStarted, result.Batches)
	}
	if fmt.Sprint(sinkSizes) != "[20 20 5]" {
		t.Fatalf("sink sizes = %v, want [20 20 5]", sinkSizes)
	}
	if sleeper.count() != 2 {
		t.Fatalf("inter-batch sleeps = %d, want 2", sleeper.count())
	}
	for _, d := range sleeper.calls {
		if d != 5*time.Second {
			t.Fatalf("sleep = %s, want 5s", d)
		}
	}
	if len(result.Codes) != 45 || result.Succeeded != 45 || result.Failed != 0 {
		t.Fatalf("result = %d codes, %d ok, %d failed; want 45/45/0", len(result.Codes), result.Succeeded, result.Failed)
	}
	if maxInflight.Load() < 2 {
		t.Fatalf("max in-flight = %d, want concurrent attempts within a batch", maxInflight.Load())
	}
	if maxInflight.Load() > batchSize {
		t.Fatalf("max in-flight = %d, want at most %d", maxInflight.Load(), batchSize)
	}
}

func TestBatchSchedulerIsolatesCredentialFailures(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{runFn: func(ctx context.Context, cred domain.Credential) CredentialOutcome {
		if strings.HasSuffix(cred.Secret(), "1") {
			return CredentialOutcome{
				Credential: cred,
				State:      domain.AttemptStateExhausted,
				Err:        domain.ErrExhaustedRetries,
			}
		}
		return CredentialOutcome{Credential: cred, Code: "C-" + cred.Secret(), State: domain.AttemptStateSucceeded}
	}}

	scheduler, _ := newTestScheduler(t, runner, 4, 0)
	creds := credentials(t, 12)

	result, err := scheduler.Run(context.Background(), creds, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// token-001 and token-011 end in 1.
	if result.Failed != 2 || result.Succeeded != 10 {
		t.Fatalf("succeeded/failed = %d/%d, want 10/2", result.Succeeded, result.Failed)
	}
	for _, code := range result.Codes {
		if strings.HasSuffix(code, "1") {
			t.Fatalf("failed credential contributed code %q", code)
		}
	}
}

func TestBatchSchedulerSinkErrorStopsRemainingBatches(t *testing.T) {
	t.Parallel()

	var runs atomic.Int64
	runner := &fakeRunner{runFn: func(ctx context.Context, cred domain.Credential) CredentialOutcome {
		runs.Add(1)
		return CredentialOutcome{Credential: cred, Code: "C-" + cred.Secret(), State: domain.AttemptStateSucceeded}
	}}

	scheduler, sleeper := newTestScheduler(t, runner, 5, time.Second)
	storeErr := errors.New("db down")

	result, err := scheduler.Run(context.Background(), credentials(t, 15), func(ctx context.Context, batchIndex int, codes []string) error {
		return storeErr
	})
	if !errors.Is(err, storeErr) {
		t.Fatalf("Run() error = %v, want sink error", err)
	}
	if result.BatchesStarted != 1 {
		t.Fatalf("BatchesStarted = %d, want 1", result.BatchesStarted)
	}
	if runs.Load() != 5 {
		t.Fatalf("runner calls = %d, want 5", runs.Load())
	}
	if sleeper.count() != 0 {
		t.Fatalf("sleeps = %d, want 0", sleeper.count())
	}
	if len(result.Codes) != 5 {
		t.Fatalf("codes = %d, want 5 from the first batch", len(result.Codes))
	}
}

func TestBatchSchedulerStopsOnCanceledDelay(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	seen := 0
	runner := &fakeRunner{runFn: func(ctx context.Context, cred domain.Credential) CredentialOutcome {
		mu.Lock()
		seen++
		mu.Unlock()
		return CredentialOutcome{Credential: cred, Code: "C", State: domain.AttemptStateSucceeded}
	}}

	scheduler, err := NewBatchScheduler(runner, 2, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewBatchScheduler() error = %v", err)
	}
	scheduler.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	result, err := scheduler.Run(ctx, credentials(t, 6), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if result.BatchesStarted != 1 || seen != 2 {
		t.Fatalf("started=%d seen=%d, want 1 batch of 2", result.BatchesStarted, seen)
	}
}

func TestBatchSchedulerEmptyCredentialSet(t *testing.T) {
	t.Parallel()

	scheduler, sleeper := newTestScheduler(t, &fakeRunner{}, 20, time.Second)
	result, err := scheduler.Run(context.Background(), nil, func(ctx context.Context, batchIndex int, codes []string) error {
		t.Fatal("sink should not be called")
		return nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Batches != 0 || len(result.Codes) != 0 || sleeper.count() != 0 {
		t.Fatalf("result = %+v, sleeps = %d; want empty", result, sleeper.count())
	}
}

func TestResultAggregator(t *testing.T) {
	t.Parallel()

	agg := NewResultAggregator(4)
	added := agg.Add([]CredentialOutcome{
		{Code: "A", State: domain.AttemptStateSucceeded},
		{State: domain.AttemptStateExhausted},
		{Code: "B", State: domain.AttemptStateSucceeded},
	})
	if fmt.Sprint(added) != "[A B]" {
		t.Fatalf("Add() = %v, want [A B]", added)
	}
	agg.Add([]CredentialOutcome{{Code: "", State: domain.AttemptStateSucceeded}})

	if agg.Succeeded() != 2 || agg.Failed() != 2 {
		t.Fatalf("succeeded/failed = %d/%d, want 2/2", agg.Succeeded(), agg.Failed())
	}
	codes := agg.Codes()
	codes[0] = "mutated"
	if agg.Codes()[0] != "A" {
		t.Fatal("Codes() leaked internal slice")
	}
}
