package service

import (
	"context"
	"errors"
	"testing"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
)

func TestCodeServiceDispenseValidatesCount(t *testing.T) {
	t.Parallel()

	var calls int
	repo := &fakeCodeRepo{dispenseFn: func(ctx context.Context, n int) ([]domain.IssuedCode, error) {
		calls++
		return nil, nil
	}}
	svc, err := NewCodeService(repo, 10, nil)
	if err != nil {
		t.Fatalf("NewCodeService() error = %v", err)
	}

	for _, n := range []int{-1, 0, 11} {
		if _, err := svc.Dispense(context.Background(), n); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("Dispense(%d) error = %v, want ErrValidation", n, err)
		}
	}
	if calls != 0 {
		t.Fatalf("repository calls = %d, want 0 for invalid counts", calls)
	}

	if _, err := svc.Dispense(context.Background(), 10); err != nil {
		t.Fatalf("Dispense(10) error = %v", err)
	}
}

func TestCodeServiceDispenseReturnsShortResult(t *testing.T) {
	t.Parallel()

	repo := &fakeCodeRepo{dispenseFn: func(ctx context.Context, n int) ([]domain.IssuedCode, error) {
		if n != 5 {
			t.Fatalf("Dispense n = %d, want 5", n)
		}
		return []domain.IssuedCode{{Code: "A", Used: true}, {Code: "B", Used: true}}, nil
	}}
	svc, _ := NewCodeService(repo, 0, nil)

	codes, err := svc.Dispense(context.Background(), 5)
	if err != nil {
		t.Fatalf("Dispense() error = %v", err)
	}
	if len(codes) != 2 || codes[0].Code != "A" || codes[1].Code != "B" {
		t.Fatalf("Dispense() = %+v, want [A B]", codes)
	}
}

func TestCodeServiceWrapsRepositoryErrors(t *testing.T) {
	t.Parallel()

	repoErr := errors.New("connection reset")
	repo := &fakeCodeRepo{
		dispenseFn: func(ctx context.Context, n int) ([]domain.IssuedCode, error) {
			return nil, repoErr
		},
		countUnusedFn: func(ctx context.Context) (int64, error) {
			return 0, repoErr
		},
	}
	svc, _ := NewCodeService(repo, 0, nil)

	_, err := svc.Dispense(context.Background(), 1)
	if !errors.Is(err, domain.ErrPersistence) || !errors.Is(err, repoErr) {
		t.Fatalf("Dispense() error = %v, want ErrPersistence wrapping cause", err)
	}
	if _, err := svc.CountUnused(context.Background()); !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("CountUnused() error = %v, want ErrPersistence", err)
	}
}

func TestCodeServiceCountUnused(t *testing.T) {
	t.Parallel()

	repo := &fakeCodeRepo{countUnusedFn: func(ctx context.Context) (int64, error) {
		return 42, nil
	}}
	svc, _ := NewCodeService(repo, 0, nil)

	count, err := svc.CountUnused(context.Background())
	if err != nil {
		t.Fatalf("CountUnused() error = %v", err)
	}
	if count != 42 {
		t.Fatalf("CountUnused() = %d, want 42", count)
	}
}
