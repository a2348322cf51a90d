package service

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
	"github.com/kursadbilgin/issuance-engine/internal/observability"
	"github.com/kursadbilgin/issuance-engine/internal/repository"
	"go.uber.org/zap"
)

const defaultMaxDispense = 100

// CodeService hands stored codes to consumers.
type CodeService struct {
	codes       repository.CodeRepository
	maxDispense int
	logger      *zap.Logger
	metrics     *observability.Metrics
}

func NewCodeService(codes repository.CodeRepository, maxDispense int, logger *zap.Logger) (*CodeService, error) {
	if codes == nil {
		return nil, fmt.Errorf("code repository is required")
	}
	if maxDispense < 1 {
		maxDispense = defaultMaxDispense
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CodeService{
		codes:       codes,
		maxDispense: maxDispense,
		logger:      logger,
	}, nil
}

func (s *CodeService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Dispense returns up to n unused codes oldest-first and marks them used.
// Fewer than n codes is not an error.
func (s *CodeService) Dispense(ctx context.Context, n int) ([]domain.IssuedCode, error) {
	if n < 1 || n > s.maxDispense {
		return nil, fmt.Errorf("%w: count must be between 1 and %d", domain.ErrValidation, s.maxDispense)
	}

	codes, err := s.codes.Dispense(ctx, n)
	if err != nil {
		return nil, persistenceError("dispense codes", err)
	}

	s.metrics.AddCodesDispensed(len(codes))
	observability.WithContextLogger(s.logger, ctx).Info("codes dispensed",
		zap.Int("requested", n),
		zap.Int("dispensed", len(codes)),
	)
	return codes, nil
}

func (s *CodeService) CountUnused(ctx context.Context) (int64, error) {
	count, err := s.codes.CountUnused(ctx)
	if err != nil {
		return 0, persistenceError("count unused codes", err)
	}
	return count, nil
}
