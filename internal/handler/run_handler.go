package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/issuance-engine/internal/domain"
)

const (
	defaultRunListLimit = 20
	maxRunListLimit     = 100
)

type RunService interface {
	StartRun(ctx context.Context) (*domain.Run, error)
	GetRun(ctx context.Context, id string) (*domain.Run, error)
	ListRuns(ctx context.Context, limit int) ([]domain.Run, error)
}

type RunHandler struct {
	service RunService
}

func NewRunHandler(service RunService) (*RunHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("run service is required")
	}
	return &RunHandler{service: service}, nil
}

func RegisterRunRoutes(router fiber.Router, service RunService) error {
	h, err := NewRunHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/runs", h.StartRun)
	v1.Get("/runs", h.ListRuns)
	v1.Get("/runs/:id", h.GetRun)

	return nil
}

type runResponse struct {
	ID              string     `json:"id"`
	Status          string     `json:"status"`
	CredentialCount int        `json:"credentialCount"`
	BatchCount      int        `json:"batchCount"`
	AcquiredCount   int        `json:"acquiredCount"`
	FailedCount     int        `json:"failedCount"`
	Error           *string    `json:"error,omitempty"`
	StartedAt       time.Time  `json:"startedAt"`
	FinishedAt      *time.Time `json:"finishedAt,omitempty"`
}

type listRunsResponse struct {
	Data []runResponse `json:"data"`
}

func (h *RunHandler) StartRun(c *fiber.Ctx) error {
	run, err := h.service.StartRun(requestContext(c))
	if err != nil {
		return toHTTPError(err)
	}

	c.Location("/v1/runs/" + run.ID)
	return c.Status(fiber.StatusAccepted).JSON(toRunResponse(run))
}

func (h *RunHandler) GetRun(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	run, err := h.service.GetRun(requestContext(c), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toRunResponse(run))
}

func (h *RunHandler) ListRuns(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultRunListLimit)
	if limit < 1 || limit > maxRunListLimit {
		return toHTTPError(fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, maxRunListLimit))
	}

	runs, err := h.service.ListRuns(requestContext(c), limit)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]runResponse, 0, len(runs))
	for i := range runs {
		data = append(data, toRunResponse(&runs[i]))
	}
	return c.Status(fiber.StatusOK).JSON(listRunsResponse{Data: data})
}

func toRunResponse(run *domain.Run) runResponse {
	if run == nil {
		return runResponse{}
	}

	return runResponse{
		ID:              run.ID,
		Status:          run.Status.String(),
		CredentialCount: run.CredentialCount,
		BatchCount:      run.BatchCount,
		AcquiredCount:   run.AcquiredCount,
		FailedCount:     run.FailedCount,
		Error:           run.Error,
		StartedAt:       run.StartedAt,
		FinishedAt:      run.FinishedAt,
	}
}
