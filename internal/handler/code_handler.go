package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/issuance-engine/internal/domain"
)

type CodeService interface {
	Dispense(ctx context.Context, n int) ([]domain.IssuedCode, error)
	CountUnused(ctx context.Context) (int64, error)
}

type CodeHandler struct {
	service CodeService
}

func NewCodeHandler(service CodeService) (*CodeHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("code service is required")
	}
	return &CodeHandler{service: service}, nil
}

func RegisterCodeRoutes(router fiber.Router, service CodeService) error {
	h, err := NewCodeHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/codes/dispense", h.Dispense)
	v1.Get("/codes/unused/count", h.CountUnused)

	return nil
}

type dispenseRequest struct {
	Count int `json:"count"`
}

type codeResponse struct {
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"createdAt"`
}

type dispenseResponse struct {
	Requested int            `json:"requested"`
	Dispensed int            `json:"dispensed"`
	Codes     []codeResponse `json:"codes"`
}

// Dispense hands out up to count codes. A short result is still 200.
func (h *CodeHandler) Dispense(c *fiber.Ctx) error {
	var req dispenseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	codes, err := h.service.Dispense(requestContext(c), req.Count)
	if err != nil {
		return toHTTPError(err)
	}

	items := make([]codeResponse, 0, len(codes))
	for _, code := range codes {
		items = append(items, codeResponse{Code: code.Code, CreatedAt: code.CreatedAt})
	}
	return c.Status(fiber.StatusOK).JSON(dispenseResponse{
		Requested: req.Count,
		Dispensed: len(items),
		Codes:     items,
	})
}

func (h *CodeHandler) CountUnused(c *fiber.Ctx) error {
	count, err := h.service.CountUnused(requestContext(c))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"unused": count})
}
