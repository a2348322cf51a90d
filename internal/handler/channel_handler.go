package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/issuance-engine/internal/domain"
)

type ChannelService interface {
	Add(ctx context.Context, webhookURL string) (*domain.NotificationChannel, error)
	Remove(ctx context.Context, id string) error
	List(ctx context.Context) ([]domain.NotificationChannel, error)
}

type ChannelHandler struct {
	service ChannelService
}

func NewChannelHandler(service ChannelService) (*ChannelHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("channel service is required")
	}
	return &ChannelHandler{service: service}, nil
}

func RegisterChannelRoutes(router fiber.Router, service ChannelService) error {
	h, err := NewChannelHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/channels", h.AddChannel)
	v1.Get("/channels", h.ListChannels)
	v1.Delete("/channels/:id", h.RemoveChannel)

	return nil
}

type addChannelRequest struct {
	WebhookURL string `json:"webhookUrl"`
}

type channelResponse struct {
	ID         string    `json:"id"`
	WebhookURL string    `json:"webhookUrl"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (h *ChannelHandler) AddChannel(c *fiber.Ctx) error {
	var req addChannelRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	channel, err := h.service.Add(requestContext(c), req.WebhookURL)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toChannelResponse(channel))
}

func (h *ChannelHandler) ListChannels(c *fiber.Ctx) error {
	channels, err := h.service.List(requestContext(c))
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]channelResponse, 0, len(channels))
	for i := range channels {
		data = append(data, toChannelResponse(&channels[i]))
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": data})
}

func (h *ChannelHandler) RemoveChannel(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if err := h.service.Remove(requestContext(c), id); err != nil {
		return toHTTPError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func toChannelResponse(channel *domain.NotificationChannel) channelResponse {
	if channel == nil {
		return channelResponse{}
	}
	return channelResponse{
		ID:         channel.ID,
		WebhookURL: channel.WebhookURL,
		CreatedAt:  channel.CreatedAt,
	}
}
