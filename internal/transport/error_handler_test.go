package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/issuance-engine/internal/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStatusOf(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		err         error
		wantCode    int
		wantMessage string
	}{
		{
			name:        "fiber error",
			err:         fiber.NewError(fiber.StatusBadRequest, "invalid request body"),
			wantCode:    fiber.StatusBadRequest,
			wantMessage: "invalid request body",
		},
		{
			name:        "validation",
			err:         fmt.Errorf("%w: count must be between 1 and 100", domain.ErrValidation),
			wantCode:    fiber.StatusBadRequest,
			wantMessage: "validation error: count must be between 1 and 100",
		},
		{name: "not found", err: domain.ErrNotFound, wantCode: fiber.StatusNotFound, wantMessage: domain.ErrNotFound.Error()},
		{name: "run in progress", err: domain.ErrRunInProgress, wantCode: fiber.StatusConflict, wantMessage: domain.ErrRunInProgress.Error()},
		{
			name:        "persistence is hidden",
			err:         fmt.Errorf("%w: dispense codes: %w", domain.ErrPersistence, errors.New("pq: connection refused")),
			wantCode:    fiber.StatusInternalServerError,
			wantMessage: internalErrorMessage,
		},
	}

	for _, tt := range testCases {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			code, message := StatusOf(tt.err)
			if code != tt.wantCode {
				t.Fatalf("StatusOf() code = %d, want %d", code, tt.wantCode)
			}
			if message != tt.wantMessage {
				t.Fatalf("StatusOf() message = %q, want %q", message, tt.wantMessage)
			}
		})
	}
}

func TestErrorHandlerWritesJSONAndLogs(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.New(core))})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return fmt.Errorf("%w: list runs: %w", domain.ErrPersistence, errors.New("timeout"))
	})
	app.Get("/missing", func(c *fiber.Ctx) error {
		return domain.ErrNotFound
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	var payload map[string]string
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if payload["error"] != internalErrorMessage {
		t.Fatalf("error = %q, want %q", payload["error"], internalErrorMessage)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/missing", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}

	if logs.FilterLevelExact(zapcore.ErrorLevel).Len() != 1 {
		t.Fatalf("error logs = %d, want 1", logs.FilterLevelExact(zapcore.ErrorLevel).Len())
	}
	if logs.FilterLevelExact(zapcore.WarnLevel).Len() != 1 {
		t.Fatalf("warn logs = %d, want 1", logs.FilterLevelExact(zapcore.WarnLevel).Len())
	}
}
