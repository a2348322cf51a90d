package handler

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const readinessTimeout = 2 * time.Second

// BrokerStatus reports whether the message broker connection is up.
type BrokerStatus interface {
	IsConnected() bool
}

// RegisterHealthRoutes wires liveness and readiness. rdb and broker are
// optional; a nil dependency is reported as disabled and never fails readiness.
func RegisterHealthRoutes(app fiber.Router, sqlDB *sql.DB, rdb *redis.Client, broker BrokerStatus) {
	app.Get("/livez", LivezHandler())
	app.Get("/readyz", ReadyzHandler(sqlDB, rdb, broker))
}

func LivezHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	}
}

func ReadyzHandler(sqlDB *sql.DB, rdb *redis.Client, broker BrokerStatus) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), readinessTimeout)
		defer cancel()

		ready := true
		check := func(err error) string {
			if err != nil {
				ready = false
				return "down"
			}
			return "ok"
		}

		checks := fiber.Map{
			"postgres": check(sqlDB.PingContext(ctx)),
			"redis":    "disabled",
			"rabbitmq": "disabled",
		}
		if rdb != nil {
			checks["redis"] = check(rdb.Ping(ctx).Err())
		}
		if broker != nil {
			status := "ok"
			if !broker.IsConnected() {
				status = "down"
				ready = false
			}
			checks["rabbitmq"] = status
		}

		status := "ready"
		statusCode := fiber.StatusOK
		if !ready {
			status = "not_ready"
			statusCode = fiber.StatusServiceUnavailable
		}

		return c.Status(statusCode).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
