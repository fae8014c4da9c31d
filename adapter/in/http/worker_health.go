package http

import (
	"context"
	"sort"
	"time"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/infra/database"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
)

// HealthChecker is any dependency that can be pinged.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// CheckFunc adapts a ping function to HealthChecker.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthHandler struct {
	db     *sqlx.DB
	checks map[string]HealthChecker
}

// NewHealthHandler creates a health handler. db may be nil when the service
// runs on the embedded store.
func NewHealthHandler(db *sqlx.DB) *HealthHandler {
	return &HealthHandler{db: db, checks: make(map[string]HealthChecker)}
}

// AddCheck registers a dependency probed by /ready.
func (h *HealthHandler) AddCheck(name string, check HealthChecker) *HealthHandler {
	if check != nil {
		h.checks[name] = check
	}
	return h
}

func (h *HealthHandler) Register(app fiber.Router) {
	app.Get("/health", h.Health)
	app.Get("/ready", h.Ready)
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.checks)+1)
	allHealthy := true

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			checks["postgres"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks["postgres"] = "healthy"
		}
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks[name] = "healthy"
		}
	}

	status := "ready"
	statusCode := fiber.StatusOK
	if !allHealthy {
		status = "not ready"
		statusCode = fiber.StatusServiceUnavailable
	}

	body := fiber.Map{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.db != nil {
		body["pool"] = database.GetPoolStats(h.db)
	}
	return c.Status(statusCode).JSON(body)
}
