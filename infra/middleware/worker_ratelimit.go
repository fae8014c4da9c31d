package middleware

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Allower decides whether a request identified by key may proceed.
// ratelimit.SlidingWindowLimiter implements it.
type Allower interface {
	Allow(ctx context.Context, key string) (bool, time.Duration)
}

// RateLimit rejects requests over the limiter's budget with 429. Requests
// are keyed by authenticated user, or by client IP before auth.
func RateLimit(limiter Allower) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if limiter == nil {
			return c.Next()
		}

		key := "ip:" + c.IP()
		if uid, ok := c.Locals("user_id").(uuid.UUID); ok {
			key = "user:" + uid.String()
		}

		allowed, retryAfter := limiter.Allow(c.UserContext(), key)
		if allowed {
			return c.Next()
		}

		seconds := int(math.Ceil(retryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		c.Set(fiber.HeaderRetryAfter, fmt.Sprintf("%d", seconds))
		return apperr.ErrRateLimited
	}
}
