package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/apperr"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// clockSkew is the leeway applied to exp, nbf and iat checks.
const clockSkew = time.Minute

// JWTAuth validates HS256 bearer tokens and stores the subject as user_id.
func JWTAuth(secret string) fiber.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(clockSkew),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)

	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodOptions {
			return c.Next()
		}
		if secret == "" {
			return apperr.ConfigError("JWT secret not configured")
		}

		tokenString := bearerToken(c.Get(fiber.HeaderAuthorization))
		if tokenString == "" {
			return apperr.Unauthorized("missing authorization")
		}

		claims := &jwt.RegisteredClaims{}
		_, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		if err != nil {
			logger.WithError(err).Debug("JWT validation failed")
			if errors.Is(err, jwt.ErrTokenExpired) {
				return apperr.New(apperr.CodeTokenExpired, "token expired", fiber.StatusUnauthorized)
			}
			return apperr.InvalidToken("invalid token")
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			return apperr.InvalidToken("invalid user id format")
		}

		c.Locals("user_id", userID)
		return c.Next()
	}
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// IssueToken signs an HS256 token for userID. Used by the CLI and tests.
func IssueToken(secret string, userID uuid.UUID, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("JWT secret not configured")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
