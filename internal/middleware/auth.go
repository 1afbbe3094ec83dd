// Package middleware provides authentication, logging, metrics, tracing and
// rate limiting middleware for the HTTP API.
package middleware

import (
	"strconv"
	"strings"

	"banledger/internal/config"
	"banledger/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var cfg *config.Config

// InitMiddleware initializes authentication middleware with the given config.
func InitMiddleware(c *config.Config) {
	cfg = c
}

// AuthRequired validates the bearer token and stores the caller's user ID
// (the "sub" claim, a snowflake) in c.Locals("userID") as uint64. Tokens must
// be HS256 and carry an expiry.
func AuthRequired(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return unauthorized(c, "Authorization header required")
	}

	scheme, raw, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || raw == "" {
		return unauthorized(c, "Invalid authorization header format")
	}

	var claims jwt.RegisteredClaims
	keyFunc := func(*jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	}
	token, err := jwt.ParseWithClaims(raw, &claims, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return unauthorized(c, "Invalid or expired token")
	}

	if claims.Subject == "" {
		return unauthorized(c, "Invalid token structure - missing subject")
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || userID == 0 {
		return unauthorized(c, "Invalid user ID in token")
	}

	c.Locals("userID", userID)

	return c.Next()
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(msg))
}
