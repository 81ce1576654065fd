// server/auth/auth.go
package auth

import (
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

// TokenHeader carries the shared access token on every API request.
const TokenHeader = "X-Arbor-Token"

// HashToken derives the bcrypt hash stored in configuration.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Middleware rejects requests whose token does not match the configured
// bcrypt hash. An empty hash disables auth (development mode).
func Middleware(tokenHash string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tokenHash == "" {
			return c.Next()
		}
		token := c.Get(TokenHeader)
		if err := bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(token)); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}
		return c.Next()
	}
}
