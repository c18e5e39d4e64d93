package middleware

import (
	"strings"

	"github.com/auditsuite/tasktimer/internal/config"
	"github.com/gofiber/fiber/v2"
)

// LocalUserID is the fiber Locals key holding the acting user.
const LocalUserID = "user_id"

// APIKeyAuth requires the configured key in X-API-Key or a bearer token.
// An empty key disables the check.
func APIKeyAuth(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := cfg.Auth.APIKey
		if apiKey == "" {
			return c.Next()
		}

		headerToken := c.Get("X-API-Key")
		if headerToken == "" {
			auth := c.Get("Authorization")
			const prefix = "Bearer "
			if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
				headerToken = auth[len(prefix):]
			}
		}

		if headerToken != apiKey {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}

		return c.Next()
	}
}

// ActingUser reads the user every timer operation is scoped to.
func ActingUser(cfg *config.Config) fiber.Handler {
	header := cfg.Auth.UserHeader
	if header == "" {
		header = "X-User-ID"
	}
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get(header))
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing " + header + " header",
			})
		}
		c.Locals(LocalUserID, userID)
		return c.Next()
	}
}

func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}
