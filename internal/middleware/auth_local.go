package middleware

import (
	"campusbot/pkg/auth"
	"log"

	"github.com/gofiber/fiber/v2"
)

// bearerToken returns the token from the Authorization header, or ""
func bearerToken(c *fiber.Ctx) string {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	token, err := auth.ExtractToken(authHeader)
	if err != nil {
		return ""
	}
	return token
}

func setUser(c *fiber.Ctx, user *auth.User) {
	c.Locals("user_id", user.ID)
	c.Locals("user_email", user.Email)
	c.Locals("user_role", user.Role)
}

// LocalAuthMiddleware verifies local JWT access tokens and rejects the
// request when none is present.
func LocalAuthMiddleware(jwtAuth *auth.LocalJWTAuth) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if jwtAuth == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Authentication service unavailable",
			})
		}

		token := bearerToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing or invalid authorization token",
			})
		}

		user, err := jwtAuth.VerifyAccessToken(token)
		if err != nil {
			log.Printf("❌ [AUTH] Token rejected: %v", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		setUser(c, user)
		return c.Next()
	}
}

// OptionalLocalAuthMiddleware makes authentication optional. Requests
// without a valid token continue with no user locals set.
func OptionalLocalAuthMiddleware(jwtAuth *auth.LocalJWTAuth) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" || jwtAuth == nil {
			return c.Next()
		}

		user, err := jwtAuth.VerifyAccessToken(token)
		if err != nil {
			log.Printf("⚠️  [AUTH] Token validation failed: %v (continuing as anonymous)", err)
			return c.Next()
		}

		setUser(c, user)
		return c.Next()
	}
}
