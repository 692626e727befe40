package middleware

import (
	"strings"

	"catalogue-order/services/session"
	"catalogue-order/types"

	"github.com/gofiber/fiber/v2"
)

// Context keys set by the session gate.
const (
	LocalsEmail    = "email"
	LocalsTokenID  = "tokenId"
	LocalsEditMode = "editToken"
)

// RequireSession gates the order flow behind a verified portal session.
// A request carrying an edit token (query parameter or X-Edit-Token header)
// bypasses the gate: the token itself is the credential for that order.
func RequireSession(sessions *session.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if editToken := editTokenFrom(c); editToken != "" {
			c.Locals(LocalsEditMode, editToken)
			return c.Next()
		}

		token, err := ExtractBearerToken(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(types.Err(
				fiber.StatusUnauthorized, "Authorization token missing"))
		}

		claims, err := sessions.Verify(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(types.Err(
				fiber.StatusUnauthorized, "Session expired. Login again."))
		}

		c.Locals(LocalsEmail, claims.Email)
		c.Locals(LocalsTokenID, claims.TokenID)
		return c.Next()
	}
}

// ExtractBearerToken pulls the token out of the Authorization header, or
// falls back to the access cookie.
func ExtractBearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get("Authorization")
	if authHeader != "" {
		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			return "", fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header format")
		}
		return tokenParts[1], nil
	}

	if token := c.Cookies("access"); token != "" {
		return token, nil
	}
	return "", fiber.NewError(fiber.StatusUnauthorized, "authorization token missing")
}

func editTokenFrom(c *fiber.Ctx) string {
	if token := c.Query("edit"); token != "" {
		return token
	}
	return c.Get("X-Edit-Token")
}
