package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

type localsKey string

const claimsKey localsKey = "claims"

// requireBearer resolves the Authorization header and stores the claims in
// the request locals.
func (s *HTTPServer) requireBearer(c *fiber.Ctx) error {
	token, ok := common.ParseBearer(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return common.ErrInvalidToken
	}

	claims, err := s.users.ResolveToken(token)
	if err != nil {
		return err
	}

	c.Locals(claimsKey, claims)
	return c.Next()
}

func requireRole(role models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := claimsFrom(c)
		if claims == nil {
			return common.ErrInvalidToken
		}
		if claims.Role != role {
			return common.ErrForbidden
		}
		return c.Next()
	}
}

func claimsFrom(c *fiber.Ctx) *auth.Claims {
	claims, _ := c.Locals(claimsKey).(*auth.Claims)
	return claims
}

func (s *HTTPServer) accessLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	// run the error handler now so the logged status is the final one
	if err != nil {
		if herr := c.App().ErrorHandler(c, err); herr != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	rid, _ := c.Locals("requestid").(string)
	s.logger.Info(c.UserContext(), "http request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"latency_ms", time.Since(start).Milliseconds(),
		"request_id", rid,
	)

	return nil
}
