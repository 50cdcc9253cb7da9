package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/dmitrijs2005/authkeeper/internal/common"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

// statusFor maps service errors to a status code and a client-safe message.
func statusFor(err error) (int, string) {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code, fe.Message
	case errors.Is(err, common.ErrDuplicateEmail):
		return fiber.StatusBadRequest, "Email already registered"
	case errors.Is(err, common.ErrValidation):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrInvalidCredentials):
		return fiber.StatusUnauthorized, "Incorrect email or password"
	case errors.Is(err, common.ErrInvalidToken):
		return fiber.StatusUnauthorized, "Could not validate credentials"
	case errors.Is(err, common.ErrForbidden):
		return fiber.StatusForbidden, "Insufficient permissions"
	case errors.Is(err, common.ErrNotFound):
		return fiber.StatusNotFound, "User not found"
	case errors.Is(err, common.ErrStoreUnavailable):
		return fiber.StatusServiceUnavailable, "Service temporarily unavailable"
	default:
		return fiber.StatusInternalServerError, "Internal server error"
	}
}

func (s *HTTPServer) errorHandler(c *fiber.Ctx, err error) error {
	code, detail := statusFor(err)

	if code >= fiber.StatusInternalServerError {
		rid, _ := c.Locals("requestid").(string)
		s.logger.Error(c.UserContext(), "request failed", "path", c.Path(), "request_id", rid, "error", err)
	}
	if code == fiber.StatusUnauthorized {
		c.Set(fiber.HeaderWWWAuthenticate, common.BearerScheme)
	}

	return c.Status(code).JSON(errorResponse{Detail: detail})
}
