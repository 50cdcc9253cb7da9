package http

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

type registerRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Role     string `json:"role" form:"role"`
}

// loginRequest accepts both the JSON shape and the OAuth2 password form,
// where the email travels as "username".
type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type userResponse struct {
	ID    int64       `json:"id"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Role: u.Role}
}

func (s *HTTPServer) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *HTTPServer) register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}

	u, err := s.users.Register(c.UserContext(), strings.TrimSpace(req.Email), req.Password, req.Role)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(toUserResponse(u))
}

func (s *HTTPServer) login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}

	email := req.Email
	if email == "" {
		email = req.Username
	}

	tok, err := s.users.Login(c.UserContext(), strings.TrimSpace(email), req.Password)
	if err != nil {
		return err
	}

	return c.JSON(tok)
}

func (s *HTTPServer) me(c *fiber.Ctx) error {
	u, err := s.users.CurrentUser(c.UserContext(), claimsFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(toUserResponse(u))
}

func (s *HTTPServer) getUser(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}

	u, err := s.users.GetByID(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(toUserResponse(u))
}
