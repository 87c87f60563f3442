package user

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/secondhand-market/internal/apperror"
	"github.com/wichananm65/secondhand-market/internal/auth"
	"github.com/wichananm65/secondhand-market/internal/router"
)

type Handler struct {
	service *Service
	issuer  *auth.Issuer
}

func NewHandler(service *Service, issuer *auth.Issuer) *Handler {
	return &Handler{service: service, issuer: issuer}
}

func (h *Handler) Routes() []router.Route {
	return []router.Route{
		{Method: fiber.MethodPost, Path: "/api/auth/register", Handler: h.register},
		{Method: fiber.MethodPost, Path: "/api/auth/login", Handler: h.login},
		{Method: fiber.MethodGet, Path: "/api/auth/me", Access: router.RequiresAuth, Handler: h.me},
		{Method: fiber.MethodPut, Path: "/api/auth/update-profile", Access: router.RequiresAuth, Handler: h.updateProfile},
	}
}

func (h *Handler) register(c *fiber.Ctx) error {
	var payload registerRequest
	if err := apperror.ParseBody(c, &payload); err != nil {
		return err
	}

	created, err := h.service.Register(c.UserContext(), payload.Name, payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			return apperror.Conflict("User already exists with this email")
		}
		return apperror.Unexpected(err)
	}

	token, err := h.token(created)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "User registered successfully",
		"data":    fiber.Map{"user": created, "token": token},
	})
}

func (h *Handler) login(c *fiber.Ctx) error {
	var payload loginRequest
	if err := apperror.ParseBody(c, &payload); err != nil {
		return err
	}

	user, err := h.service.Authenticate(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return apperror.Authentication("Invalid email or password")
	}

	token, err := h.token(user)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Login successful",
		"data":    fiber.Map{"user": user, "token": token},
	})
}

func (h *Handler) me(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}
	user, err := h.service.GetByID(c.UserContext(), userID)
	if err != nil {
		return translate(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": user})
}

func (h *Handler) updateProfile(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}
	var payload ProfileUpdate
	if err := apperror.ParseBody(c, &payload); err != nil {
		return err
	}
	user, err := h.service.UpdateProfile(c.UserContext(), userID, payload)
	if err != nil {
		return translate(err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Profile updated successfully", "data": user})
}

func (h *Handler) token(u User) (string, error) {
	signed, err := h.issuer.Issue(auth.Claims{UserID: u.ID.Hex(), Email: u.Email, Name: u.Name})
	if err != nil {
		return "", apperror.Unexpected(err)
	}
	return signed, nil
}

func translate(err error) error {
	if errors.Is(err, ErrNotFound) {
		return apperror.NotFound("User not found")
	}
	return apperror.Unexpected(err)
}
