package payment

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/wichananm65/secondhand-market/internal/apperror"
	"github.com/wichananm65/secondhand-market/internal/auth"
	"github.com/wichananm65/secondhand-market/internal/router"
)

// SignatureHeader carries the processor's webhook signature.
const SignatureHeader = "Stripe-Signature"

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) Routes() []router.Route {
	return []router.Route{
		{Method: fiber.MethodPost, Path: "/api/create-payment-intent", Access: router.OptionalAuth, Handler: h.createIntent},
		{Method: fiber.MethodPost, Path: "/api/confirm-payment", Access: router.OptionalAuth, Handler: h.confirm},
		{Method: fiber.MethodGet, Path: "/api/payment-status/:transactionId", Handler: h.status},
		{Method: fiber.MethodGet, Path: "/api/payments/:email", Access: router.RequiresAuth, Handler: h.listByEmail},
		{Method: fiber.MethodPost, Path: "/api/refund-payment", Access: router.RequiresAuth, Handler: h.refund},
		{Method: fiber.MethodPost, Path: "/webhook", Handler: h.webhook},
	}
}

type intentRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency" validate:"omitempty,len=3"`
	Email    string          `json:"email" validate:"omitempty,email"`
}

type transactionRequest struct {
	TransactionID string `json:"transactionId" validate:"required"`
}

func (h *Handler) createIntent(c *fiber.Ctx) error {
	var payload intentRequest
	if err := apperror.ParseBody(c, &payload); err != nil {
		return err
	}
	if payload.Email == "" {
		if claims, err := auth.FromCtx(c); err == nil {
			payload.Email = claims.Email
		}
	}
	if payload.Email == "" {
		return apperror.Validation("Email is required")
	}

	res, err := h.service.CreateIntent(c.UserContext(), IntentRequest{
		Email:    payload.Email,
		Amount:   payload.Amount,
		Currency: payload.Currency,
	})
	if err != nil {
		return translate(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"clientSecret":  res.ClientSecret,
			"transactionId": res.Payment.TransactionID,
			"payment":       res.Payment,
		},
	})
}

func (h *Handler) confirm(c *fiber.Ctx) error {
	var payload transactionRequest
	if err := apperror.ParseBody(c, &payload); err != nil {
		return err
	}
	p, err := h.service.Confirm(c.UserContext(), payload.TransactionID)
	if err != nil {
		return translate(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": p})
}

func (h *Handler) status(c *fiber.Ctx) error {
	p, err := h.service.Status(c.UserContext(), c.Params("transactionId"))
	if err != nil {
		return translate(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{
		"transactionId": p.TransactionID,
		"status":        p.Status,
		"amount":        p.Amount,
		"currency":      p.Currency,
		"updatedAt":     p.UpdatedAt,
	}})
}

func (h *Handler) listByEmail(c *fiber.Ctx) error {
	claims, err := auth.FromCtx(c)
	if err != nil {
		return err
	}
	email := c.Params("email")
	if !strings.EqualFold(claims.Email, email) {
		return apperror.Authorization("You can only view your own payments")
	}
	payments, err := h.service.ListByEmail(c.UserContext(), email)
	if err != nil {
		return translate(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": payments})
}

func (h *Handler) refund(c *fiber.Ctx) error {
	claims, err := auth.FromCtx(c)
	if err != nil {
		return err
	}
	var payload transactionRequest
	if err := apperror.ParseBody(c, &payload); err != nil {
		return err
	}
	p, err := h.service.Status(c.UserContext(), payload.TransactionID)
	if err != nil {
		return translate(err)
	}
	if !strings.EqualFold(claims.Email, p.Email) {
		return apperror.Authorization("You can only refund your own payments")
	}
	p, err = h.service.Refund(c.UserContext(), payload.TransactionID)
	if err != nil {
		return translate(err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Payment refunded", "data": p})
}

// webhook answers 2xx for every verified event so the processor stops
// redelivering, including events it has sent before. An event that arrived
// ahead of the status it depends on gets a 409 so it is delivered again.
func (h *Handler) webhook(c *fiber.Ctx) error {
	if err := h.service.HandleWebhook(c.UserContext(), c.Body(), c.Get(SignatureHeader)); err != nil {
		return translate(err)
	}
	return c.JSON(fiber.Map{"received": true})
}

func translate(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return apperror.NotFound("Payment not found")
	case errors.Is(err, ErrInvalidAmount):
		return apperror.Validation(err.Error())
	case errors.Is(err, ErrInvalidSignature):
		return &apperror.Error{Kind: apperror.KindValidation, Message: "Webhook signature verification failed", Err: err}
	case errors.Is(err, ErrNotRefundable), errors.Is(err, ErrIllegalTransition), errors.Is(err, ErrEventTooEarly):
		return apperror.Conflict(err.Error())
	case errors.Is(err, ErrProcessor):
		return apperror.Upstream(err.Error(), err)
	default:
		return apperror.Unexpected(err)
	}
}
