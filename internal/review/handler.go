package review

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/wichananm65/secondhand-market/internal/apperror"
	"github.com/wichananm65/secondhand-market/internal/auth"
	"github.com/wichananm65/secondhand-market/internal/router"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) Routes() []router.Route {
	return []router.Route{
		{Method: fiber.MethodGet, Path: "/api/products/:id/reviews", Handler: h.listReviews},
		{Method: fiber.MethodPost, Path: "/api/products/:id/reviews", Access: router.RequiresAuth, Handler: h.createReview},
		{Method: fiber.MethodPut, Path: "/api/products/:id/reviews/:reviewId", Access: router.RequiresAuth, Handler: h.updateReview},
		{Method: fiber.MethodDelete, Path: "/api/products/:id/reviews/:reviewId", Access: router.RequiresAuth, Handler: h.deleteReview},
	}
}

func (h *Handler) listReviews(c *fiber.Ctx) error {
	res, err := h.service.List(c.UserContext(), c.Params("id"))
	if err != nil {
		return translate(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": res})
}

func (h *Handler) createReview(c *fiber.Ctx) error {
	claims, err := auth.FromCtx(c)
	if err != nil {
		return err
	}
	var req CreateRequest
	if err := apperror.ParseBody(c, &req); err != nil {
		return err
	}
	rv, err := h.service.Create(c.UserContext(), utils.CopyString(c.Params("id")), Author{ID: claims.UserID, Name: claims.Name}, req)
	if err != nil {
		return translate(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Review created successfully",
		"data":    rv,
	})
}

func (h *Handler) updateReview(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}
	var req UpdateRequest
	if err := apperror.ParseBody(c, &req); err != nil {
		return err
	}
	rv, err := h.service.Update(c.UserContext(), c.Params("id"), c.Params("reviewId"), userID, req)
	if err != nil {
		return translate(err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Review updated successfully", "data": rv})
}

func (h *Handler) deleteReview(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), c.Params("id"), c.Params("reviewId"), userID); err != nil {
		return translate(err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Review deleted successfully"})
}

func translate(err error) error {
	switch {
	case errors.Is(err, ErrProductNotFound):
		return apperror.NotFound("Product not found")
	case errors.Is(err, ErrNotFound):
		return apperror.NotFound("Review not found")
	case errors.Is(err, ErrInvalidID):
		return apperror.Validation("Invalid review id")
	case errors.Is(err, ErrCommentTooShort):
		return apperror.Validation(ErrCommentTooShort.Error())
	case errors.Is(err, ErrDuplicate):
		return apperror.Conflict("You have already reviewed this product")
	case errors.Is(err, ErrForbidden):
		return apperror.Authorization("Not authorized to modify this review")
	default:
		return apperror.Unexpected(err)
	}
}
