package category

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/secondhand-market/internal/apperror"
	"github.com/wichananm65/secondhand-market/internal/router"
	"github.com/wichananm65/secondhand-market/internal/search"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) Routes() []router.Route {
	return []router.Route{
		{Method: fiber.MethodGet, Path: "/api/categories", Handler: h.listCategories},
		{Method: fiber.MethodGet, Path: "/api/categories/stats/overview", Handler: h.stats},
		{Method: fiber.MethodGet, Path: "/api/categories/:slug/products", Handler: h.categoryProducts},
		{Method: fiber.MethodGet, Path: "/api/categories/:id", Handler: h.getCategory},
		{Method: fiber.MethodPost, Path: "/api/categories", Access: router.RequiresAuth, Handler: h.createCategory},
		{Method: fiber.MethodPut, Path: "/api/categories/:id", Access: router.RequiresAuth, Handler: h.updateCategory},
		{Method: fiber.MethodDelete, Path: "/api/categories/:id", Access: router.RequiresAuth, Handler: h.deleteCategory},
	}
}

func (h *Handler) listCategories(c *fiber.Ctx) error {
	items, err := h.service.ListActive(c.UserContext())
	if err != nil {
		return translate(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": items})
}

func (h *Handler) stats(c *fiber.Ctx) error {
	o, err := h.service.Stats(c.UserContext())
	if err != nil {
		return translate(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": o})
}

func (h *Handler) getCategory(c *fiber.Ctx) error {
	cat, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return translate(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": cat})
}

func (h *Handler) categoryProducts(c *fiber.Ctx) error {
	cat, res, err := h.service.ProductsBySlug(c.UserContext(), c.Params("slug"), search.Parse(func(k string) string { return c.Query(k) }))
	if err != nil {
		return translate(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"category": cat, "products": res}})
}

func (h *Handler) createCategory(c *fiber.Ctx) error {
	var req CreateRequest
	if err := apperror.ParseBody(c, &req); err != nil {
		return err
	}
	cat, err := h.service.Create(c.UserContext(), req)
	if err != nil {
		return translate(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Category created successfully",
		"data":    cat,
	})
}

func (h *Handler) updateCategory(c *fiber.Ctx) error {
	var req UpdateRequest
	if err := apperror.ParseBody(c, &req); err != nil {
		return err
	}
	res, err := h.service.Update(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return translate(err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Category updated successfully", "data": res})
}

func (h *Handler) deleteCategory(c *fiber.Ctx) error {
	cat, err := h.service.SoftDelete(c.UserContext(), c.Params("id"))
	if err != nil {
		return translate(err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Category deactivated", "data": cat})
}

func translate(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return apperror.NotFound("Category not found")
	case errors.Is(err, ErrInvalidID):
		return apperror.Validation("Invalid category id")
	case errors.Is(err, ErrInvalidName):
		return apperror.Validation(ErrInvalidName.Error())
	case errors.Is(err, ErrDuplicate):
		return apperror.Conflict("Category with this name already exists")
	case errors.Is(err, ErrHasProducts):
		return &apperror.Error{Kind: apperror.KindConflict, Message: "Cannot delete category with existing products", Err: err}
	default:
		return apperror.Unexpected(err)
	}
}
