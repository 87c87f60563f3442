package product

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/secondhand-market/internal/apperror"
	"github.com/wichananm65/secondhand-market/internal/auth"
	"github.com/wichananm65/secondhand-market/internal/router"
	"github.com/wichananm65/secondhand-market/internal/search"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes declares the catalog endpoints. Static paths come before /:id.
func (h *Handler) Routes() []router.Route {
	return []router.Route{
		{Method: fiber.MethodGet, Path: "/api/products", Handler: h.listProducts},
		{Method: fiber.MethodGet, Path: "/api/products/search/suggestions", Handler: h.suggestions},
		{Method: fiber.MethodPost, Path: "/api/products/images", Access: router.OptionalAuth, Handler: h.uploadImage},
		{Method: fiber.MethodGet, Path: "/api/products/:id", Handler: h.getProduct},
		{Method: fiber.MethodPost, Path: "/api/products", Access: router.OptionalAuth, Handler: h.createProduct},
		{Method: fiber.MethodDelete, Path: "/api/products/:id", Access: router.RequiresAuth, Handler: h.deleteProduct},
	}
}

func (h *Handler) listProducts(c *fiber.Ctx) error {
	q := search.Parse(func(k string) string { return c.Query(k) })
	res, err := h.service.Search(c.UserContext(), q)
	if err != nil {
		return apperror.Unexpected(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": res})
}

func (h *Handler) suggestions(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit"))
	res, err := h.service.Suggest(c.UserContext(), c.Query("q"), limit)
	if err != nil {
		return apperror.Unexpected(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": res})
}

func (h *Handler) getProduct(c *fiber.Ctx) error {
	p, err := h.service.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return translate(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": p})
}

func (h *Handler) createProduct(c *fiber.Ctx) error {
	var req CreateRequest
	if err := apperror.ParseBody(c, &req); err != nil {
		return err
	}

	var seller Seller
	if claims, err := auth.FromCtx(c); err == nil {
		seller = Seller{ID: claims.UserID, Name: claims.Name}
	}

	created, err := h.service.Create(c.UserContext(), req, seller)
	if err != nil {
		return translate(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Product created successfully",
		"data":    created,
	})
}

func (h *Handler) deleteProduct(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), c.Params("id"), userID); err != nil {
		return translate(err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Product deleted successfully"})
}

func (h *Handler) uploadImage(c *fiber.Ctx) error {
	fh, err := c.FormFile("image")
	if err != nil {
		return apperror.Validation("image file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return apperror.Unexpected(err)
	}
	defer f.Close()

	url, err := h.service.UploadImage(c.UserContext(), f, fh.Filename, fh.Size)
	switch {
	case errors.Is(err, ErrImageType), errors.Is(err, ErrImageSize), errors.Is(err, ErrUploadsDisabled):
		return translate(err)
	case err != nil:
		return apperror.Upstream("Image upload failed", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": fiber.Map{"url": url}})
}

func translate(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return apperror.NotFound("Product not found")
	case errors.Is(err, ErrInvalidID):
		return apperror.Validation("Invalid product id")
	case errors.Is(err, ErrForbidden):
		return apperror.Authorization("Not authorized to delete this product")
	case errors.Is(err, ErrImageType), errors.Is(err, ErrImageSize):
		return apperror.Validation(err.Error())
	case errors.Is(err, ErrUploadsDisabled):
		return apperror.Upstream("Image uploads are unavailable", err)
	default:
		return apperror.Unexpected(err)
	}
}
