package cart

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/wichananm65/secondhand-market/internal/apperror"
	"github.com/wichananm65/secondhand-market/internal/auth"
	"github.com/wichananm65/secondhand-market/internal/router"
)

// Handler delegates cart operations to the cart service. Every route acts on
// the caller's own cart.
type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) Routes() []router.Route {
	return []router.Route{
		{Method: fiber.MethodGet, Path: "/api/cart", Access: router.RequiresAuth, Handler: h.getCart},
		{Method: fiber.MethodPost, Path: "/api/cart/items", Access: router.RequiresAuth, Handler: h.addItem},
		{Method: fiber.MethodPost, Path: "/api/cart/merge", Access: router.RequiresAuth, Handler: h.merge},
		{Method: fiber.MethodPut, Path: "/api/cart/items/:productId", Access: router.RequiresAuth, Handler: h.updateItem},
		{Method: fiber.MethodDelete, Path: "/api/cart/items/:productId", Access: router.RequiresAuth, Handler: h.removeItem},
		{Method: fiber.MethodDelete, Path: "/api/cart", Access: router.RequiresAuth, Handler: h.clear},
	}
}

type addRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"omitempty,min=1,max=99"`
}

type updateRequest struct {
	Quantity int `json:"quantity" validate:"min=0,max=99"`
}

type mergeRequest struct {
	Items []Line `json:"items"`
}

func (h *Handler) getCart(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}
	cart, err := h.service.Get(c.UserContext(), userID)
	if err != nil {
		return translate(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": cart})
}

func (h *Handler) addItem(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}
	var payload addRequest
	if err := apperror.ParseBody(c, &payload); err != nil {
		return err
	}
	if payload.Quantity == 0 {
		payload.Quantity = 1
	}
	cart, err := h.service.AddItem(c.UserContext(), userID, payload.ProductID, payload.Quantity)
	if err != nil {
		return translate(err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Item added to cart", "data": cart})
}

func (h *Handler) updateItem(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}
	var payload updateRequest
	if err := apperror.ParseBody(c, &payload); err != nil {
		return err
	}
	cart, err := h.service.UpdateItem(c.UserContext(), userID, productParam(c), payload.Quantity)
	if err != nil {
		return translate(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": cart})
}

func (h *Handler) removeItem(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}
	cart, err := h.service.RemoveItem(c.UserContext(), userID, productParam(c))
	if err != nil {
		return translate(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": cart})
}

func (h *Handler) clear(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}
	if err := h.service.Clear(c.UserContext(), userID); err != nil {
		return translate(err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Cart cleared", "data": View(nil)})
}

func (h *Handler) merge(c *fiber.Ctx) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return err
	}
	var payload mergeRequest
	if err := apperror.ParseBody(c, &payload); err != nil {
		return err
	}
	cart, err := h.service.Merge(c.UserContext(), userID, payload.Items, c.Query("policy"))
	if err != nil {
		return translate(err)
	}
	return c.JSON(fiber.Map{"success": true, "data": cart})
}

// productParam copies the route parameter; fiber reuses its memory once the
// request is done and the id may end up as a repository map key.
func productParam(c *fiber.Ctx) string {
	return utils.CopyString(c.Params("productId"))
}

func translate(err error) error {
	switch {
	case errors.Is(err, ErrProductNotFound):
		return apperror.NotFound("Product not found")
	case errors.Is(err, ErrLineNotFound):
		return apperror.NotFound("Product is not in the cart")
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrUnknownPolicy):
		return apperror.Validation(err.Error())
	case errors.Is(err, ErrConcurrentUpdate):
		return apperror.Conflict(err.Error())
	default:
		return apperror.Unexpected(err)
	}
}
