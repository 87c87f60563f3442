// Package authtest provides a lightweight gate for handler tests. It injects a
// jwt.Token into locals when the X-User-ID header is present, avoiding signed
// tokens in every test.
package authtest

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/golang-jwt/jwt/v4"
	"github.com/wichananm65/secondhand-market/internal/auth"
)

const (
	HeaderUserID = "X-User-ID"
	HeaderEmail  = "X-User-Email"
	HeaderName   = "X-User-Name"
)

// Gate satisfies router.Gate.
type Gate struct{}

func (Gate) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !inject(c) {
			return auth.ErrUnauthenticated
		}
		return c.Next()
	}
}

func (Gate) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		inject(c)
		return c.Next()
	}
}

func inject(c *fiber.Ctx) bool {
	id := utils.CopyString(c.Get(HeaderUserID))
	if id == "" {
		return false
	}
	claims := jwt.MapClaims{
		"user_id": id,
		"email":   utils.CopyString(c.Get(HeaderEmail)),
		"name":    utils.CopyString(c.Get(HeaderName)),
	}
	c.Locals(auth.ContextKey, &jwt.Token{Claims: claims})
	return true
}
