// Package router mounts feature routes with their access requirement declared
// on the route itself rather than inferred from path patterns.
package router

import (
	"github.com/gofiber/fiber/v2"
)

// Access is the capability a route requires from the caller.
type Access int

const (
	Public Access = iota
	// OptionalAuth identifies the caller when a token is sent.
	OptionalAuth
	// RequiresAuth rejects callers without a valid token.
	RequiresAuth
)

func (a Access) String() string {
	switch a {
	case OptionalAuth:
		return "optional"
	case RequiresAuth:
		return "required"
	default:
		return "public"
	}
}

// Gate supplies the middleware enforcing each access level.
type Gate interface {
	Required() fiber.Handler
	Optional() fiber.Handler
}

// Route is the declared contract of one endpoint.
type Route struct {
	Method  string
	Path    string
	Access  Access
	Handler fiber.Handler
}

// Mount registers routes in order, prefixing each handler with the gate its
// Access asks for.
func Mount(r fiber.Router, gate Gate, routes ...Route) {
	for _, rt := range routes {
		handlers := make([]fiber.Handler, 0, 2)
		switch rt.Access {
		case RequiresAuth:
			handlers = append(handlers, gate.Required())
		case OptionalAuth:
			handlers = append(handlers, gate.Optional())
		}
		handlers = append(handlers, rt.Handler)
		r.Add(rt.Method, rt.Path, handlers...)
	}
}
