// Package auth issues and validates bearer tokens and exposes the fiber
// middleware guarding authenticated routes.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/wichananm65/secondhand-market/internal/apperror"
)

// ContextKey is the fiber locals key holding the parsed *jwt.Token.
const ContextKey = "user"

var ErrUnauthenticated = apperror.Authentication("Authentication required")

// Claims is the identity carried by a token.
type Claims struct {
	UserID string
	Email  string
	Name   string
}

// Issuer signs tokens and builds the middleware that verifies them.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed HS256 token for the given identity.
func (i *Issuer) Issue(c Claims) (string, error) {
	claims := jwt.MapClaims{
		"user_id": c.UserID,
		"email":   c.Email,
		"name":    c.Name,
		"exp":     i.now().Add(i.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Parse validates a raw token and returns its claims.
func (i *Issuer) Parse(raw string) (Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return Claims{}, err
	}
	return claimsFromToken(tok)
}

// Required rejects requests without a valid bearer token.
func (i *Issuer) Required() fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:    i.secret,
		SigningMethod: "HS256",
		ContextKey:    ContextKey,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if c.Get(fiber.HeaderAuthorization) == "" {
				return apperror.Authentication("Authorization header required")
			}
			return &apperror.Error{Kind: apperror.KindAuthentication, Message: "Invalid or expired token", Err: err}
		},
	})
}

// Optional lets anonymous requests through but still rejects a bad token.
func (i *Issuer) Optional() fiber.Handler {
	required := i.Required()
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) == "" {
			return c.Next()
		}
		return required(c)
	}
}

// FromCtx extracts the claims of the authenticated caller.
func FromCtx(c *fiber.Ctx) (Claims, error) {
	tok, ok := c.Locals(ContextKey).(*jwt.Token)
	if !ok || tok == nil {
		return Claims{}, ErrUnauthenticated
	}
	return claimsFromToken(tok)
}

// UserID returns the authenticated caller's id.
func UserID(c *fiber.Ctx) (string, error) {
	claims, err := FromCtx(c)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func claimsFromToken(tok *jwt.Token) (Claims, error) {
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrUnauthenticated
	}
	id, _ := mc["user_id"].(string)
	if id == "" {
		return Claims{}, errors.Join(ErrUnauthenticated, errors.New("token has no user_id"))
	}
	email, _ := mc["email"].(string)
	name, _ := mc["name"].(string)
	return Claims{UserID: id, Email: email, Name: name}, nil
}
