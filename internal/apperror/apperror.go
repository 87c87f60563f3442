// Package apperror carries the error taxonomy shared by every HTTP handler and
// renders failures as the structured {success:false, message, error} body.
package apperror

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUpstream:
		return "upstream"
	default:
		return "unexpected"
	}
}

// Status maps the kind onto an HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return fiber.StatusBadRequest
	case KindAuthentication:
		return fiber.StatusUnauthorized
	case KindAuthorization:
		return fiber.StatusForbidden
	case KindNotFound:
		return fiber.StatusNotFound
	case KindConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// Error is a classified failure. Message is safe to show to clients; Err is
// the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }

func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Authentication(msg string) *Error { return &Error{Kind: KindAuthentication, Message: msg} }

func Authorization(msg string) *Error { return &Error{Kind: KindAuthorization, Message: msg} }

func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

// Upstream wraps a failure reported by a third-party processor. Its message is
// passed through to the client.
func Upstream(msg string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: msg, Err: err}
}

// Unexpected wraps anything that was not classified. Clients only ever see a
// generic message.
func Unexpected(err error) *Error {
	return &Error{Kind: KindUnexpected, Message: "Internal server error", Err: err}
}

// KindOf returns the classification of err, KindUnexpected when unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// Response is the body written for every failed request.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// Handler is installed as fiber.Config.ErrorHandler.
func Handler(c *fiber.Ctx, err error) error {
	var appErr *Error
	if errors.As(err, &appErr) {
		body := Response{Message: appErr.Message}
		switch appErr.Kind {
		case KindUnexpected:
			log.Errorf("%s %s: %v", c.Method(), c.Path(), appErr.Err)
		case KindUpstream:
			log.Warnf("%s %s: upstream failure: %v", c.Method(), c.Path(), appErr.Err)
			if appErr.Err != nil {
				body.Error = appErr.Err.Error()
			}
		default:
			if appErr.Err != nil {
				body.Error = appErr.Err.Error()
			}
		}
		return c.Status(appErr.Kind.Status()).JSON(body)
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(Response{Message: fe.Message})
	}

	log.Errorf("%s %s: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(Response{Message: "Internal server error"})
}
