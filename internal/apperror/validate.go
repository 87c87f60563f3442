package apperror

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateStruct checks `validate` tags and reports every failing field in a
// single Validation error.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return Validation(err.Error())
	}
	fields := make([]string, 0, len(ves))
	for _, fe := range ves {
		fields = append(fields, describe(fe))
	}
	return &Error{Kind: KindValidation, Message: "Validation failed", Err: errors.New(strings.Join(fields, "; "))}
}

// ParseBody decodes the request body into v and validates it.
func ParseBody(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return &Error{Kind: KindValidation, Message: "Invalid request body", Err: err}
	}
	return ValidateStruct(v)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email", fe.Field())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
