package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidationError lists the rejected fields and why, keyed by JSON field name.
type ValidationError struct {
	Fields map[string][]string
	order  []string
}

func (e *ValidationError) Error() string {
	return e.Message()
}

// Message summarizes the failure as the first problem plus a count of the rest.
func (e *ValidationError) Message() string {
	messages := lo.FlatMap(e.order, func(field string, _ int) []string {
		return e.Fields[field]
	})
	if len(messages) == 0 {
		return "The given data was invalid."
	}
	switch rest := len(messages) - 1; rest {
	case 0:
		return messages[0]
	case 1:
		return fmt.Sprintf("%s (and 1 more error)", messages[0])
	default:
		return fmt.Sprintf("%s (and %d more errors)", messages[0], rest)
	}
}

func (e *ValidationError) add(field, message string) {
	if _, ok := e.Fields[field]; !ok {
		e.order = append(e.order, field)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

func validateRequest(req CreateMessageRequest) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return fmt.Errorf("failed to validate request: %w", err)
	}

	verr := &ValidationError{Fields: make(map[string][]string)}
	for _, fe := range fieldErrors {
		verr.add(fe.Field(), describe(fe))
	}
	return verr
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", fe.Field())
	case "max":
		return fmt.Sprintf("The %s field must not be greater than %s characters.", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("The %s field is invalid.", fe.Field())
	}
}
