// Package command contains write operations (CQRS - Commands).
// Commands change the stored santri, daily records and monthly summaries,
// and invalidate cached reports afterwards.
package command

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/almuhajirin/hafalan-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// INPUT VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report field names the way clients send them.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateStruct runs struct tags and turns failures into a validation DomainError.
func validateStruct(op string, s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return shared.WrapError("command", op, shared.ErrValidation, err.Error(), err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	msg := strings.Join(msgs, "; ")
	return shared.WrapError("command", op, shared.ErrValidation, msg, errors.New(msg))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
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

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// ReportInvalidator drops cached reports after a write.
type ReportInvalidator interface {
	// InvalidatePeriod drops reports of one period, e.g. "Mei/2025".
	InvalidatePeriod(ctx context.Context, period string) error
	InvalidateAll(ctx context.Context) error
}

type nopInvalidator struct{}

func (nopInvalidator) InvalidatePeriod(context.Context, string) error { return nil }
func (nopInvalidator) InvalidateAll(context.Context) error            { return nil }
