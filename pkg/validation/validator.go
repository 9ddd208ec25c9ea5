package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/platinummonkey/jobportal/pkg/apperr"
)

const (
	MinEmailLength = 5
	MaxEmailLength = 254
)

// Validator checks request payloads declared with `validate` struct tags and
// reports the first violation as an *apperr.Error
type Validator struct {
	validate *validator.Validate
}

var (
	defaultOnce      sync.Once
	defaultValidator *Validator
)

// Default returns the process-wide validator
func Default() *Validator {
	defaultOnce.Do(func() {
		defaultValidator = NewValidator()
	})
	return defaultValidator
}

// NewValidator creates a new validator that names fields by their json or form tag
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(fieldName)
	v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return &Validator{validate: v}
}

func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

// Struct validates s and returns nil or a classified error
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Wrap(apperr.KindBadRequest, "invalid request", err)
	}
	return toAppError(verrs[0])
}

// Var validates a single value against a tag expression
func (v *Validator) Var(name string, value interface{}, tag string) error {
	err := v.validate.Var(value, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Wrap(apperr.KindBadRequest, "invalid "+name, err)
	}
	return toAppError(namedFieldError{FieldError: verrs[0], name: name})
}

type namedFieldError struct {
	validator.FieldError
	name string
}

func (n namedFieldError) Field() string { return n.name }

func toAppError(fe validator.FieldError) *apperr.Error {
	field := fe.Field()
	switch fe.Tag() {
	case "required", "notblank":
		return apperr.MissingParameter(field)
	case "email":
		return apperr.Newf(apperr.KindBadRequest, "%s must be a valid email address", field)
	case "oneof":
		return apperr.Newf(apperr.KindBadRequest, "%s must be one of [%s]", field, fe.Param())
	case "min", "gte":
		if fe.Kind() == reflect.String || fe.Kind() == reflect.Slice {
			return apperr.Newf(apperr.KindBadRequest, "%s must have at least %s characters", field, fe.Param())
		}
		return apperr.Newf(apperr.KindBadRequest, "%s must be at least %s", field, fe.Param())
	case "max", "lte":
		if fe.Kind() == reflect.String || fe.Kind() == reflect.Slice {
			return apperr.Newf(apperr.KindBadRequest, "%s must have at most %s characters", field, fe.Param())
		}
		return apperr.Newf(apperr.KindBadRequest, "%s must be at most %s", field, fe.Param())
	case "len":
		return apperr.Newf(apperr.KindBadRequest, "%s must have exactly %s characters", field, fe.Param())
	case "url", "http_url":
		return apperr.Newf(apperr.KindBadRequest, "%s must be a valid URL", field)
	case "alphanum":
		return apperr.Newf(apperr.KindBadRequest, "%s must be alphanumeric", field)
	default:
		return apperr.New(apperr.KindBadRequest, fmt.Sprintf("%s failed %s validation", field, fe.Tag()))
	}
}

// ValidateEmail normalizes email and checks its syntax and length bounds
func ValidateEmail(email string) (string, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return "", apperr.MissingParameter("email")
	}
	if len(normalized) < MinEmailLength || len(normalized) > MaxEmailLength {
		return "", apperr.Newf(apperr.KindBadRequest, "email must be between %d and %d characters", MinEmailLength, MaxEmailLength)
	}
	if err := Default().Var("email", normalized, "email"); err != nil {
		return "", err
	}
	return normalized, nil
}
