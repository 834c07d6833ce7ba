package apperr

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	return v
}

// Struct checks v against its validate tags. The first failing field is
// reported as ErrValidation.
func Struct(v any) error {
	return FromValidator(validate.Struct(v))
}

// Var checks a single value against a tag list, naming it field in the error.
func Var(field string, value any, tag string) error {
	err := validate.Var(value, tag)
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		return Validation("%s", describe(field, fields[0]))
	}
	return FromValidator(err)
}

// FromValidator converts validator output, including the errors gin returns
// from binding tags, into ErrValidation. Other errors are wrapped as malformed
// input. A nil error stays nil.
func FromValidator(err error) error {
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		return Validation("%s", describe(fields[0].Field(), fields[0]))
	}
	return Validation("malformed request: %s", err.Error())
}

func describe(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s is not a valid email address", field)
	case "http_url":
		return fmt.Sprintf("%s must be an http(s) link", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s exceeds %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}
