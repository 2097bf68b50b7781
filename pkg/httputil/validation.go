package httputil

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/docverify/docverify-backend/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Field errors use JSON names so details match the request body
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// fieldMessages renders a failed tag for the details map
var fieldMessages = map[string]func(validator.FieldError) string{
	"required": func(validator.FieldError) string { return "this field is required" },
	"min":      func(e validator.FieldError) string { return sizeMessage(e, "at least") },
	"max":      func(e validator.FieldError) string { return sizeMessage(e, "at most") },
	"gte":      func(e validator.FieldError) string { return "must be at least " + e.Param() },
	"lte":      func(e validator.FieldError) string { return "must be at most " + e.Param() },
	"oneof":    func(e validator.FieldError) string { return "must be one of: " + e.Param() },
	"doctype":  func(validator.FieldError) string { return "unsupported document type" },
}

func sizeMessage(e validator.FieldError, bound string) string {
	switch e.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return "must contain " + bound + " " + e.Param() + " items"
	case reflect.String:
		return "must be " + bound + " " + e.Param() + " characters"
	default:
		return "must be " + bound + " " + e.Param()
	}
}

// Validate checks v's validate tags. Failures come back as a VALIDATION_ERROR
// with one detail per field, keyed by the field's path in the JSON body.
func Validate(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.BadRequest(err.Error())
	}

	details := make(map[string]string, len(fieldErrs))
	for _, e := range fieldErrs {
		details[fieldPath(e)] = fieldMessage(e)
	}
	return errors.Validation(details)
}

// fieldPath drops the struct name so nested fields read documents[0].document_type
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok && strings.Contains(rest, ".") {
		return rest
	}
	return e.Field()
}

func fieldMessage(e validator.FieldError) string {
	if render, ok := fieldMessages[e.Tag()]; ok {
		return render(e)
	}
	return "invalid value"
}

// RegisterCustomValidation registers a validation tag on the shared validator
func RegisterCustomValidation(tag string, fn validator.Func) error {
	return validate.RegisterValidation(tag, fn)
}
