package storage

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Request structs mark the fields a create must carry with
// `validate:"required"`. Field names in errors are the json names.
var createValidator = newCreateValidator()

func newCreateValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateCreate checks a create request: every required field must be
// present and the id must be absent.
func ValidateCreate[T Record](req Request[T]) error {
	if req == nil {
		return &ValidationError{Kind: MissingRequiredOnCreate}
	}
	if err := createValidator.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return &ValidationError{Kind: MissingRequiredOnCreate, Field: fieldErrs[0].Field()}
		}
		return err
	}
	if _, ok := req.TargetID(); ok {
		return &ValidationError{Kind: IDProvidedOnCreate}
	}
	return CheckChanges(SchemaOf[T](), req.Changes())
}

// ValidateUpdate checks an update request: the id must be present and no
// immutable column may be changed.
func ValidateUpdate[T Record](req Request[T]) error {
	if req == nil {
		return &ValidationError{Kind: MissingIDOnUpdate}
	}
	if _, ok := req.TargetID(); !ok {
		return &ValidationError{Kind: MissingIDOnUpdate}
	}
	schema := SchemaOf[T]()
	changes := req.Changes()
	if err := CheckChanges(schema, changes); err != nil {
		return err
	}
	for _, col := range schema.Columns {
		if _, ok := changes[col.Name]; ok && col.Immutable {
			return &ValidationError{Kind: ImmutableField, Field: col.Name}
		}
	}
	return nil
}
