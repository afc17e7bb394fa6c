package storage

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not_found")
	ErrNotCreated = errors.New("not_created")
	ErrConflict   = errors.New("conflict")
	// ErrUnavailable wraps backend failures. The underlying driver error is
	// logged by the backend and never returned.
	ErrUnavailable = errors.New("storage unavailable")

	ErrValidation   = errors.New("validation_error")
	ErrUnknownField = errors.New("unknown_field")
)

type ValidationKind string

const (
	MissingRequiredOnCreate ValidationKind = "missing_required_on_create"
	IDProvidedOnCreate      ValidationKind = "id_provided_on_create"
	MissingIDOnUpdate       ValidationKind = "missing_id_on_update"
	UnknownField            ValidationKind = "unknown_field"
	UnsupportedOperator     ValidationKind = "unsupported_operator"
	InvalidValue            ValidationKind = "invalid_value"
	ImmutableField          ValidationKind = "immutable_field"
)

// ValidationError is returned before any backend is touched.
type ValidationError struct {
	Kind  ValidationKind
	Field string
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case MissingRequiredOnCreate:
		return fmt.Sprintf("missing required field on create: %s", e.Field)
	case IDProvidedOnCreate:
		return "id must not be provided on create"
	case MissingIDOnUpdate:
		return "id is required on update"
	case UnknownField:
		return fmt.Sprintf("unknown field: %s", e.Field)
	case UnsupportedOperator:
		return fmt.Sprintf("operator not supported for field: %s", e.Field)
	case InvalidValue:
		return fmt.Sprintf("invalid value for field: %s", e.Field)
	case ImmutableField:
		return fmt.Sprintf("field cannot be changed: %s", e.Field)
	default:
		return string(e.Kind)
	}
}

func (e *ValidationError) Is(target error) bool {
	switch target {
	case ErrValidation:
		return true
	case ErrUnknownField:
		return e.Kind == UnknownField
	default:
		return false
	}
}

// AsValidationError unwraps err into a *ValidationError when it is one.
func AsValidationError(err error) (*ValidationError, bool) {
	var vErr *ValidationError
	if errors.As(err, &vErr) && vErr != nil {
		return vErr, true
	}
	return nil, false
}
