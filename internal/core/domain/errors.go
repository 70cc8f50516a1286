package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrTemporary     = errors.New("temporary failure")
	ErrIndexNotBuilt = errors.New("index not built")
	ErrNotReady      = errors.New("not ready")
	ErrGeneration    = errors.New("generation failed")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ErrorCode names the kind of err for transport error bodies.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case IsKind(err, ErrInvalidInput):
		return "invalid_input"
	case IsKind(err, ErrNotReady):
		return "not_ready"
	case IsKind(err, ErrTemporary):
		return "temporary"
	case IsKind(err, ErrGeneration):
		return "generation_failed"
	case IsKind(err, ErrIndexNotBuilt):
		return "index_not_built"
	default:
		return "internal"
	}
}

// ErrorFromCode maps a transport error code back to its kind.
func ErrorFromCode(code string) error {
	switch code {
	case "invalid_input":
		return ErrInvalidInput
	case "not_ready":
		return ErrNotReady
	case "temporary":
		return ErrTemporary
	case "generation_failed":
		return ErrGeneration
	case "index_not_built":
		return ErrIndexNotBuilt
	default:
		return nil
	}
}
