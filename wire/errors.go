package wire

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Codec errors. Every failure of a construction, serialization or
// deserialization call wraps one of these.
var (
	ErrOutOfRange      = errors.New("value out of range")
	ErrInvalidValue    = errors.New("invalid value")
	ErrUnencodableText = errors.New("text cannot be encoded")
	ErrLengthMismatch  = errors.New("length mismatch")
	ErrMissingField    = errors.New("missing field value")
	ErrSourceExhausted = errors.New("byte source exhausted")
	ErrSourceClosed    = errors.New("byte source closed")
	ErrConcurrentRead  = errors.New("byte source already has a pending read")
)

// FieldError represents an encoding/decoding error with a field path.
type FieldError struct {
	FieldPath []string // e.g., ["header", "data_length"]
	Err       error    // underlying error
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	if len(e.FieldPath) == 0 {
		return e.Err.Error()
	}

	return fmt.Sprintf("error at field %s: %v", strings.Join(e.FieldPath, "."), e.Err)
}

// Unwrap returns the underlying error.
func (e *FieldError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *FieldError at the same field path. The
// cause is matched separately through Unwrap.
func (e *FieldError) Is(target error) bool {
	t, ok := target.(*FieldError)
	return ok && slices.Equal(e.FieldPath, t.FieldPath)
}

// WithField wraps an error with a field name, prepending to an existing path
func WithField(err error, fieldName string) error {
	if err == nil {
		return nil
	}

	var fe *FieldError
	if errors.As(err, &fe) {
		return &FieldError{
			FieldPath: append([]string{fieldName}, fe.FieldPath...),
			Err:       fe.Err,
		}
	}

	return &FieldError{
		FieldPath: []string{fieldName},
		Err:       err,
	}
}

// newFieldError builds a leaf error wrapping sentinel
func newFieldError(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
