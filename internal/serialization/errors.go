package serialization

import (
	"fmt"

	"github.com/pkg/errors"
)

// Common errors.
var (
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
	ErrOffsetOverlap      = errors.New("tensor offsets overlap")
	ErrOutOfBounds        = errors.New("tensor extends beyond data section")
	ErrTooManyTensors     = errors.New("too many tensors in file")
	ErrInvalidTensorName  = errors.New("invalid tensor name")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrUnsupportedDType   = errors.New("unsupported tensor dtype")
	ErrInvalidShape       = errors.New("invalid tensor shape")
)

// ValidationError provides detailed information about validation failures.
//
// It unwraps to one of the sentinel errors above.
type ValidationError struct {
	Err     error  // Sentinel describing the failure class
	Tensor  string // Primary tensor name involved
	Tensor2 string // Secondary tensor name (for overlap errors)
	Details string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Tensor2 != "" {
		return fmt.Sprintf("%v: tensors %q and %q: %s", e.Err, e.Tensor, e.Tensor2, e.Details)
	}
	if e.Tensor != "" {
		return fmt.Sprintf("%v: tensor %q: %s", e.Err, e.Tensor, e.Details)
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Details)
}

// Unwrap returns the sentinel error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
