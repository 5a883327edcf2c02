// Package tensor provides the dense float32 tensor used by the training engine.
//
// A Tensor is either allocated (it owns a backing buffer sized by its Dim)
// or empty. Empty tensors are the "not yet materialized" state of weights,
// gradients and optimizer variables.
package tensor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidDim is returned when a dimension has a non-positive extent or
// cannot be parsed.
var ErrInvalidDim = errors.New("invalid tensor dimension")

// ErrDimMismatch is returned when two tensors taking part in an operation
// have incompatible dimensions.
var ErrDimMismatch = errors.New("tensor dimension mismatch")

// Dim describes the shape of a Tensor as batch x channel x height x width.
//
// Data is laid out row-major, so the last extent (Width) is contiguous.
// Operations that treat a tensor as a matrix use Batch*Channel*Height rows
// and Width columns.
type Dim struct {
	Batch   int
	Channel int
	Height  int
	Width   int
}

// NewDim creates a Dim from its four extents.
func NewDim(batch, channel, height, width int) Dim {
	return Dim{Batch: batch, Channel: channel, Height: height, Width: width}
}

// Validate checks that every extent is positive.
func (d Dim) Validate() error {
	for i, v := range d.extents() {
		if v <= 0 {
			return errors.Wrapf(ErrInvalidDim, "extent %d of %s is %d (must be > 0)", i, d, v)
		}
	}
	return nil
}

// IsZero reports whether d is the zero Dim carried by empty tensors.
func (d Dim) IsZero() bool {
	return d == Dim{}
}

// Equal reports whether two dims have identical extents.
func (d Dim) Equal(other Dim) bool {
	return d == other
}

// Len returns the number of elements described by d.
func (d Dim) Len() int {
	if d.IsZero() {
		return 0
	}
	return d.Batch * d.Channel * d.Height * d.Width
}

// Rows returns the number of matrix rows (Batch*Channel*Height).
func (d Dim) Rows() int {
	return d.Batch * d.Channel * d.Height
}

// FeatureLen returns the number of elements of a single batch item.
func (d Dim) FeatureLen() int {
	return d.Channel * d.Height * d.Width
}

// WithBatch returns a copy of d with a different batch extent.
func (d Dim) WithBatch(batch int) Dim {
	d.Batch = batch
	return d
}

// String formats d as "batch:channel:height:width".
func (d Dim) String() string {
	return fmt.Sprintf("%d:%d:%d:%d", d.Batch, d.Channel, d.Height, d.Width)
}

func (d Dim) extents() [4]int {
	return [4]int{d.Batch, d.Channel, d.Height, d.Width}
}

// ParseDim parses "b:c:h:w", "c:h:w", "h:w" or "w".
//
// Missing leading extents default to 1. The result is validated.
func ParseDim(s string) (Dim, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) == 0 || len(parts) > 4 {
		return Dim{}, errors.Wrapf(ErrInvalidDim, "cannot parse %q", s)
	}

	extents := [4]int{1, 1, 1, 1}
	offset := 4 - len(parts)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Dim{}, errors.Wrapf(ErrInvalidDim, "cannot parse %q: %v", s, err)
		}
		extents[offset+i] = v
	}

	d := NewDim(extents[0], extents[1], extents[2], extents[3])
	if err := d.Validate(); err != nil {
		return Dim{}, err
	}
	return d, nil
}
