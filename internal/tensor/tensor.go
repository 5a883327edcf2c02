package tensor

import (
	"fmt"

	"github.com/pkg/errors"
)

// Tensor is a dense float32 buffer described by a Dim.
//
// The zero value is an empty tensor. Tensors have value semantics for
// Clone: a clone never shares its buffer with the original.
//
// Example:
//
//	t, err := tensor.New(tensor.NewDim(1, 1, 2, 3))
//	t.Fill(0.5)
//	norm := t.L2Norm()
type Tensor struct {
	dim  Dim
	data []float32
}

// New allocates a zero-filled tensor.
func New(dim Dim) (*Tensor, error) {
	if err := dim.Validate(); err != nil {
		return nil, err
	}
	return &Tensor{
		dim:  dim,
		data: make([]float32, dim.Len()),
	}, nil
}

// Empty returns a new empty tensor.
func Empty() *Tensor {
	return &Tensor{}
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice(dim Dim, data []float32) (*Tensor, error) {
	t, err := New(dim)
	if err != nil {
		return nil, err
	}
	if len(data) != dim.Len() {
		return nil, errors.Wrapf(ErrDimMismatch, "dim %s requires %d elements, but got %d", dim, dim.Len(), len(data))
	}
	copy(t.data, data)
	return t, nil
}

// Initialize allocates a tensor filled according to init.
func Initialize(dim Dim, init Initializer) (*Tensor, error) {
	t, err := New(dim)
	if err != nil {
		return nil, err
	}
	if err := t.initialize(init); err != nil {
		return nil, err
	}
	return t, nil
}

// Dim returns the tensor dimension. Empty tensors report the zero Dim.
func (t *Tensor) Dim() Dim {
	if t == nil {
		return Dim{}
	}
	return t.dim
}

// IsEmpty reports whether the tensor has no backing buffer.
func (t *Tensor) IsEmpty() bool {
	return t == nil || t.data == nil
}

// Len returns the number of elements.
func (t *Tensor) Len() int {
	if t.IsEmpty() {
		return 0
	}
	return len(t.data)
}

// Data returns the backing buffer.
// WARNING: Direct access to underlying memory. Writes are visible to the tensor.
func (t *Tensor) Data() []float32 {
	if t == nil {
		return nil
	}
	return t.data
}

// Release drops the backing buffer and returns the tensor to the empty state.
// Releasing an empty tensor is a no-op.
func (t *Tensor) Release() {
	if t == nil {
		return
	}
	t.data = nil
	t.dim = Dim{}
}

// Clone returns a deep copy. The clone of an empty tensor is empty.
func (t *Tensor) Clone() *Tensor {
	if t.IsEmpty() {
		return Empty()
	}
	data := make([]float32, len(t.data))
	copy(data, t.data)
	return &Tensor{dim: t.dim, data: data}
}

// CopyFrom copies the values of src into t. Dimensions must match.
func (t *Tensor) CopyFrom(src *Tensor) error {
	if err := t.sameDim(src, "CopyFrom"); err != nil {
		return err
	}
	copy(t.data, src.data)
	return nil
}

// Reshape changes the dimension without touching the data.
// The new dim must describe the same number of elements.
func (t *Tensor) Reshape(dim Dim) error {
	if err := dim.Validate(); err != nil {
		return err
	}
	if dim.Len() != t.Len() {
		return errors.Wrapf(ErrDimMismatch, "cannot reshape %s into %s", t.dim, dim)
	}
	t.dim = dim
	return nil
}

// At returns the element at the given position.
// Panics if the position is outside the tensor.
func (t *Tensor) At(b, c, h, w int) float32 {
	return t.data[t.index(b, c, h, w)]
}

// Set stores v at the given position.
// Panics if the position is outside the tensor.
func (t *Tensor) Set(b, c, h, w int, v float32) {
	t.data[t.index(b, c, h, w)] = v
}

// Row returns the contiguous Width-long slice for matrix row r.
func (t *Tensor) Row(r int) []float32 {
	w := t.dim.Width
	return t.data[r*w : (r+1)*w]
}

// SetZero fills the tensor with zeros.
func (t *Tensor) SetZero() {
	clear(t.data)
}

// Fill sets every element to v.
func (t *Tensor) Fill(v float32) {
	for i := range t.data {
		t.data[i] = v
	}
}

// String returns a short description, not the contents.
func (t *Tensor) String() string {
	if t.IsEmpty() {
		return "Tensor(empty)"
	}
	return fmt.Sprintf("Tensor(%s)", t.dim)
}

func (t *Tensor) index(b, c, h, w int) int {
	d := t.dim
	if b < 0 || b >= d.Batch || c < 0 || c >= d.Channel || h < 0 || h >= d.Height || w < 0 || w >= d.Width {
		panic(fmt.Sprintf("tensor: index (%d,%d,%d,%d) out of range for %s", b, c, h, w, d))
	}
	return ((b*d.Channel+c)*d.Height+h)*d.Width + w
}

func (t *Tensor) sameDim(other *Tensor, op string) error {
	if t.IsEmpty() || other.IsEmpty() {
		return errors.Wrapf(ErrDimMismatch, "%s: empty operand (%s, %s)", op, t, other)
	}
	if !t.dim.Equal(other.dim) {
		return errors.Wrapf(ErrDimMismatch, "%s: %s vs %s", op, t.dim, other.dim)
	}
	return nil
}
