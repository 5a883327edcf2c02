package nn

import (
	"github.com/pkg/errors"

	"github.com/born-ml/nntrainer/internal/tensor"
)

// VarGrad couples the current value of a learnable parameter (the
// variable) with its gradient accumulator.
//
// Storage is lazy: a VarGrad can be described first and allocated later,
// which lets a network size every weight before reserving memory. When the
// pair does not need a gradient, the gradient tensor stays empty forever.
//
// Example:
//
//	vg, err := nn.NewVarGrad(tensor.NewDim(1, 1, 784, 128), tensor.InitXavierUniform, true, false, "fc0.weight")
//	// ...
//	err = vg.AllocateVariable()
//	err = vg.AllocateGradient()
type VarGrad struct {
	dim          tensor.Dim
	initializer  tensor.Initializer
	variable     *tensor.Tensor
	gradient     *tensor.Tensor
	needGradient bool
	name         string

	// borrowed tensors belong to someone else: deallocation only drops
	// the references and never releases their buffers.
	borrowed bool
}

// NewVarGrad creates a variable/gradient pair.
//
// Parameters:
//   - dim: shape shared by the variable and the gradient
//   - init: how the variable is filled when allocated
//   - needGradient: whether a gradient accumulator exists at all
//   - allocNow: allocate the variable (and gradient) immediately
//   - name: identifier used in logs, need not be unique
//
// Fails with ErrInvalidParameter when dim has a non-positive extent.
func NewVarGrad(dim tensor.Dim, init tensor.Initializer, needGradient, allocNow bool, name string) (*VarGrad, error) {
	if err := dim.Validate(); err != nil {
		return nil, invalidf("var_grad %q: %v", name, err)
	}

	vg := &VarGrad{
		dim:          dim,
		initializer:  init,
		variable:     tensor.Empty(),
		gradient:     tensor.Empty(),
		needGradient: needGradient,
		name:         name,
	}

	if allocNow {
		if err := vg.AllocateVariable(); err != nil {
			return nil, err
		}
		if err := vg.AllocateGradient(); err != nil {
			return nil, err
		}
	}
	return vg, nil
}

// borrowVarGrad wraps tensors owned by someone else.
func borrowVarGrad(v, g *tensor.Tensor, name string) *VarGrad {
	if g == nil {
		g = tensor.Empty()
	}
	return &VarGrad{
		dim:          v.Dim(),
		initializer:  tensor.InitNone,
		variable:     v,
		gradient:     g,
		needGradient: !g.IsEmpty(),
		name:         name,
		borrowed:     true,
	}
}

// Name returns the identifier of the pair.
func (vg *VarGrad) Name() string {
	return vg.name
}

// Dim returns the declared dimension.
func (vg *VarGrad) Dim() tensor.Dim {
	return vg.dim
}

// Initializer returns the initializer used by AllocateVariable.
func (vg *VarGrad) Initializer() tensor.Initializer {
	return vg.initializer
}

// Variable returns the variable tensor, possibly empty.
func (vg *VarGrad) Variable() *tensor.Tensor {
	return vg.variable
}

// Gradient returns the gradient tensor, possibly empty.
func (vg *VarGrad) Gradient() *tensor.Tensor {
	return vg.gradient
}

// NeedsGradient reports whether the pair carries a gradient.
func (vg *VarGrad) NeedsGradient() bool {
	return vg.needGradient
}

// IsAllocated reports whether the variable has a backing buffer.
func (vg *VarGrad) IsAllocated() bool {
	return !vg.variable.IsEmpty()
}

// IsGradientAllocated reports whether the gradient has a backing buffer.
func (vg *VarGrad) IsGradientAllocated() bool {
	return !vg.gradient.IsEmpty()
}

// IsBorrowed reports whether the tensors belong to an external owner.
func (vg *VarGrad) IsBorrowed() bool {
	return vg.borrowed
}

// AllocateVariable materializes the variable from the initializer.
// It is a no-op when the variable is already allocated.
func (vg *VarGrad) AllocateVariable() error {
	if vg.IsAllocated() {
		return nil
	}
	t, err := tensor.Initialize(vg.dim, vg.initializer)
	if err != nil {
		return errors.Wrapf(err, "var_grad %q: allocate variable", vg.name)
	}
	vg.variable = t
	return nil
}

// AdoptVariable uses a caller-supplied tensor as the variable.
//
// The tensor must match the declared dim; the pair takes ownership of it.
// It is a no-op when the variable is already allocated.
func (vg *VarGrad) AdoptVariable(t *tensor.Tensor) error {
	if vg.IsAllocated() {
		return nil
	}
	if err := vg.checkPreallocated(t, "variable"); err != nil {
		return err
	}
	vg.variable = t
	return nil
}

// AllocateGradient materializes a zero-filled gradient.
// It is a no-op when the gradient is not needed or already allocated.
func (vg *VarGrad) AllocateGradient() error {
	if !vg.needGradient || vg.IsGradientAllocated() {
		return nil
	}
	t, err := tensor.New(vg.dim)
	if err != nil {
		return errors.Wrapf(err, "var_grad %q: allocate gradient", vg.name)
	}
	vg.gradient = t
	return nil
}

// AdoptGradient uses a caller-supplied tensor as the gradient.
// It is a no-op when the gradient is not needed or already allocated.
func (vg *VarGrad) AdoptGradient(t *tensor.Tensor) error {
	if !vg.needGradient || vg.IsGradientAllocated() {
		return nil
	}
	if err := vg.checkPreallocated(t, "gradient"); err != nil {
		return err
	}
	vg.gradient = t
	return nil
}

// DeallocateVariable returns the variable to the empty state. Idempotent.
func (vg *VarGrad) DeallocateVariable() {
	vg.variable = vg.drop(vg.variable)
}

// DeallocateGradient returns the gradient to the empty state. Idempotent.
func (vg *VarGrad) DeallocateGradient() {
	vg.gradient = vg.drop(vg.gradient)
}

// ZeroGradient clears accumulated gradient values without deallocating.
func (vg *VarGrad) ZeroGradient() {
	vg.gradient.SetZero()
}

// Reset replaces the dimension, initializer and gradient need in place.
//
// When dim is unchanged and the variable is allocated, its values are kept.
// Otherwise the variable is deallocated and must be allocated again before
// use. The gradient is always deallocated.
func (vg *VarGrad) Reset(dim tensor.Dim, init tensor.Initializer, needGradient bool) error {
	if err := dim.Validate(); err != nil {
		return invalidf("var_grad %q: reset: %v", vg.name, err)
	}

	keep := vg.IsAllocated() && vg.dim.Equal(dim)
	vg.DeallocateGradient()
	if !keep {
		vg.DeallocateVariable()
	}

	vg.dim = dim
	vg.initializer = init
	vg.needGradient = needGradient
	return nil
}

func (vg *VarGrad) checkPreallocated(t *tensor.Tensor, what string) error {
	if t.IsEmpty() {
		return invalidf("var_grad %q: preallocated %s is empty", vg.name, what)
	}
	if !t.Dim().Equal(vg.dim) {
		return invalidf("var_grad %q: preallocated %s has dim %s, want %s", vg.name, what, t.Dim(), vg.dim)
	}
	return nil
}

func (vg *VarGrad) drop(t *tensor.Tensor) *tensor.Tensor {
	if !vg.borrowed {
		t.Release()
	}
	return tensor.Empty()
}
