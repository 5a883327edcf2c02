package nn

import (
	"github.com/born-ml/nntrainer/internal/tensor"
)

// Trainable is the surface optimizers work on. Both owning weights and
// borrowed views implement it.
type Trainable interface {
	Name() string
	Dim() tensor.Dim
	Variable() *tensor.Tensor
	Gradient() *tensor.Tensor
	NeedsGradient() bool
	ApplyGradient(lr float32) error

	AddOptimizerVariable(dim tensor.Dim)
	ClearOptimizerVariables()
	AllocateOptimizerVariables() error
	NumOptimizerVariables() int
	OptimizerVariable(i int) *tensor.Tensor
}

var (
	_ Trainable = (*Weight)(nil)
	_ Trainable = (*WeightView)(nil)
)

// WeightView is a non-owning Weight over tensors managed elsewhere, for
// example a shared arena filled by a parameter-management context.
//
// The view never releases the borrowed variable and gradient: Release only
// drops its references. The caller must keep the owner alive for as long as
// the view is used. Optimizer state registered on a view is owned by the
// view. Views have no regularizer.
//
// There is no conversion between WeightView and Weight; use Clone to get an
// owning copy.
type WeightView struct {
	w Weight
}

// BorrowWeight wraps externally owned variable and gradient tensors.
//
// g may be nil or empty for a frozen parameter.
func BorrowWeight(v, g *tensor.Tensor, name string) (*WeightView, error) {
	if v.IsEmpty() {
		return nil, invalidf("weight view %q: borrowed variable is empty", name)
	}
	if !g.IsEmpty() && !g.Dim().Equal(v.Dim()) {
		return nil, invalidf("weight view %q: gradient dim %s does not match variable dim %s", name, g.Dim(), v.Dim())
	}
	return &WeightView{
		w: Weight{
			VarGrad:             *borrowVarGrad(v, g, name),
			regularizer:         RegularizerNone,
			regularizerConstant: DefaultRegularizerConstant,
		},
	}, nil
}

// Name returns the view name.
func (v *WeightView) Name() string { return v.w.Name() }

// Dim returns the dimension of the borrowed variable.
func (v *WeightView) Dim() tensor.Dim { return v.w.Dim() }

// Variable returns the borrowed variable, or an empty tensor after Release.
func (v *WeightView) Variable() *tensor.Tensor { return v.w.Variable() }

// Gradient returns the borrowed gradient, possibly empty.
func (v *WeightView) Gradient() *tensor.Tensor { return v.w.Gradient() }

// NeedsGradient reports whether a gradient was borrowed.
func (v *WeightView) NeedsGradient() bool { return v.w.NeedsGradient() }

// ApplyGradient performs V -= lr * G on the borrowed tensors.
func (v *WeightView) ApplyGradient(lr float32) error { return v.w.ApplyGradient(lr) }

// AddOptimizerVariable registers an optimizer variable shape.
func (v *WeightView) AddOptimizerVariable(dim tensor.Dim) { v.w.AddOptimizerVariable(dim) }

// ClearOptimizerVariables drops optimizer shapes and state.
func (v *WeightView) ClearOptimizerVariables() { v.w.ClearOptimizerVariables() }

// AllocateOptimizerVariables materializes registered optimizer variables.
func (v *WeightView) AllocateOptimizerVariables() error { return v.w.AllocateOptimizerVariables() }

// NumOptimizerVariables returns the number of materialized optimizer variables.
func (v *WeightView) NumOptimizerVariables() int { return v.w.NumOptimizerVariables() }

// OptimizerVariable returns the optimizer variable at index i.
func (v *WeightView) OptimizerVariable(i int) *tensor.Tensor { return v.w.OptimizerVariable(i) }

// Clone returns an owning Weight holding deep copies of the borrowed tensors.
func (v *WeightView) Clone() *Weight {
	return v.w.Clone()
}

// Release drops the references to the borrowed tensors and the view's own
// optimizer state. The borrowed buffers are left untouched.
func (v *WeightView) Release() {
	v.w.Deallocate()
}
