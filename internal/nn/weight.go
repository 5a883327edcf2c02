package nn

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/nntrainer/internal/tensor"
)

// Regularizer selects the penalty a Weight adds to the loss.
type Regularizer int

// Supported regularizers.
const (
	RegularizerNone Regularizer = iota
	RegularizerL2Norm
	RegularizerUnknown
)

// String returns the configuration name of the regularizer.
func (r Regularizer) String() string {
	switch r {
	case RegularizerNone:
		return "none"
	case RegularizerL2Norm:
		return "l2norm"
	default:
		return "unknown"
	}
}

// ParseRegularizer parses "none" or "l2norm".
func ParseRegularizer(s string) (Regularizer, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return RegularizerNone, nil
	case "l2norm", "l2":
		return RegularizerL2Norm, nil
	default:
		return RegularizerUnknown, invalidf("unknown regularizer %q", s)
	}
}

// DefaultRegularizerConstant is the regularizer constant used when none is given.
const DefaultRegularizerConstant = 1.0

// Spec groups the construction parameters of a Weight.
type Spec struct {
	Dim                 tensor.Dim
	Initializer         tensor.Initializer
	Regularizer         Regularizer
	RegularizerConstant float32
	NeedGradient        bool
	Name                string
}

// Weight is a learnable parameter: a VarGrad plus a regularization policy
// and the per-optimizer auxiliary tensors (momentum, Adam moments, ...).
//
// Optimizer variable shapes are registered with AddOptimizerVariable and
// materialized, zero-filled and in registration order, when the gradient is
// allocated. Optimizer state only makes sense once a gradient can be
// produced, so it lives and dies with the gradient.
//
// Storage states:
//
//	Empty --AllocateVariable--> VariableAllocated --AllocateGradient--> FullyAllocated
//	FullyAllocated --DeallocateGradient--> VariableAllocated --DeallocateVariable--> Empty
type Weight struct {
	VarGrad

	regularizer         Regularizer
	regularizerConstant float32

	optimizerDims []tensor.Dim
	optimizerVars []*tensor.Tensor
}

// NewWeight creates a Weight.
//
// Regularizer none is a strict no-op whatever the constant. L2 norm needs
// a positive constant.
func NewWeight(
	dim tensor.Dim,
	init tensor.Initializer,
	reg Regularizer,
	regConst float32,
	needGradient, allocNow bool,
	name string,
) (*Weight, error) {
	if err := checkRegularizer(reg, regConst, name); err != nil {
		return nil, err
	}

	vg, err := NewVarGrad(dim, init, needGradient, false, name)
	if err != nil {
		return nil, err
	}

	w := &Weight{
		VarGrad:             *vg,
		regularizer:         reg,
		regularizerConstant: regConst,
	}
	if allocNow {
		if err := w.AllocateVariable(); err != nil {
			return nil, err
		}
		if err := w.AllocateGradient(); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// NewWeightFromSpec creates a Weight from a Spec.
func NewWeightFromSpec(spec Spec, allocNow bool) (*Weight, error) {
	return NewWeight(spec.Dim, spec.Initializer, spec.Regularizer, spec.RegularizerConstant,
		spec.NeedGradient, allocNow, spec.Name)
}

func checkRegularizer(reg Regularizer, regConst float32, name string) error {
	switch reg {
	case RegularizerNone:
		if regConst != DefaultRegularizerConstant && regConst != 0 {
			klog.Warningf("weight %q: regularizer constant %g ignored, regularizer is none", name, regConst)
		}
	case RegularizerL2Norm:
		if regConst <= 0 {
			return invalidf("weight %q: l2norm regularizer constant must be positive, got %g", name, regConst)
		}
	default:
		return invalidf("weight %q: unsupported regularizer %s", name, reg)
	}
	return nil
}

// Spec returns the construction parameters of w.
func (w *Weight) Spec() Spec {
	return Spec{
		Dim:                 w.dim,
		Initializer:         w.initializer,
		Regularizer:         w.regularizer,
		RegularizerConstant: w.regularizerConstant,
		NeedGradient:        w.needGradient,
		Name:                w.name,
	}
}

// Regularizer returns the regularizer kind.
func (w *Weight) Regularizer() Regularizer {
	return w.regularizer
}

// RegularizerConstant returns the regularizer multiplier.
func (w *Weight) RegularizerConstant() float32 {
	return w.regularizerConstant
}

// Clone returns an owning deep copy of the variable and gradient.
//
// Regularizer settings and name are kept; optimizer state is not.
func (w *Weight) Clone() *Weight {
	return &Weight{
		VarGrad: VarGrad{
			dim:          w.dim,
			initializer:  w.initializer,
			variable:     w.variable.Clone(),
			gradient:     w.gradient.Clone(),
			needGradient: w.needGradient,
			name:         w.name,
		},
		regularizer:         w.regularizer,
		regularizerConstant: w.regularizerConstant,
	}
}

// Reset reconfigures the weight in place.
//
// Regularizer fields are always updated. The variable keeps its values
// only when dim is unchanged; the gradient and materialized optimizer
// state are cleared, the registered optimizer shapes are kept.
func (w *Weight) Reset(dim tensor.Dim, init tensor.Initializer, reg Regularizer, regConst float32, needGradient bool) error {
	if err := checkRegularizer(reg, regConst, w.name); err != nil {
		return err
	}
	if err := w.VarGrad.Reset(dim, init, needGradient); err != nil {
		return err
	}
	w.regularizer = reg
	w.regularizerConstant = regConst
	w.optimizerVars = nil
	return nil
}

// AddOptimizerVariable registers the shape of one optimizer variable.
// Nothing is allocated until the gradient is.
func (w *Weight) AddOptimizerVariable(dim tensor.Dim) {
	w.optimizerDims = append(w.optimizerDims, dim)
}

// ClearOptimizerVariables drops both registered shapes and materialized state.
func (w *Weight) ClearOptimizerVariables() {
	w.optimizerDims = nil
	w.optimizerVars = nil
}

// NumOptimizerVariables returns the number of materialized optimizer variables.
func (w *Weight) NumOptimizerVariables() int {
	return len(w.optimizerVars)
}

// OptimizerVariableDims returns the registered optimizer variable shapes.
func (w *Weight) OptimizerVariableDims() []tensor.Dim {
	return w.optimizerDims
}

// OptimizerVariable returns the optimizer variable at index i.
//
// Panics if index is out of bounds.
func (w *Weight) OptimizerVariable(i int) *tensor.Tensor {
	if i < 0 || i >= len(w.optimizerVars) {
		panic(fmt.Sprintf("Weight.OptimizerVariable: index %d out of bounds for weight %q with %d optimizer variables",
			i, w.name, len(w.optimizerVars)))
	}
	return w.optimizerVars[i]
}

// AllocateGradient allocates the gradient and materializes the registered
// optimizer variables.
func (w *Weight) AllocateGradient() error {
	if err := w.VarGrad.AllocateGradient(); err != nil {
		return err
	}
	return w.AllocateOptimizerVariables()
}

// AdoptGradient uses a caller-supplied tensor as the gradient and
// materializes the registered optimizer variables.
func (w *Weight) AdoptGradient(t *tensor.Tensor) error {
	if err := w.VarGrad.AdoptGradient(t); err != nil {
		return err
	}
	return w.AllocateOptimizerVariables()
}

// AllocateOptimizerVariables materializes zero-filled tensors for every
// registered shape that is not materialized yet.
//
// It is a no-op while the gradient is not allocated.
func (w *Weight) AllocateOptimizerVariables() error {
	if !w.IsGradientAllocated() {
		return nil
	}
	for i := len(w.optimizerVars); i < len(w.optimizerDims); i++ {
		t, err := tensor.New(w.optimizerDims[i])
		if err != nil {
			return invalidf("weight %q: optimizer variable %d: %v", w.name, i, err)
		}
		w.optimizerVars = append(w.optimizerVars, t)
	}

	if klog.V(2).Enabled() {
		klog.Infof("weight %q: %d optimizer variables allocated, %s total",
			w.name, len(w.optimizerVars), humanize.Bytes(w.Bytes()))
	}
	return nil
}

// IsRegularizerL2Norm reports whether the regularizer is L2 norm.
func (w *Weight) IsRegularizerL2Norm() bool {
	return w.regularizer == RegularizerL2Norm
}

// RegularizationLoss returns c * 0.5 * ||V||₂ for a trainable L2-regularized
// weight and 0 otherwise.
func (w *Weight) RegularizationLoss() float32 {
	if w.needGradient && w.IsRegularizerL2Norm() {
		return w.regularizerConstant * 0.5 * w.variable.L2Norm()
	}
	return 0
}

// CalcRegularizationGradient adds c * V to the gradient for a trainable
// L2-regularized weight. It is a no-op otherwise.
//
// Call it after backward propagation filled the loss gradient and before
// the gradient is applied.
func (w *Weight) CalcRegularizationGradient() error {
	if !w.needGradient || !w.IsRegularizerL2Norm() {
		return nil
	}
	if !w.IsAllocated() || !w.IsGradientAllocated() {
		return errors.Wrapf(ErrNotInitialized, "weight %q: regularization gradient needs allocated variable and gradient", w.name)
	}
	return w.gradient.AddScaled(w.variable, w.regularizerConstant)
}

// ApplyGradient performs the vanilla gradient descent step V -= lr * G.
// It is a no-op for weights without gradient.
func (w *Weight) ApplyGradient(lr float32) error {
	if !w.needGradient {
		return nil
	}
	if !w.IsAllocated() || !w.IsGradientAllocated() {
		return errors.Wrapf(ErrNotInitialized, "weight %q: apply gradient needs allocated variable and gradient", w.name)
	}
	return w.variable.AddScaled(w.gradient, -lr)
}

// DeallocateGradient releases the gradient and the materialized optimizer
// state. Registered optimizer shapes are kept for the next allocation.
func (w *Weight) DeallocateGradient() {
	w.VarGrad.DeallocateGradient()
	w.optimizerVars = nil
}

// Deallocate releases gradient, optimizer state and variable. Idempotent.
func (w *Weight) Deallocate() {
	w.DeallocateGradient()
	w.DeallocateVariable()
}

// Bytes returns the memory held by the variable, gradient and optimizer state.
func (w *Weight) Bytes() uint64 {
	n := w.variable.Len() + w.gradient.Len()
	for _, t := range w.optimizerVars {
		n += t.Len()
	}
	return uint64(n) * 4
}

// String returns a short description of w.
func (w *Weight) String() string {
	return fmt.Sprintf("Weight(%q, %s, reg=%s)", w.name, w.dim, w.regularizer)
}
