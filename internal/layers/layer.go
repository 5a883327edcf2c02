// Package layers implements the polymorphic layer contract of the training
// engine and its concrete variants.
//
// A Layer owns its Weights plus the transient input/output tensors of the
// last forward pass. The network driver initializes every layer, calls
// Forwarding with the previous layer's output and Backwarding with the
// downstream derivative; Backwarding accumulates the weight gradients,
// adds the regularization gradient and lets the layer's optimizer update
// the weights before returning the upstream derivative.
//
// Variants:
//   - Input: feeds (optionally normalized) samples into the network
//   - FullyConnected: y = act(x·W + b), optionally computing the loss
//   - BatchNorm: per-feature batch normalization with learnable scale/shift
package layers

import (
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/nntrainer/internal/nn"
	"github.com/born-ml/nntrainer/internal/optim"
	"github.com/born-ml/nntrainer/internal/tensor"
)

// Type tags the concrete layer variant.
type Type int

// Supported layer types.
const (
	TypeInput Type = iota
	TypeFullyConnected
	TypeBatchNorm
	TypeUnknown
)

// String returns the configuration name of the layer type.
func (t Type) String() string {
	switch t {
	case TypeInput:
		return "input"
	case TypeFullyConnected:
		return "fully_connected"
	case TypeBatchNorm:
		return "batch_normalization"
	default:
		return "unknown"
	}
}

// ParseType parses a layer type name.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "input":
		return TypeInput, nil
	case "fully_connected", "fc":
		return TypeFullyConnected, nil
	case "batch_normalization", "bn":
		return TypeBatchNorm, nil
	default:
		return TypeUnknown, errors.Wrapf(nn.ErrInvalidParameter, "unknown layer type %q", s)
	}
}

// WeightDecayType selects how weight decay is applied.
type WeightDecayType int

// Supported weight decay types.
const (
	WeightDecayNone WeightDecayType = iota
	WeightDecayL2Norm
)

// WeightDecay configures the L2 penalty on a layer's weight matrix.
type WeightDecay struct {
	Type   WeightDecayType
	Lambda float32
}

// Layer is the contract every layer variant implements.
//
// Forwarding returns a tensor owned by the layer that stays valid until the
// next forward pass.
type Layer interface {
	// Forwarding computes the output for in using the current weights.
	Forwarding(in *tensor.Tensor) (*tensor.Tensor, error)

	// ForwardingWithLabel is Forwarding for the terminal layer: it also
	// computes the loss against label when the layer has a cost.
	ForwardingWithLabel(in, label *tensor.Tensor) (*tensor.Tensor, error)

	// Backwarding consumes the derivative of the loss with respect to this
	// layer's output, updates the owned weights and returns the derivative
	// with respect to its input. The terminal layer with a cost ignores
	// derivative and starts from the label of the last forward pass.
	Backwarding(derivative *tensor.Tensor, iteration int) (*tensor.Tensor, error)

	// Initialize allocates the weights and fixes the layer dimension.
	//
	// height is the number of input features and width the number of
	// output features for a fully connected layer; other variants use
	// height 1 and width as their feature count.
	Initialize(batch, height, width int, last, zeroBias bool, init tensor.Initializer) error

	// Read restores weight values written by Save.
	Read(r io.Reader) error

	// Save writes the weight values in a fixed per-variant order.
	Save(w io.Writer) error

	// SetProperty configures the layer from key=value tokens.
	SetProperty(values []string) error

	SetOptimizer(opt optim.Optimizer) error
	SetCost(c Cost)
	Cost() Cost
	SetActivation(a Activation) error
	Activation() Activation
	SetType(t Type)
	Type() Type

	// Copy deep-copies configuration and weight values from a layer of
	// the same variant.
	Copy(other Layer) error

	SetWeightDecay(wd WeightDecay)
	SetBNFollow(ok bool)
	SetTraining(training bool)

	// CheckValidation verifies the layer is ready to run.
	CheckValidation() error

	Weights() []*nn.Weight
	Dim() tensor.Dim
	InputShape() tensor.Dim
	OutputDim() tensor.Dim
	Loss() float32
	Name() string
	SetName(name string)
	IsLast() bool
}

// base holds the state shared by all variants.
type base struct {
	name      string
	layerType Type

	// dim is batch:1:height:width as given to Initialize.
	dim         tensor.Dim
	initialized bool

	input  *tensor.Tensor
	hidden *tensor.Tensor
	label  *tensor.Tensor
	loss   float32

	optimizer   optim.Optimizer
	activation  Activation
	cost        Cost
	lastLayer   bool
	initZero    bool
	biasZero    bool
	bnFollow    bool
	training    bool
	weightDecay WeightDecay

	// inputShape is the per-sample shape given by the input_shape property.
	inputShape tensor.Dim
	// weightInit overrides the initializer passed to Initialize when set.
	weightInit tensor.Initializer
}

func newBase(t Type, act Activation) base {
	return base{
		layerType:  t,
		activation: act,
		training:   true,
		weightInit: tensor.InitUnknown,
	}
}

func (b *base) Name() string        { return b.name }
func (b *base) SetName(name string) { b.name = name }
func (b *base) SetType(t Type)      { b.layerType = t }
func (b *base) Type() Type          { return b.layerType }
func (b *base) IsLast() bool        { return b.lastLayer }
func (b *base) Loss() float32       { return b.loss }
func (b *base) Dim() tensor.Dim     { return b.dim }

// InputShape returns the per-sample shape set with the input_shape property.
func (b *base) InputShape() tensor.Dim { return b.inputShape }

// OutputDim returns batch:1:1:width once initialized.
func (b *base) OutputDim() tensor.Dim {
	if !b.initialized {
		return tensor.Dim{}
	}
	return tensor.NewDim(b.dim.Batch, 1, 1, b.dim.Width)
}

// SetCost selects the loss computed when the layer is the terminal one.
func (b *base) SetCost(c Cost) { b.cost = c }

// Cost returns the configured loss.
func (b *base) Cost() Cost { return b.cost }

// Activation returns the configured activation.
func (b *base) Activation() Activation { return b.activation }

// SetActivation selects the activation applied to the layer output.
func (b *base) SetActivation(a Activation) error {
	if _, ok := activations[a]; !ok {
		return errors.Wrapf(nn.ErrInvalidParameter, "layer %q: unsupported activation %s", b.name, a)
	}
	b.activation = a
	return nil
}

// SetWeightDecay configures weight decay; it takes effect at Initialize.
func (b *base) SetWeightDecay(wd WeightDecay) { b.weightDecay = wd }

// SetBNFollow marks the layer as followed by batch normalization, which
// then applies the activation instead.
func (b *base) SetBNFollow(ok bool) { b.bnFollow = ok }

// SetTraining switches between training and inference behavior.
func (b *base) SetTraining(training bool) { b.training = training }

// initDim validates and records the Initialize arguments.
func (b *base) initDim(batch, height, width int, last, zeroBias bool) error {
	if batch <= 0 || height <= 0 || width <= 0 {
		return errors.Wrapf(nn.ErrInvalidParameter, "layer %q: initialize with batch=%d height=%d width=%d (all must be > 0)",
			b.name, batch, height, width)
	}
	b.dim = tensor.NewDim(batch, 1, height, width)
	b.lastLayer = last
	b.initZero = zeroBias || b.biasZero
	b.input, b.hidden, b.label = nil, nil, nil
	b.loss = 0
	return nil
}

// effectiveInit returns the weight initializer to use.
func (b *base) effectiveInit(init tensor.Initializer) tensor.Initializer {
	if b.weightInit != tensor.InitUnknown {
		return b.weightInit
	}
	return init
}

// regularizer maps the weight decay configuration onto a weight regularizer.
func (b *base) regularizer() (nn.Regularizer, float32) {
	if b.weightDecay.Type == WeightDecayL2Norm {
		return nn.RegularizerL2Norm, b.weightDecay.Lambda
	}
	return nn.RegularizerNone, nn.DefaultRegularizerConstant
}

// flatten validates in against the expected feature count and returns a
// batch:1:1:features copy.
func (b *base) flatten(in *tensor.Tensor, features int) (*tensor.Tensor, error) {
	if !b.initialized {
		return nil, errors.Wrapf(nn.ErrNotInitialized, "layer %q: forwarding before initialize", b.name)
	}
	if in.IsEmpty() {
		return nil, errors.Wrapf(nn.ErrInvalidParameter, "layer %q: empty input", b.name)
	}
	d := in.Dim()
	if d.FeatureLen() != features {
		return nil, errors.Wrapf(nn.ErrInvalidParameter, "layer %q: input %s has %d features per sample, want %d",
			b.name, d, d.FeatureLen(), features)
	}
	x := in.Clone()
	if err := x.Reshape(tensor.NewDim(d.Batch, 1, 1, features)); err != nil {
		return nil, errors.Wrapf(nn.ErrInvalidParameter, "layer %q: %v", b.name, err)
	}
	return x, nil
}

// checkDerivative validates the derivative handed to Backwarding against
// the output of the last forward pass.
func (b *base) checkDerivative(derivative *tensor.Tensor) error {
	if !b.initialized || b.hidden == nil {
		return errors.Wrapf(nn.ErrNotInitialized, "layer %q: backwarding before forwarding", b.name)
	}
	if derivative.IsEmpty() {
		return errors.Wrapf(nn.ErrInvalidParameter, "layer %q: empty derivative", b.name)
	}
	if derivative.Dim().Len() != b.hidden.Len() || derivative.Dim().Width != b.hidden.Dim().Width {
		return errors.Wrapf(nn.ErrInvalidParameter, "layer %q: derivative %s does not match output %s",
			b.name, derivative.Dim(), b.hidden.Dim())
	}
	return nil
}

// setOptimizer stores opt and re-registers the trainable weights when they
// already exist.
func (b *base) setOptimizer(opt optim.Optimizer, weights []*nn.Weight) error {
	if opt == nil {
		return errors.Wrapf(nn.ErrInvalidParameter, "layer %q: nil optimizer", b.name)
	}
	b.optimizer = opt
	for _, w := range weights {
		if !w.NeedsGradient() {
			continue
		}
		w.ClearOptimizerVariables()
		opt.RegisterWeight(w)
		if err := w.AllocateOptimizerVariables(); err != nil {
			return err
		}
	}
	return nil
}

// createWeight builds, registers and allocates one weight.
func (b *base) createWeight(spec nn.Spec) (*nn.Weight, error) {
	w, err := nn.NewWeightFromSpec(spec, false)
	if err != nil {
		return nil, err
	}
	if b.optimizer != nil && w.NeedsGradient() {
		b.optimizer.RegisterWeight(w)
	}
	if err := w.AllocateVariable(); err != nil {
		return nil, err
	}
	if err := w.AllocateGradient(); err != nil {
		return nil, err
	}
	return w, nil
}

// updateWeights adds the regularization gradient and applies the optimizer
// to every trainable weight.
func (b *base) updateWeights(weights []*nn.Weight, iteration int) error {
	for _, w := range weights {
		if !w.NeedsGradient() {
			continue
		}
		if err := w.CalcRegularizationGradient(); err != nil {
			return err
		}
		if err := b.optimizer.Apply(w, iteration); err != nil {
			return errors.WithMessagef(err, "layer %q", b.name)
		}
	}
	return nil
}

// checkBackward verifies the layer can update its weights.
func (b *base) checkBackward() error {
	if !b.initialized {
		return errors.Wrapf(nn.ErrNotInitialized, "layer %q: backwarding before initialize", b.name)
	}
	if b.optimizer == nil {
		return errors.Wrapf(nn.ErrNotInitialized, "layer %q: no optimizer set", b.name)
	}
	return nil
}

// checkValidation covers the checks shared by all variants.
func (b *base) checkValidation() error {
	if !b.initialized || b.dim.Validate() != nil {
		return errors.Wrapf(nn.ErrInvalidParameter, "layer %q: dimension not set", b.name)
	}
	if b.activation == ActivationUnknown {
		return errors.Wrapf(nn.ErrInvalidParameter, "layer %q: activation not set", b.name)
	}
	return nil
}

// copyConfig copies the configuration of other into b. Transient tensors
// are not copied.
func (b *base) copyConfig(other *base) {
	b.name = other.name
	b.layerType = other.layerType
	b.dim = other.dim
	b.initialized = other.initialized
	b.optimizer = other.optimizer
	b.activation = other.activation
	b.cost = other.cost
	b.lastLayer = other.lastLayer
	b.initZero = other.initZero
	b.biasZero = other.biasZero
	b.bnFollow = other.bnFollow
	b.training = other.training
	b.weightDecay = other.weightDecay
	b.inputShape = other.inputShape
	b.weightInit = other.weightInit
	b.input, b.hidden, b.label = nil, nil, nil
	b.loss = 0
}

// copyWeights clones the weights of a layer of the same variant and
// re-registers them with the optimizer.
func (b *base) copyWeights(src []*nn.Weight) ([]*nn.Weight, error) {
	out := make([]*nn.Weight, len(src))
	for i, w := range src {
		out[i] = w.Clone()
	}
	if b.optimizer != nil {
		if err := b.setOptimizer(b.optimizer, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}
