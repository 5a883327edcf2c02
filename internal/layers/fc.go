package layers

import (
	"io"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/nntrainer/internal/nn"
	"github.com/born-ml/nntrainer/internal/optim"
	"github.com/born-ml/nntrainer/internal/property"
	"github.com/born-ml/nntrainer/internal/tensor"
)

// FullyConnected applies a fully connected (dense) transformation:
//
//	y = act(x · W + b)
//
// Where:
//   - x is the input [batch, in]
//   - W is the weight 1:1:in:unit
//   - b is the bias 1:1:1:unit
//   - y is the output [batch, unit]
//
// As the terminal layer it also computes the loss selected by the loss
// property and starts backpropagation from the label.
type FullyConnected struct {
	base

	units  int
	weight *nn.Weight
	bias   *nn.Weight
}

// NewFullyConnected creates a fully connected layer. The activation must
// be set before the layer validates.
func NewFullyConnected() *FullyConnected {
	return &FullyConnected{base: newBase(TypeFullyConnected, ActivationUnknown)}
}

// Units returns the number of output features set with the unit property
// or by Initialize.
func (l *FullyConnected) Units() int {
	return l.units
}

// Initialize creates the weight (height x width) and the bias (1 x width).
//
// The bias is zero-filled when zeroBias or bias_init_zero is set and
// initialized like the weight otherwise.
func (l *FullyConnected) Initialize(batch, height, width int, last, zeroBias bool, init tensor.Initializer) error {
	if err := l.initDim(batch, height, width, last, zeroBias); err != nil {
		return err
	}
	if l.weightDecay.Type == WeightDecayL2Norm && l.weightDecay.Lambda <= 0 {
		return errors.Wrapf(nn.ErrInvalidParameter, "layer %q: weight decay lambda must be positive, got %g",
			l.name, l.weightDecay.Lambda)
	}
	init = l.effectiveInit(init)
	reg, regConst := l.regularizer()

	weight, err := l.createWeight(nn.Spec{
		Dim:                 tensor.NewDim(1, 1, height, width),
		Initializer:         init,
		Regularizer:         reg,
		RegularizerConstant: regConst,
		NeedGradient:        true,
		Name:                l.name + ":weight",
	})
	if err != nil {
		return errors.WithMessagef(err, "layer %q", l.name)
	}

	biasInit := init
	if l.initZero {
		biasInit = tensor.InitZeros
	}
	bias, err := l.createWeight(nn.Spec{
		Dim:                 tensor.NewDim(1, 1, 1, width),
		Initializer:         biasInit,
		Regularizer:         nn.RegularizerNone,
		RegularizerConstant: nn.DefaultRegularizerConstant,
		NeedGradient:        true,
		Name:                l.name + ":bias",
	})
	if err != nil {
		return errors.WithMessagef(err, "layer %q", l.name)
	}

	l.weight, l.bias = weight, bias
	l.units = width
	l.initialized = true

	if klog.V(2).Enabled() {
		klog.Infof("layer %q: fully connected %d -> %d, init=%s, reg=%s", l.name, height, width, init, reg)
	}
	return nil
}

// Forwarding computes act(x · W + b). When a batch normalization layer
// follows, the activation is left to it.
func (l *FullyConnected) Forwarding(in *tensor.Tensor) (*tensor.Tensor, error) {
	// A label only applies to the pass it was given with.
	l.label = nil
	l.loss = 0
	x, err := l.flatten(in, l.dim.Height)
	if err != nil {
		return nil, err
	}
	out, err := x.MatMul(l.weight.Variable(), false, false)
	if err != nil {
		return nil, errors.Wrapf(nn.ErrInvalidParameter, "layer %q: %v", l.name, err)
	}
	if err := out.AddRow(l.bias.Variable()); err != nil {
		return nil, errors.Wrapf(nn.ErrInvalidParameter, "layer %q: %v", l.name, err)
	}
	if !l.bnFollow {
		out = activations[l.activation].forward(out)
	}
	l.input = x
	l.hidden = out
	return out, nil
}

// ForwardingWithLabel runs Forwarding and, when the layer has a cost,
// computes the loss against label and keeps the label for Backwarding.
func (l *FullyConnected) ForwardingWithLabel(in, label *tensor.Tensor) (*tensor.Tensor, error) {
	if l.cost == CostNone {
		return l.Forwarding(in)
	}
	if err := checkCost(l.cost, l.activation); err != nil {
		return nil, errors.WithMessagef(err, "layer %q", l.name)
	}
	out, err := l.Forwarding(in)
	if err != nil {
		return nil, err
	}
	if label.IsEmpty() || label.Len() != out.Len() {
		return nil, errors.Wrapf(nn.ErrInvalidParameter, "layer %q: label %s does not match output %s",
			l.name, label.Dim(), out.Dim())
	}
	y := label.Clone()
	if err := y.Reshape(out.Dim()); err != nil {
		return nil, errors.Wrapf(nn.ErrInvalidParameter, "layer %q: %v", l.name, err)
	}
	l.label = y
	l.loss = computeLoss(l.cost, l.activation, out, y)
	return out, nil
}

// Backwarding computes the weight and bias gradients, applies the
// optimizer and returns the derivative with respect to the input.
//
// A terminal layer with a cost ignores derivative and starts from the
// label given to ForwardingWithLabel. Inputs are validated before any
// gradient is touched.
func (l *FullyConnected) Backwarding(derivative *tensor.Tensor, iteration int) (*tensor.Tensor, error) {
	if err := l.checkBackward(); err != nil {
		return nil, err
	}

	var delta *tensor.Tensor
	if l.lastLayer && l.cost != CostNone {
		if l.hidden == nil || l.label == nil {
			return nil, errors.Wrapf(nn.ErrNotInitialized, "layer %q: backwarding without a labeled forward pass", l.name)
		}
		d, err := costDerivative(l.cost, l.activation, l.hidden, l.label)
		if err != nil {
			return nil, errors.WithMessagef(err, "layer %q", l.name)
		}
		delta = d
	} else {
		if err := l.checkDerivative(derivative); err != nil {
			return nil, err
		}
		dy := derivative.Clone()
		if err := dy.Reshape(l.hidden.Dim()); err != nil {
			return nil, errors.Wrapf(nn.ErrInvalidParameter, "layer %q: %v", l.name, err)
		}
		if l.bnFollow {
			delta = dy
		} else {
			delta = activations[l.activation].backward(l.hidden, dy)
		}
	}

	dW, err := l.input.MatMul(delta, true, false)
	if err != nil {
		return nil, errors.Wrapf(nn.ErrInvalidParameter, "layer %q: %v", l.name, err)
	}
	dIn, err := delta.MatMul(l.weight.Variable(), false, true)
	if err != nil {
		return nil, errors.Wrapf(nn.ErrInvalidParameter, "layer %q: %v", l.name, err)
	}
	if err := l.weight.Gradient().CopyFrom(dW); err != nil {
		return nil, err
	}
	if err := l.bias.Gradient().CopyFrom(delta.SumRows()); err != nil {
		return nil, err
	}

	if err := l.updateWeights(l.Weights(), iteration); err != nil {
		return nil, err
	}
	return dIn, nil
}

// Read restores the weight then the bias.
func (l *FullyConnected) Read(r io.Reader) error {
	return l.readWeights(r, l.Weights())
}

// Save writes the weight then the bias.
func (l *FullyConnected) Save(w io.Writer) error {
	return l.saveWeights(w, l.Weights())
}

// SetProperty accepts unit besides the shared keys.
func (l *FullyConnected) SetProperty(values []string) error {
	return l.setProperties(values, func(p property.Property) (bool, error) {
		if p.Key != PropUnit {
			return false, nil
		}
		units, err := p.PositiveInt()
		if err != nil {
			return true, err
		}
		l.units = units
		return true, nil
	})
}

// SetOptimizer attaches opt. Existing weights are re-registered, which
// resets their optimizer state.
func (l *FullyConnected) SetOptimizer(opt optim.Optimizer) error {
	return l.setOptimizer(opt, l.Weights())
}

// Copy deep-copies configuration and weights from another fully connected
// layer.
func (l *FullyConnected) Copy(other Layer) error {
	src, ok := other.(*FullyConnected)
	if !ok {
		return errors.Wrapf(nn.ErrInvalidParameter, "copy %s layer into fully connected layer", other.Type())
	}
	l.copyConfig(&src.base)
	l.units = src.units
	l.weight, l.bias = nil, nil
	if src.weight == nil {
		return nil
	}
	weights, err := l.copyWeights(src.Weights())
	if err != nil {
		return err
	}
	l.weight, l.bias = weights[0], weights[1]
	return nil
}

// CheckValidation verifies dimension, activation and cost.
func (l *FullyConnected) CheckValidation() error {
	if err := l.checkValidation(); err != nil {
		return err
	}
	if l.lastLayer {
		if err := checkCost(l.cost, l.activation); err != nil {
			return errors.WithMessagef(err, "layer %q", l.name)
		}
	}
	return nil
}

// Weights returns the weight and the bias.
func (l *FullyConnected) Weights() []*nn.Weight {
	if l.weight == nil {
		return nil
	}
	return []*nn.Weight{l.weight, l.bias}
}
