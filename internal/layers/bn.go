package layers

import (
	"io"
	"math"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/nntrainer/internal/nn"
	"github.com/born-ml/nntrainer/internal/optim"
	"github.com/born-ml/nntrainer/internal/parallel"
	"github.com/born-ml/nntrainer/internal/property"
	"github.com/born-ml/nntrainer/internal/tensor"
)

// Batch normalization defaults.
const (
	DefaultBNEpsilon  = 0.001
	DefaultBNMomentum = 0.99
)

// BatchNorm normalizes every feature over the batch:
//
//	x̂ = (x - mean) / sqrt(var + epsilon)
//	y = act(gamma * x̂ + beta)
//
// Training updates the running statistics as
// running = momentum * running + (1 - momentum) * batch; inference uses
// them instead of the batch statistics.
type BatchNorm struct {
	base

	epsilon  float32
	momentum float32

	gamma       *nn.Weight
	beta        *nn.Weight
	runningMean *nn.Weight
	runningVar  *nn.Weight

	// Saved by the last forward pass for Backwarding.
	xHat       *tensor.Tensor
	invStd     []float32
	batchStats bool

	workers parallel.Config
}

// NewBatchNorm creates a batch normalization layer with no activation.
func NewBatchNorm() *BatchNorm {
	return &BatchNorm{
		base:     newBase(TypeBatchNorm, ActivationNone),
		epsilon:  DefaultBNEpsilon,
		momentum: DefaultBNMomentum,
		workers:  parallel.DefaultConfig(),
	}
}

// Initialize creates gamma (ones), beta (zeros) and the running mean
// (zeros) and variance (ones) for width features. height must be 1.
func (l *BatchNorm) Initialize(batch, height, width int, last, zeroBias bool, _ tensor.Initializer) error {
	if err := l.initDim(batch, height, width, last, zeroBias); err != nil {
		return err
	}
	if height != 1 {
		return errors.Wrapf(nn.ErrInvalidParameter, "layer %q: batch normalization needs height 1, got %d", l.name, height)
	}
	if l.epsilon <= 0 || l.momentum < 0 || l.momentum >= 1 {
		return errors.Wrapf(nn.ErrInvalidParameter, "layer %q: epsilon %g must be > 0 and momentum %g in [0, 1)",
			l.name, l.epsilon, l.momentum)
	}

	dim := tensor.NewDim(1, 1, 1, width)
	specs := []nn.Spec{
		{Dim: dim, Initializer: tensor.InitOnes, NeedGradient: true, Name: l.name + ":gamma"},
		{Dim: dim, Initializer: tensor.InitZeros, NeedGradient: true, Name: l.name + ":beta"},
		{Dim: dim, Initializer: tensor.InitZeros, Name: l.name + ":running_mean"},
		{Dim: dim, Initializer: tensor.InitOnes, Name: l.name + ":running_variance"},
	}
	weights := make([]*nn.Weight, len(specs))
	for i, spec := range specs {
		spec.Regularizer = nn.RegularizerNone
		spec.RegularizerConstant = nn.DefaultRegularizerConstant
		w, err := l.createWeight(spec)
		if err != nil {
			return errors.WithMessagef(err, "layer %q", l.name)
		}
		weights[i] = w
	}
	l.gamma, l.beta, l.runningMean, l.runningVar = weights[0], weights[1], weights[2], weights[3]
	l.xHat, l.invStd = nil, nil
	l.initialized = true

	if klog.V(2).Enabled() {
		klog.Infof("layer %q: batch normalization over %d features, epsilon=%g momentum=%g",
			l.name, width, l.epsilon, l.momentum)
	}
	return nil
}

// Forwarding normalizes in with the batch statistics while training and
// with the running statistics otherwise.
func (l *BatchNorm) Forwarding(in *tensor.Tensor) (*tensor.Tensor, error) {
	x, err := l.flatten(in, l.dim.Width)
	if err != nil {
		return nil, err
	}
	rows, cols := x.Dim().Rows(), l.dim.Width
	mean := make([]float32, cols)
	invStd := make([]float32, cols)

	if l.training {
		rm, rv := l.runningMean.Variable().Data(), l.runningVar.Variable().Data()
		parallel.Range(cols, func(start, end int) {
			for c := start; c < end; c++ {
				var sum float64
				for r := 0; r < rows; r++ {
					sum += float64(x.Row(r)[c])
				}
				mu := sum / float64(rows)
				var sq float64
				for r := 0; r < rows; r++ {
					d := float64(x.Row(r)[c]) - mu
					sq += d * d
				}
				variance := sq / float64(rows)

				mean[c] = float32(mu)
				invStd[c] = float32(1 / math.Sqrt(variance+float64(l.epsilon)))
				rm[c] = l.momentum*rm[c] + (1-l.momentum)*float32(mu)
				rv[c] = l.momentum*rv[c] + (1-l.momentum)*float32(variance)
			}
		}, l.workers)
	} else {
		copy(mean, l.runningMean.Variable().Data())
		for c, v := range l.runningVar.Variable().Data() {
			invStd[c] = float32(1 / math.Sqrt(float64(v+l.epsilon)))
		}
	}

	xHat := x.Clone()
	out := x.Clone()
	gamma, beta := l.gamma.Variable().Data(), l.beta.Variable().Data()
	for r := 0; r < rows; r++ {
		xr, or := xHat.Row(r), out.Row(r)
		for c := range xr {
			xr[c] = (xr[c] - mean[c]) * invStd[c]
			or[c] = gamma[c]*xr[c] + beta[c]
		}
	}
	out = activations[l.activation].forward(out)

	l.input = x
	l.xHat = xHat
	l.invStd = invStd
	l.batchStats = l.training
	l.hidden = out
	return out, nil
}

// ForwardingWithLabel ignores label.
func (l *BatchNorm) ForwardingWithLabel(in, _ *tensor.Tensor) (*tensor.Tensor, error) {
	return l.Forwarding(in)
}

// Backwarding computes the gamma and beta gradients, applies the optimizer
// and returns the derivative with respect to the input:
//
//	dx = gamma * invStd / N * (N * dy - sum(dy) - x̂ * sum(dy * x̂))
//
// When the last forward pass used the running statistics the batch terms
// vanish and dx = gamma * invStd * dy.
func (l *BatchNorm) Backwarding(derivative *tensor.Tensor, iteration int) (*tensor.Tensor, error) {
	if err := l.checkBackward(); err != nil {
		return nil, err
	}
	if err := l.checkDerivative(derivative); err != nil {
		return nil, err
	}
	dy := derivative.Clone()
	if err := dy.Reshape(l.hidden.Dim()); err != nil {
		return nil, errors.Wrapf(nn.ErrInvalidParameter, "layer %q: %v", l.name, err)
	}
	dy = activations[l.activation].backward(l.hidden, dy)

	rows := dy.Dim().Rows()
	n := float32(rows)
	dBeta := dy.SumRows()
	prod, err := dy.Mul(l.xHat)
	if err != nil {
		return nil, errors.Wrapf(nn.ErrInvalidParameter, "layer %q: %v", l.name, err)
	}
	dGamma := prod.SumRows()

	dx := dy.Clone()
	gamma := l.gamma.Variable().Data()
	sumDy, sumDyXHat := dBeta.Data(), dGamma.Data()
	for r := 0; r < rows; r++ {
		dr, xr := dx.Row(r), l.xHat.Row(r)
		for c := range dr {
			scale := gamma[c] * l.invStd[c]
			if l.batchStats {
				dr[c] = scale / n * (n*dr[c] - sumDy[c] - xr[c]*sumDyXHat[c])
			} else {
				dr[c] = scale * dr[c]
			}
		}
	}

	if err := l.gamma.Gradient().CopyFrom(dGamma); err != nil {
		return nil, err
	}
	if err := l.beta.Gradient().CopyFrom(dBeta); err != nil {
		return nil, err
	}
	if err := l.updateWeights(l.Weights(), iteration); err != nil {
		return nil, err
	}
	return dx, nil
}

// Read restores gamma, beta, running mean and running variance.
func (l *BatchNorm) Read(r io.Reader) error {
	return l.readWeights(r, l.Weights())
}

// Save writes gamma, beta, running mean and running variance.
func (l *BatchNorm) Save(w io.Writer) error {
	return l.saveWeights(w, l.Weights())
}

// SetProperty accepts epsilon and momentum besides the shared keys.
func (l *BatchNorm) SetProperty(values []string) error {
	return l.setProperties(values, func(p property.Property) (bool, error) {
		var err error
		switch p.Key {
		case PropEpsilon:
			l.epsilon, err = p.Float32()
		case PropMomentum:
			l.momentum, err = p.Float32()
		default:
			return false, nil
		}
		return true, err
	})
}

// SetOptimizer attaches opt and re-registers gamma and beta.
func (l *BatchNorm) SetOptimizer(opt optim.Optimizer) error {
	return l.setOptimizer(opt, l.Weights())
}

// Copy deep-copies configuration, parameters and running statistics from
// another batch normalization layer.
func (l *BatchNorm) Copy(other Layer) error {
	src, ok := other.(*BatchNorm)
	if !ok {
		return errors.Wrapf(nn.ErrInvalidParameter, "copy %s layer into batch normalization layer", other.Type())
	}
	l.copyConfig(&src.base)
	l.epsilon = src.epsilon
	l.momentum = src.momentum
	l.gamma, l.beta, l.runningMean, l.runningVar = nil, nil, nil, nil
	l.xHat, l.invStd = nil, nil
	if src.gamma == nil {
		return nil
	}
	weights, err := l.copyWeights(src.Weights())
	if err != nil {
		return err
	}
	l.gamma, l.beta, l.runningMean, l.runningVar = weights[0], weights[1], weights[2], weights[3]
	return nil
}

// CheckValidation verifies dimension and hyperparameters.
func (l *BatchNorm) CheckValidation() error {
	if err := l.checkValidation(); err != nil {
		return err
	}
	if l.epsilon <= 0 {
		return errors.Wrapf(nn.ErrInvalidParameter, "layer %q: epsilon must be positive", l.name)
	}
	return nil
}

// Weights returns gamma, beta, running mean and running variance.
func (l *BatchNorm) Weights() []*nn.Weight {
	if l.gamma == nil {
		return nil
	}
	return []*nn.Weight{l.gamma, l.beta, l.runningMean, l.runningVar}
}
