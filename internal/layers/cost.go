package layers

import (
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/nntrainer/internal/nn"
	"github.com/born-ml/nntrainer/internal/tensor"
)

// Cost selects the loss computed by the terminal layer.
type Cost int

// Supported costs.
const (
	CostNone Cost = iota
	CostMSE
	CostCrossEntropy
	CostUnknown
)

// String returns the configuration name of the cost.
func (c Cost) String() string {
	switch c {
	case CostNone:
		return "none"
	case CostMSE:
		return "mse"
	case CostCrossEntropy:
		return "cross"
	default:
		return "unknown"
	}
}

// ParseCost parses "mse" or "cross".
func ParseCost(s string) (Cost, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return CostNone, nil
	case "mse", "msr":
		return CostMSE, nil
	case "cross", "cross_entropy":
		return CostCrossEntropy, nil
	default:
		return CostUnknown, errors.Wrapf(nn.ErrInvalidParameter, "unknown cost %q", s)
	}
}

// logEps keeps log away from zero probabilities.
const logEps = 1e-12

// checkCost verifies the cost can be computed from the activation output.
func checkCost(c Cost, act Activation) error {
	switch c {
	case CostNone, CostMSE:
		return nil
	case CostCrossEntropy:
		if act != ActivationSigmoid && act != ActivationSoftmax {
			return errors.Wrapf(nn.ErrInvalidParameter, "cross entropy needs sigmoid or softmax activation, got %s", act)
		}
		return nil
	default:
		return errors.Wrapf(nn.ErrInvalidParameter, "unsupported cost %s", c)
	}
}

// computeLoss returns the batch-averaged loss of the activation output y
// against label.
//
//	mse:               mean_b 0.5 * sum_i (y - l)²
//	cross (softmax):   mean_b -sum_i l * log(y)
//	cross (sigmoid):   mean_b -sum_i [l * log(y) + (1 - l) * log(1 - y)]
func computeLoss(c Cost, act Activation, y, label *tensor.Tensor) float32 {
	yd, ld := y.Data(), label.Data()
	var sum float64
	switch c {
	case CostMSE:
		for i := range yd {
			d := float64(yd[i] - ld[i])
			sum += 0.5 * d * d
		}
	case CostCrossEntropy:
		for i := range yd {
			p, l := float64(yd[i]), float64(ld[i])
			sum -= l * math.Log(p+logEps)
			if act == ActivationSigmoid {
				sum -= (1 - l) * math.Log(1-p+logEps)
			}
		}
	default:
		return 0
	}
	return float32(sum / float64(y.Dim().Rows()))
}

// costDerivative returns the derivative of the averaged loss with respect
// to the pre-activation output. Cross entropy is fused with its sigmoid or
// softmax so the derivative reduces to (y - l) / batch.
func costDerivative(c Cost, act Activation, y, label *tensor.Tensor) (*tensor.Tensor, error) {
	d, err := y.Sub(label)
	if err != nil {
		return nil, errors.Wrapf(nn.ErrInvalidParameter, "label: %v", err)
	}
	d.Scale(1 / float32(y.Dim().Rows()))

	switch c {
	case CostMSE:
		return activations[act].backward(y, d), nil
	case CostCrossEntropy:
		return d, nil
	default:
		return nil, errors.Wrapf(nn.ErrInvalidParameter, "no derivative for cost %s", c)
	}
}
