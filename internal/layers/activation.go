package layers

import (
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/nntrainer/internal/nn"
	"github.com/born-ml/nntrainer/internal/parallel"
	"github.com/born-ml/nntrainer/internal/tensor"
)

// Activation selects the non-linearity applied to a layer output.
type Activation int

// Supported activations.
const (
	ActivationTanh Activation = iota
	ActivationSigmoid
	ActivationReLU
	ActivationSoftmax
	ActivationNone
	ActivationUnknown
)

var activationNames = map[Activation]string{
	ActivationTanh:    "tanh",
	ActivationSigmoid: "sigmoid",
	ActivationReLU:    "relu",
	ActivationSoftmax: "softmax",
	ActivationNone:    "none",
}

// String returns the configuration name of the activation.
func (a Activation) String() string {
	if s, ok := activationNames[a]; ok {
		return s
	}
	return "unknown"
}

// ParseActivation parses an activation name.
func ParseActivation(s string) (Activation, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for a, name := range activationNames {
		if name == s {
			return a, nil
		}
	}
	return ActivationUnknown, errors.Wrapf(nn.ErrInvalidParameter, "unknown activation %q", s)
}

// activationFuncs pairs the forward function of an activation with its
// derivative. backward receives the forward output y and the derivative
// with respect to y, and returns the derivative with respect to the input.
type activationFuncs struct {
	forward  func(x *tensor.Tensor) *tensor.Tensor
	backward func(y, dy *tensor.Tensor) *tensor.Tensor
}

var activations = map[Activation]activationFuncs{
	ActivationTanh: elementwise(
		func(x float32) float32 { return float32(math.Tanh(float64(x))) },
		func(y float32) float32 { return 1 - y*y },
	),
	ActivationSigmoid: elementwise(
		sigmoid,
		func(y float32) float32 { return y * (1 - y) },
	),
	ActivationReLU: elementwise(
		func(x float32) float32 { return max(x, 0) },
		func(y float32) float32 {
			if y > 0 {
				return 1
			}
			return 0
		},
	),
	ActivationSoftmax: {forward: softmax, backward: softmaxBackward},
	ActivationNone: {
		forward:  func(x *tensor.Tensor) *tensor.Tensor { return x },
		backward: func(_, dy *tensor.Tensor) *tensor.Tensor { return dy.Clone() },
	},
}

// elementwise builds activationFuncs from a scalar function and its
// derivative expressed in terms of the output.
func elementwise(f, dfy func(float32) float32) activationFuncs {
	return activationFuncs{
		forward: func(x *tensor.Tensor) *tensor.Tensor { return x.Apply(f) },
		backward: func(y, dy *tensor.Tensor) *tensor.Tensor {
			out := dy.Clone()
			yd, od := y.Data(), out.Data()
			for i := range od {
				od[i] *= dfy(yd[i])
			}
			return out
		},
	}
}

func sigmoid(x float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(-float64(x))))
}

var rowConfig = parallel.DefaultConfig()

// softmax normalizes every matrix row of x; the max is subtracted for
// numerical stability.
func softmax(x *tensor.Tensor) *tensor.Tensor {
	out := x.Clone()
	parallel.For(out.Dim().Rows(), func(r int) {
		row := out.Row(r)
		maxVal := row[0]
		for _, v := range row[1:] {
			maxVal = max(maxVal, v)
		}
		var sum float64
		for i, v := range row {
			e := math.Exp(float64(v - maxVal))
			row[i] = float32(e)
			sum += e
		}
		for i := range row {
			row[i] = float32(float64(row[i]) / sum)
		}
	}, rowConfig)
	return out
}

// softmaxBackward computes dx_i = y_i * (dy_i - sum_j dy_j * y_j) per row.
func softmaxBackward(y, dy *tensor.Tensor) *tensor.Tensor {
	out := dy.Clone()
	parallel.For(out.Dim().Rows(), func(r int) {
		yr, dr := y.Row(r), out.Row(r)
		var dot float32
		for i := range yr {
			dot += dr[i] * yr[i]
		}
		for i := range yr {
			dr[i] = yr[i] * (dr[i] - dot)
		}
	}, rowConfig)
	return out
}
