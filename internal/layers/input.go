package layers

import (
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/born-ml/nntrainer/internal/nn"
	"github.com/born-ml/nntrainer/internal/optim"
	"github.com/born-ml/nntrainer/internal/property"
	"github.com/born-ml/nntrainer/internal/tensor"
)

// Input feeds samples into the network. It owns no weights; it can
// min-max normalize and/or standardize every sample on the way in.
type Input struct {
	base

	normalization   bool
	standardization bool
}

// NewInput creates an input layer with no activation.
func NewInput() *Input {
	return &Input{base: newBase(TypeInput, ActivationNone)}
}

// Initialize fixes the sample size to height*width features.
func (l *Input) Initialize(batch, height, width int, last, zeroBias bool, _ tensor.Initializer) error {
	if err := l.initDim(batch, height, width, last, zeroBias); err != nil {
		return err
	}
	l.dim = tensor.NewDim(batch, 1, 1, height*width)
	l.initialized = true
	return nil
}

// Forwarding flattens in to batch:1:1:width and applies the configured
// per-sample normalization.
func (l *Input) Forwarding(in *tensor.Tensor) (*tensor.Tensor, error) {
	x, err := l.flatten(in, l.dim.Width)
	if err != nil {
		return nil, err
	}
	rows := x.Dim().Rows()
	for r := 0; r < rows; r++ {
		row := x.Row(r)
		if l.normalization {
			normalizeRow(row)
		}
		if l.standardization {
			standardizeRow(row)
		}
	}
	l.input = x
	l.hidden = x
	return x, nil
}

// ForwardingWithLabel ignores label.
func (l *Input) ForwardingWithLabel(in, _ *tensor.Tensor) (*tensor.Tensor, error) {
	return l.Forwarding(in)
}

// Backwarding passes the derivative through unchanged.
func (l *Input) Backwarding(derivative *tensor.Tensor, _ int) (*tensor.Tensor, error) {
	if err := l.checkDerivative(derivative); err != nil {
		return nil, err
	}
	return derivative, nil
}

// Read is a no-op: the input layer has no weights.
func (l *Input) Read(r io.Reader) error { return l.readWeights(r, nil) }

// Save is a no-op: the input layer has no weights.
func (l *Input) Save(w io.Writer) error { return l.saveWeights(w, nil) }

// SetProperty accepts normalization and standardization besides the shared keys.
func (l *Input) SetProperty(values []string) error {
	return l.setProperties(values, func(p property.Property) (bool, error) {
		var err error
		switch p.Key {
		case PropNormalization:
			l.normalization, err = p.Bool()
		case PropStandardization:
			l.standardization, err = p.Bool()
		default:
			return false, nil
		}
		return true, err
	})
}

// SetOptimizer records opt; the input layer has nothing to train.
func (l *Input) SetOptimizer(opt optim.Optimizer) error {
	return l.setOptimizer(opt, nil)
}

// Copy copies configuration from another input layer.
func (l *Input) Copy(other Layer) error {
	src, ok := other.(*Input)
	if !ok {
		return errors.Wrapf(nn.ErrInvalidParameter, "copy %s layer into input layer", other.Type())
	}
	l.copyConfig(&src.base)
	l.normalization = src.normalization
	l.standardization = src.standardization
	return nil
}

// CheckValidation verifies the layer was initialized.
func (l *Input) CheckValidation() error {
	return l.checkValidation()
}

// Weights returns nil.
func (l *Input) Weights() []*nn.Weight { return nil }

// normalizeRow rescales row to [0, 1]. Constant rows become 0.
func normalizeRow(row []float32) {
	lo, hi := row[0], row[0]
	for _, v := range row[1:] {
		lo, hi = min(lo, v), max(hi, v)
	}
	span := hi - lo
	for i, v := range row {
		if span == 0 {
			row[i] = 0
			continue
		}
		row[i] = (v - lo) / span
	}
}

// standardizeRow shifts row to zero mean and unit variance.
func standardizeRow(row []float32) {
	var mean float64
	for _, v := range row {
		mean += float64(v)
	}
	mean /= float64(len(row))

	var variance float64
	for _, v := range row {
		d := float64(v) - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(len(row)))
	if std == 0 {
		std = 1
	}
	for i, v := range row {
		row[i] = float32((float64(v) - mean) / std)
	}
}
