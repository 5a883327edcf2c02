package layers

import (
	"io"

	"github.com/pkg/errors"

	"github.com/born-ml/nntrainer/internal/nn"
	"github.com/born-ml/nntrainer/internal/tensor"
)

// saveWeights writes the variables of weights in order, raw little-endian
// float32 with no header.
func (b *base) saveWeights(w io.Writer, weights []*nn.Weight) error {
	if !b.initialized {
		return errors.Wrapf(nn.ErrNotInitialized, "layer %q: save before initialize", b.name)
	}
	for _, wt := range weights {
		if err := wt.Variable().Save(w); err != nil {
			return errors.Wrapf(nn.ErrIOFailure, "layer %q: save %s: %v", b.name, wt.Name(), err)
		}
	}
	return nil
}

// readWeights fills the variables of weights in the order saveWeights
// wrote them. Nothing is written unless every variable could be read.
func (b *base) readWeights(r io.Reader, weights []*nn.Weight) error {
	if !b.initialized {
		return errors.Wrapf(nn.ErrNotInitialized, "layer %q: read before initialize", b.name)
	}
	staged := make([]*tensor.Tensor, len(weights))
	for i, wt := range weights {
		t, err := tensor.New(wt.Dim())
		if err != nil {
			return errors.Wrapf(nn.ErrInvalidParameter, "layer %q: %s: %v", b.name, wt.Name(), err)
		}
		if err := t.Read(r); err != nil {
			return errors.Wrapf(nn.ErrIOFailure, "layer %q: read %s: %v", b.name, wt.Name(), err)
		}
		staged[i] = t
	}
	for i, wt := range weights {
		if err := wt.Variable().CopyFrom(staged[i]); err != nil {
			return errors.Wrapf(nn.ErrInvalidParameter, "layer %q: %s: %v", b.name, wt.Name(), err)
		}
	}
	return nil
}
