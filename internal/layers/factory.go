package layers

import (
	"github.com/pkg/errors"

	"github.com/born-ml/nntrainer/internal/nn"
)

// New creates an uninitialized layer of type t.
func New(t Type) (Layer, error) {
	switch t {
	case TypeInput:
		return NewInput(), nil
	case TypeFullyConnected:
		return NewFullyConnected(), nil
	case TypeBatchNorm:
		return NewBatchNorm(), nil
	default:
		return nil, errors.Wrapf(nn.ErrInvalidParameter, "unsupported layer type %s", t)
	}
}

// NewFromProperties creates a layer of type t and applies values to it.
func NewFromProperties(t Type, values []string) (Layer, error) {
	l, err := New(t)
	if err != nil {
		return nil, err
	}
	if err := l.SetProperty(values); err != nil {
		return nil, err
	}
	return l, nil
}
