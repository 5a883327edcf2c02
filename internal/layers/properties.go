package layers

import (
	"github.com/pkg/errors"

	"github.com/born-ml/nntrainer/internal/nn"
	"github.com/born-ml/nntrainer/internal/property"
	"github.com/born-ml/nntrainer/internal/tensor"
)

// Property keys shared by all layer variants.
const (
	PropInputShape                = "input_shape"
	PropActivation                = "activation"
	PropWeightRegularizer         = "weight_regularizer"
	PropWeightRegularizerConstant = "weight_regularizer_constant"
	PropWeightDecay               = "weight_decay"
	PropWeightDecayLambda         = "weight_decay_lambda"
	PropWeightInitializer         = "weight_initializer"
	PropBiasInitZero              = "bias_init_zero"
	PropName                      = "name"
	PropLoss                      = "loss"
)

// Variant-specific property keys.
const (
	PropUnit            = "unit"
	PropNormalization   = "normalization"
	PropStandardization = "standardization"
	PropEpsilon         = "epsilon"
	PropMomentum        = "momentum"
)

// variantSetter applies a variant-specific property and reports whether it
// recognized the key.
type variantSetter func(p property.Property) (bool, error)

// setProperties tokenizes every value first, so a token that is not
// key=value leaves the layer untouched. The properties are then applied in
// order: the variant gets the first chance at each key, the shared keys
// come next. An unknown key or a bad value fails with ErrInvalidParameter
// and keeps the properties applied before it.
func (b *base) setProperties(values []string, variant variantSetter) error {
	props, err := property.ParseAll(values)
	if err != nil {
		return errors.Wrapf(nn.ErrInvalidParameter, "layer %q: %v", b.name, err)
	}
	for _, p := range props {
		if variant != nil {
			ok, err := variant(p)
			if err != nil {
				return errors.Wrapf(nn.ErrInvalidParameter, "layer %q: %v", b.name, err)
			}
			if ok {
				continue
			}
		}
		if err := b.setProperty(p); err != nil {
			return err
		}
	}
	return nil
}

func (b *base) setProperty(p property.Property) error {
	var err error
	switch p.Key {
	case PropInputShape:
		var d tensor.Dim
		if d, err = tensor.ParseDim(p.Value); err == nil {
			b.inputShape = d.WithBatch(1)
		}
	case PropActivation:
		var a Activation
		if a, err = ParseActivation(p.Value); err == nil {
			err = b.SetActivation(a)
		}
	case PropWeightRegularizer, PropWeightDecay:
		var r nn.Regularizer
		if r, err = nn.ParseRegularizer(p.Value); err == nil {
			b.weightDecay.Type = WeightDecayNone
			if r == nn.RegularizerL2Norm {
				b.weightDecay.Type = WeightDecayL2Norm
			}
		}
	case PropWeightRegularizerConstant, PropWeightDecayLambda:
		b.weightDecay.Lambda, err = p.Float32()
	case PropWeightInitializer:
		b.weightInit, err = tensor.ParseInitializer(p.Value)
	case PropBiasInitZero:
		b.biasZero, err = p.Bool()
	case PropName:
		b.name = p.Value
	case PropLoss:
		b.cost, err = ParseCost(p.Value)
	default:
		return errors.Wrapf(nn.ErrInvalidParameter, "layer %q (%s): unknown property %q", b.name, b.layerType, p.Key)
	}
	if err != nil {
		return errors.Wrapf(nn.ErrInvalidParameter, "layer %q: %s: %v", b.name, p, err)
	}
	return nil
}
