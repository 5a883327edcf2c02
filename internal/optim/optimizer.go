// Package optim implements the update rules that turn accumulated
// gradients into new weight values.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with optional momentum
//   - Adam: Adaptive Moment Estimation
//
// Optimizers keep their per-weight state (velocity, moments) in the
// weight's optimizer variables: RegisterWeight declares the shapes and the
// weight materializes them with its gradient.
//
// Example usage:
//
//	opt, err := optim.New(optim.TypeAdam, optim.Config{LearningRate: 0.001})
//
//	// During layer initialization
//	opt.RegisterWeight(w)
//	err = w.AllocateGradient()
//
//	// After backward propagation
//	err = w.CalcRegularizationGradient()
//	err = opt.Apply(w, iteration)
package optim

import (
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/nntrainer/internal/nn"
	"github.com/born-ml/nntrainer/internal/property"
)

// Type identifies an optimizer algorithm.
type Type int

// Supported optimizers.
const (
	TypeSGD Type = iota
	TypeAdam
	TypeUnknown
)

// String returns the configuration name of the optimizer type.
func (t Type) String() string {
	switch t {
	case TypeSGD:
		return "sgd"
	case TypeAdam:
		return "adam"
	default:
		return "unknown"
	}
}

// ParseType parses "sgd" or "adam".
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sgd":
		return TypeSGD, nil
	case "adam":
		return TypeAdam, nil
	default:
		return TypeUnknown, errors.Wrapf(nn.ErrInvalidParameter, "unknown optimizer %q", s)
	}
}

// Optimizer is the base interface for all optimization algorithms.
//
// All optimizers must implement:
//   - RegisterWeight: declare the optimizer variables a weight needs
//   - Apply: update one weight in place from its gradient
//   - LearningRate: the (possibly decayed) learning rate for an iteration
type Optimizer interface {
	// Type returns the algorithm implemented by the optimizer.
	Type() Type

	// Config returns the effective configuration, defaults included.
	Config() Config

	// LearningRate returns the learning rate used at iteration (0-based).
	LearningRate(iteration int) float32

	// RegisterWeight registers the optimizer variables w needs. The weight
	// materializes them when its gradient is allocated.
	RegisterWeight(w nn.Trainable)

	// Apply updates the variable of w from its gradient.
	//
	// iteration counts the steps already taken, starting at 0. Weights
	// that do not need a gradient are left untouched.
	Apply(w nn.Trainable, iteration int) error

	// SetProperty configures the optimizer from key=value tokens.
	SetProperty(values []string) error
}

// Config holds the hyperparameters shared by all optimizers.
//
// Zero fields take the defaults of the selected optimizer.
type Config struct {
	LearningRate float32 // Learning rate (default: 0.01 for SGD, 0.001 for Adam)
	DecayRate    float32 // Exponential decay base, disabled when 0
	DecaySteps   int     // Iterations per decay period, disabled when 0

	Momentum float32 // SGD momentum factor (default: 0, range: [0, 1))

	Beta1   float32 // Adam first moment decay (default: 0.9)
	Beta2   float32 // Adam second moment decay (default: 0.999)
	Epsilon float32 // Adam numerical stability term (default: 1e-7)
}

// New creates an optimizer of the given type.
func New(t Type, config Config) (Optimizer, error) {
	switch t {
	case TypeSGD:
		return NewSGD(config)
	case TypeAdam:
		return NewAdam(config)
	default:
		return nil, errors.Wrapf(nn.ErrInvalidParameter, "unsupported optimizer type %s", t)
	}
}

// decayedLR implements lr * decay_rate^(iteration / decay_steps).
func (c Config) decayedLR(iteration int) float32 {
	if c.DecayRate <= 0 || c.DecaySteps <= 0 {
		return c.LearningRate
	}
	exp := float64(iteration) / float64(c.DecaySteps)
	return c.LearningRate * float32(math.Pow(float64(c.DecayRate), exp))
}

func (c Config) validate() error {
	switch {
	case c.LearningRate <= 0:
		return errors.Wrapf(nn.ErrInvalidParameter, "learning rate must be positive, got %g", c.LearningRate)
	case c.DecayRate < 0 || c.DecaySteps < 0:
		return errors.Wrapf(nn.ErrInvalidParameter, "decay rate and steps must not be negative")
	case c.Momentum < 0 || c.Momentum >= 1:
		return errors.Wrapf(nn.ErrInvalidParameter, "momentum must be in [0, 1), got %g", c.Momentum)
	case c.Beta1 < 0 || c.Beta1 >= 1 || c.Beta2 < 0 || c.Beta2 >= 1:
		return errors.Wrapf(nn.ErrInvalidParameter, "betas must be in [0, 1), got %g, %g", c.Beta1, c.Beta2)
	case c.Epsilon < 0:
		return errors.Wrapf(nn.ErrInvalidParameter, "epsilon must not be negative, got %g", c.Epsilon)
	}
	return nil
}

// setProperty applies key=value tokens to c. Keys that do not apply to the
// optimizer type t are rejected.
func (c *Config) setProperty(t Type, values []string) error {
	props, err := property.ParseAll(values)
	if err != nil {
		return errors.Wrapf(nn.ErrInvalidParameter, "%s: %v", t, err)
	}

	next := *c
	for _, p := range props {
		if err := next.set(t, p); err != nil {
			return err
		}
	}
	if err := next.validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

func (c *Config) set(t Type, p property.Property) error {
	var err error
	switch {
	case p.Key == "learning_rate":
		c.LearningRate, err = p.Float32()
	case p.Key == "decay_rate":
		c.DecayRate, err = p.Float32()
	case p.Key == "decay_steps":
		c.DecaySteps, err = p.PositiveInt()
	case p.Key == "momentum" && t == TypeSGD:
		c.Momentum, err = p.Float32()
	case p.Key == "beta1" && t == TypeAdam:
		c.Beta1, err = p.Float32()
	case p.Key == "beta2" && t == TypeAdam:
		c.Beta2, err = p.Float32()
	case p.Key == "epsilon" && t == TypeAdam:
		c.Epsilon, err = p.Float32()
	default:
		return errors.Wrapf(nn.ErrInvalidParameter, "%s: unknown property %q", t, p.Key)
	}
	if err != nil {
		return errors.Wrapf(nn.ErrInvalidParameter, "%s: %v", t, err)
	}
	return nil
}

// checkState verifies w carries the optimizer variables Apply needs.
func checkState(w nn.Trainable, want int, t Type) error {
	if w.Variable().IsEmpty() || w.Gradient().IsEmpty() {
		return errors.Wrapf(nn.ErrNotInitialized, "%s: weight %q has no allocated variable/gradient", t, w.Name())
	}
	if got := w.NumOptimizerVariables(); got < want {
		return errors.Wrapf(nn.ErrNotInitialized, "%s: weight %q has %d optimizer variables, want %d (was it registered?)",
			t, w.Name(), got, want)
	}
	return nil
}
