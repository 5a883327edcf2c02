package optim

import (
	"github.com/born-ml/nntrainer/internal/nn"
)

// SGD implements Stochastic Gradient Descent with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
//
// The velocity lives in the weight's first optimizer variable.
//
// Example:
//
//	sgd, err := optim.NewSGD(optim.Config{
//	    LearningRate: 0.01,
//	    Momentum:     0.9,
//	})
type SGD struct {
	config Config
}

// NewSGD creates a new SGD optimizer.
//
// Default hyperparameters:
//   - LearningRate: 0.01
//   - Momentum: 0 (plain gradient descent)
func NewSGD(config Config) (*SGD, error) {
	if config.LearningRate == 0 {
		config.LearningRate = 0.01
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &SGD{config: config}, nil
}

// Type returns TypeSGD.
func (s *SGD) Type() Type {
	return TypeSGD
}

// Config returns the effective configuration.
func (s *SGD) Config() Config {
	return s.config
}

// LearningRate returns the decayed learning rate at iteration.
func (s *SGD) LearningRate(iteration int) float32 {
	return s.config.decayedLR(iteration)
}

// RegisterWeight registers the velocity buffer when momentum is enabled.
func (s *SGD) RegisterWeight(w nn.Trainable) {
	if s.config.Momentum != 0 {
		w.AddOptimizerVariable(w.Dim())
	}
}

// Apply performs one SGD step on w.
func (s *SGD) Apply(w nn.Trainable, iteration int) error {
	if !w.NeedsGradient() {
		return nil
	}
	lr := s.LearningRate(iteration)

	if s.config.Momentum == 0 {
		// Simple SGD: param -= lr * grad
		return w.ApplyGradient(lr)
	}

	if err := checkState(w, 1, TypeSGD); err != nil {
		return err
	}
	velocity := w.OptimizerVariable(0)
	velocity.Scale(s.config.Momentum)
	if err := velocity.AddScaled(w.Gradient(), 1); err != nil {
		return err
	}
	return w.Variable().AddScaled(velocity, -lr)
}

// SetProperty accepts learning_rate, decay_rate, decay_steps and momentum.
func (s *SGD) SetProperty(values []string) error {
	return s.config.setProperty(TypeSGD, values)
}
