package optim

import (
	"math"

	"github.com/born-ml/nntrainer/internal/nn"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)  // Parameter update
//
// t is iteration+1. The moments live in the weight's optimizer variables 0
// (m) and 1 (v).
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam struct {
	config Config
}

// NewAdam creates a new Adam optimizer.
//
// Default hyperparameters:
//   - LearningRate: 0.001
//   - Beta1: 0.9
//   - Beta2: 0.999
//   - Epsilon: 1e-7
func NewAdam(config Config) (*Adam, error) {
	if config.LearningRate == 0 {
		config.LearningRate = 0.001
	}
	if config.Beta1 == 0 {
		config.Beta1 = 0.9
	}
	if config.Beta2 == 0 {
		config.Beta2 = 0.999
	}
	if config.Epsilon == 0 {
		config.Epsilon = 1e-7
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &Adam{config: config}, nil
}

// Type returns TypeAdam.
func (a *Adam) Type() Type {
	return TypeAdam
}

// Config returns the effective configuration.
func (a *Adam) Config() Config {
	return a.config
}

// LearningRate returns the decayed learning rate at iteration.
func (a *Adam) LearningRate(iteration int) float32 {
	return a.config.decayedLR(iteration)
}

// RegisterWeight registers the first and second moment buffers.
func (a *Adam) RegisterWeight(w nn.Trainable) {
	w.AddOptimizerVariable(w.Dim())
	w.AddOptimizerVariable(w.Dim())
}

// Apply performs one Adam step on w.
func (a *Adam) Apply(w nn.Trainable, iteration int) error {
	if !w.NeedsGradient() {
		return nil
	}
	if err := checkState(w, 2, TypeAdam); err != nil {
		return err
	}

	step := float64(iteration + 1)
	biasCorrection1 := float32(1.0 - math.Pow(float64(a.config.Beta1), step))
	biasCorrection2 := float32(1.0 - math.Pow(float64(a.config.Beta2), step))
	lr := a.LearningRate(iteration)
	beta1, beta2, eps := a.config.Beta1, a.config.Beta2, a.config.Epsilon

	gradData := w.Gradient().Data()
	mData := w.OptimizerVariable(0).Data()
	vData := w.OptimizerVariable(1).Data()
	paramData := w.Variable().Data()

	for i := range paramData {
		g := gradData[i]

		mData[i] = beta1*mData[i] + (1.0-beta1)*g
		vData[i] = beta2*vData[i] + (1.0-beta2)*g*g

		mHat := mData[i] / biasCorrection1
		vHat := vData[i] / biasCorrection2

		paramData[i] -= lr * mHat / (float32(math.Sqrt(float64(vHat))) + eps)
	}
	return nil
}

// SetProperty accepts learning_rate, decay_rate, decay_steps, beta1, beta2
// and epsilon.
func (a *Adam) SetProperty(values []string) error {
	return a.config.setProperty(TypeAdam, values)
}
