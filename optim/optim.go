// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/nntrainer/internal/optim"
)

// Optimizer interface defines the common interface for all optimizers.
type Optimizer = optim.Optimizer

// Config holds the hyperparameters shared by all optimizers. Zero fields
// take the defaults of the selected optimizer.
type Config = optim.Config

// Type identifies an optimizer algorithm.
type Type = optim.Type

// Optimizer types.
const (
	TypeSGD     Type = optim.TypeSGD
	TypeAdam    Type = optim.TypeAdam
	TypeUnknown Type = optim.TypeUnknown
)

// New creates an optimizer of the given type.
func New(t Type, config Config) (Optimizer, error) {
	return optim.New(t, config)
}

// ParseType parses "sgd" or "adam".
func ParseType(s string) (Type, error) {
	return optim.ParseType(s)
}

// SGD (Stochastic Gradient Descent)

// SGD represents the SGD optimizer with optional momentum.
type SGD = optim.SGD

// NewSGD creates a new SGD optimizer.
//
// Example:
//
//	opt, err := optim.NewSGD(optim.Config{
//	    LearningRate: 0.01,
//	    Momentum:     0.9,
//	})
func NewSGD(config Config) (*SGD, error) {
	return optim.NewSGD(config)
}

// Adam (Adaptive Moment Estimation)

// Adam represents the Adam optimizer.
type Adam = optim.Adam

// NewAdam creates a new Adam optimizer with bias correction.
//
// Example:
//
//	opt, err := optim.NewAdam(optim.Config{
//	    LearningRate: 0.001,
//	    Beta1:        0.9,
//	    Beta2:        0.999,
//	    Epsilon:      1e-7,
//	})
func NewAdam(config Config) (*Adam, error) {
	return optim.NewAdam(config)
}
