// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/nntrainer/internal/nn"
	"github.com/born-ml/nntrainer/internal/tensor"
)

// Errors

var (
	// ErrInvalidParameter covers bad shapes, missing inputs and unrecognized
	// configuration.
	ErrInvalidParameter = nn.ErrInvalidParameter

	// ErrNotInitialized is returned when storage or configuration is missing.
	ErrNotInitialized = nn.ErrNotInitialized

	// ErrIOFailure is returned when persisting or restoring values fails.
	ErrIOFailure = nn.ErrIOFailure
)

// VarGrad pairs a variable tensor with its gradient.
type VarGrad = nn.VarGrad

// NewVarGrad creates a VarGrad. With allocNow the variable and, when
// needGradient is set, the gradient are allocated immediately.
func NewVarGrad(dim tensor.Dim, init tensor.Initializer, needGradient, allocNow bool, name string) (*VarGrad, error) {
	return nn.NewVarGrad(dim, init, needGradient, allocNow, name)
}

// Regularizer selects the penalty a Weight adds to the loss.
type Regularizer = nn.Regularizer

// Regularizer constants.
const (
	RegularizerNone    Regularizer = nn.RegularizerNone
	RegularizerL2Norm  Regularizer = nn.RegularizerL2Norm
	RegularizerUnknown Regularizer = nn.RegularizerUnknown
)

// DefaultRegularizerConstant is the regularizer constant used when none is given.
const DefaultRegularizerConstant = nn.DefaultRegularizerConstant

// ParseRegularizer parses "none" or "l2norm".
func ParseRegularizer(s string) (Regularizer, error) {
	return nn.ParseRegularizer(s)
}

// Weight is a learnable parameter with regularization and optimizer state.
type Weight = nn.Weight

// Spec groups the construction parameters of a Weight.
type Spec = nn.Spec

// NewWeight creates a Weight. L2 norm regularization needs a positive
// constant.
func NewWeight(
	dim tensor.Dim,
	init tensor.Initializer,
	reg Regularizer,
	regConst float32,
	needGradient, allocNow bool,
	name string,
) (*Weight, error) {
	return nn.NewWeight(dim, init, reg, regConst, needGradient, allocNow, name)
}

// NewWeightFromSpec creates a Weight from a Spec.
func NewWeightFromSpec(spec Spec, allocNow bool) (*Weight, error) {
	return nn.NewWeightFromSpec(spec, allocNow)
}

// WeightView is a non-owning Weight over tensors managed elsewhere.
type WeightView = nn.WeightView

// BorrowWeight wraps externally owned tensors. g may be nil for a frozen
// parameter.
func BorrowWeight(v, g *tensor.Tensor, name string) (*WeightView, error) {
	return nn.BorrowWeight(v, g, name)
}

// Trainable is the surface optimizers update.
type Trainable = nn.Trainable
