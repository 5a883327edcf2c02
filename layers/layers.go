// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package layers provides the trainable layers of the framework.
//
// Layers are configured with key=value properties, initialized with their
// input geometry and then driven by Forwarding and Backwarding:
//
//	fc, err := layers.NewFromProperties(layers.TypeFullyConnected,
//	    []string{"unit=10", "activation=softmax", "weight_initializer=he_uniform"})
//	if err != nil {
//	    return err
//	}
//	fc.SetOptimizer(opt)
//	fc.SetCost(layers.CostCrossEntropy)
//	err = fc.Initialize(32, 784, 10, true, false, tensor.InitXavierUniform)
//
// A network.Network does the wiring for a whole stack.
package layers

import (
	"github.com/born-ml/nntrainer/internal/layers"
)

// Layer is the contract every layer variant implements.
type Layer = layers.Layer

// Type tags the concrete layer variant.
type Type = layers.Type

// Layer types.
const (
	TypeInput          Type = layers.TypeInput
	TypeFullyConnected Type = layers.TypeFullyConnected
	TypeBatchNorm      Type = layers.TypeBatchNorm
	TypeUnknown        Type = layers.TypeUnknown
)

// ParseType parses a layer type name; "fc" and "bn" are accepted aliases.
func ParseType(s string) (Type, error) {
	return layers.ParseType(s)
}

// New creates an unconfigured layer of type t.
func New(t Type) (Layer, error) {
	return layers.New(t)
}

// NewFromProperties creates a layer of type t configured by values.
func NewFromProperties(t Type, values []string) (Layer, error) {
	return layers.NewFromProperties(t, values)
}

// Variants

// Input feeds samples into the network, optionally normalized.
type Input = layers.Input

// NewInput creates an input layer.
func NewInput() *Input {
	return layers.NewInput()
}

// FullyConnected computes act(x·W + b).
type FullyConnected = layers.FullyConnected

// NewFullyConnected creates a fully connected layer. Set its units with
// the "unit" property.
func NewFullyConnected() *FullyConnected {
	return layers.NewFullyConnected()
}

// BatchNorm normalizes every feature over the batch.
type BatchNorm = layers.BatchNorm

// NewBatchNorm creates a batch normalization layer with the default
// epsilon and momentum.
func NewBatchNorm() *BatchNorm {
	return layers.NewBatchNorm()
}

// Batch normalization defaults.
const (
	DefaultBNEpsilon  = layers.DefaultBNEpsilon
	DefaultBNMomentum = layers.DefaultBNMomentum
)

// Activations

// Activation selects the non-linearity applied to a layer's output.
type Activation = layers.Activation

// Activation constants.
const (
	ActivationTanh    Activation = layers.ActivationTanh
	ActivationSigmoid Activation = layers.ActivationSigmoid
	ActivationReLU    Activation = layers.ActivationReLU
	ActivationSoftmax Activation = layers.ActivationSoftmax
	ActivationNone    Activation = layers.ActivationNone
	ActivationUnknown Activation = layers.ActivationUnknown
)

// ParseActivation parses an activation name.
func ParseActivation(s string) (Activation, error) {
	return layers.ParseActivation(s)
}

// Costs

// Cost selects the loss computed by the terminal layer.
type Cost = layers.Cost

// Cost constants.
const (
	CostNone         Cost = layers.CostNone
	CostMSE          Cost = layers.CostMSE
	CostCrossEntropy Cost = layers.CostCrossEntropy
	CostUnknown      Cost = layers.CostUnknown
)

// ParseCost parses "mse" or "cross".
func ParseCost(s string) (Cost, error) {
	return layers.ParseCost(s)
}

// WeightDecay configures the L2 penalty on a layer's weight matrix.
type WeightDecay = layers.WeightDecay

// WeightDecayType selects how weight decay is applied.
type WeightDecayType = layers.WeightDecayType

// Weight decay types.
const (
	WeightDecayNone   WeightDecayType = layers.WeightDecayNone
	WeightDecayL2Norm WeightDecayType = layers.WeightDecayL2Norm
)
