// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package network trains stacks of layers.
//
// Example:
//
//	net := network.New(network.Config{BatchSize: 32, Cost: layers.CostCrossEntropy})
//	in, _ := layers.NewFromProperties(layers.TypeInput, []string{"input_shape=1:1:784"})
//	out, _ := layers.NewFromProperties(layers.TypeFullyConnected, []string{"unit=10", "activation=softmax"})
//	net.AddLayer(in, out)
//	net.SetOptimizer(opt)
//	if err := net.Initialize(); err != nil {
//	    return err
//	}
//
//	src, _ := network.NewMemorySource(images, labels, tensor.NewDim(1, 1, 1, 784), 32, true, seed)
//	history, err := net.Train(ctx, src, 10, nil)
//
// Model descriptions in YAML are handled by LoadConfig.
package network

import (
	"github.com/born-ml/nntrainer/internal/config"
	"github.com/born-ml/nntrainer/internal/network"
	"github.com/born-ml/nntrainer/internal/tensor"
)

// Network is an ordered stack of layers trained with one optimizer.
type Network = network.Network

// Config holds the network-wide settings.
type Config = network.Config

// New creates an empty network.
func New(config Config) *Network {
	return network.New(config)
}

// Training

// Step describes one finished training step.
type Step = network.Step

// EpochStats summarizes one training epoch.
type EpochStats = network.EpochStats

// Metrics summarizes an evaluation pass.
type Metrics = network.Metrics

// Data

// DataSource yields batches; Next returns io.EOF at the end of an epoch.
type DataSource = network.DataSource

// MemorySource serves batches from samples held in memory.
type MemorySource = network.MemorySource

// NewMemorySource creates a source over inputs and labels. The incomplete
// trailing batch of an epoch is dropped.
func NewMemorySource(inputs, labels [][]float32, shape tensor.Dim, batch int, shuffle bool, seed uint64) (*MemorySource, error) {
	return network.NewMemorySource(inputs, labels, shape, batch, shuffle, seed)
}

// Split holds out the trailing validationRatio of the samples.
func Split(inputs, labels [][]float32, validationRatio float32) (trainIn, trainLabels, valIn, valLabels [][]float32) {
	return network.Split(inputs, labels, validationRatio)
}

// Model descriptions

// ModelConfig is a parsed YAML model description.
type ModelConfig = config.Config

// LoadConfig reads a YAML model description. Call Build on the result to
// get an initialized network.
func LoadConfig(path string) (*ModelConfig, error) {
	return config.Load(path)
}
