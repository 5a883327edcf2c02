// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimization algorithms for training neural networks.
//
// # Available Optimizers
//
//   - SGD: stochastic gradient descent with optional momentum
//   - Adam: adaptive moment estimation with bias correction
//
// # Basic Usage
//
//	opt, err := optim.NewAdam(optim.Config{LearningRate: 0.001})
//	if err != nil {
//	    return err
//	}
//	// or from key=value tokens
//	err = opt.SetProperty([]string{"beta1=0.9", "decay_rate=0.96", "decay_steps=1000"})
//
// Layers register their weights with the optimizer when they are
// initialized and call Apply after every backward pass, so most callers
// only hand the optimizer to a network:
//
//	net.SetOptimizer(opt)
//
// # Learning Rate Decay
//
// With decay_rate and decay_steps set, the learning rate at iteration i is
// lr * decay_rate^(i / decay_steps).
package optim
