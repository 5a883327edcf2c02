// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides learnable parameters and the error taxonomy of the
// trainer.
//
// # Parameters
//
// A VarGrad pairs a variable tensor with its gradient. A Weight adds a
// regularization policy and the auxiliary tensors an optimizer keeps per
// parameter (momentum, Adam moments). Storage is allocated lazily:
//
//	w, err := nn.NewWeight(tensor.NewDim(1, 1, 784, 10), tensor.InitXavierUniform,
//	    nn.RegularizerL2Norm, 0.001, true, false, "fc0:weight")
//	if err != nil {
//	    return err
//	}
//	w.AddOptimizerVariable(w.Dim()) // registered now, allocated with the gradient
//	if err := w.AllocateVariable(); err != nil {
//	    return err
//	}
//	if err := w.AllocateGradient(); err != nil {
//	    return err
//	}
//
// BorrowWeight builds a non-owning view over tensors managed elsewhere.
//
// # Errors
//
// Every failure wraps one of ErrInvalidParameter, ErrNotInitialized or
// ErrIOFailure; match them with errors.Is.
package nn
