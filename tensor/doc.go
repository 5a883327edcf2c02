// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the dense float32 tensors the trainer works on.
//
// # Overview
//
// A Tensor is a contiguous float32 buffer with a four-extent shape,
// batch:channel:height:width. Layers treat the batch extent as rows and
// the remaining extents as the features of one sample.
//
// # Basic Usage
//
//	x, err := tensor.FromSlice(tensor.NewDim(2, 1, 1, 3), []float32{
//	    1, 2, 3,
//	    4, 5, 6,
//	})
//	if err != nil {
//	    return err
//	}
//	w, _ := tensor.Initialize(tensor.NewDim(1, 1, 3, 4), tensor.InitXavierUniform)
//	y, err := x.MatMul(w, false, false) // 2:1:1:4
//
// # Shapes
//
// Shapes are written batch:channel:height:width and parsed by ParseDim.
// Missing leading extents default to 1, so "784" is 1:1:1:784.
//
// # Persistence
//
// Save and Read move the raw little-endian float32 buffer. SaveHalf and
// ReadHalf use IEEE 754 binary16 and are lossy.
//
// # Initializers
//
// Scaled initializers (LeCun, Xavier, He) read fan-in from the height
// extent and fan-out from the width extent.
package tensor
