// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/nntrainer/internal/tensor"
)

// Errors returned by shape validation and element-wise operations.
var (
	ErrInvalidDim  = tensor.ErrInvalidDim
	ErrDimMismatch = tensor.ErrDimMismatch
)

// Dim is the batch:channel:height:width shape of a tensor.
type Dim = tensor.Dim

// NewDim creates a shape. Use Validate to check it.
func NewDim(batch, channel, height, width int) Dim {
	return tensor.NewDim(batch, channel, height, width)
}

// ParseDim parses "b:c:h:w"; missing leading extents default to 1.
//
// Example:
//
//	d, err := tensor.ParseDim("1:28:28") // 1:1:28:28
func ParseDim(s string) (Dim, error) {
	return tensor.ParseDim(s)
}

// Tensor is a dense float32 tensor.
type Tensor = tensor.Tensor

// New allocates a zero-filled tensor.
func New(dim Dim) (*Tensor, error) {
	return tensor.New(dim)
}

// Empty returns a tensor without storage.
func Empty() *Tensor {
	return tensor.Empty()
}

// FromSlice wraps data, which must hold exactly dim.Len() values.
func FromSlice(dim Dim, data []float32) (*Tensor, error) {
	return tensor.FromSlice(dim, data)
}

// Initialize allocates a tensor filled according to init.
func Initialize(dim Dim, init Initializer) (*Tensor, error) {
	return tensor.Initialize(dim, init)
}

// Initializers

// Initializer selects how a freshly allocated tensor is filled.
type Initializer = tensor.Initializer

// Initializer constants.
const (
	InitZeros         Initializer = tensor.InitZeros
	InitOnes          Initializer = tensor.InitOnes
	InitLeCunNormal   Initializer = tensor.InitLeCunNormal
	InitLeCunUniform  Initializer = tensor.InitLeCunUniform
	InitXavierNormal  Initializer = tensor.InitXavierNormal
	InitXavierUniform Initializer = tensor.InitXavierUniform
	InitHeNormal      Initializer = tensor.InitHeNormal
	InitHeUniform     Initializer = tensor.InitHeUniform
	InitNone          Initializer = tensor.InitNone
	InitUnknown       Initializer = tensor.InitUnknown
)

// ParseInitializer parses an initializer name such as "xavier_uniform".
func ParseInitializer(s string) (Initializer, error) {
	return tensor.ParseInitializer(s)
}
