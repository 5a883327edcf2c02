package tensor

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

func (t *Tensor) vector() blas32.Vector {
	return blas32.Vector{N: len(t.data), Data: t.data, Inc: 1}
}

func (t *Tensor) general() blas32.General {
	return blas32.General{
		Rows:   t.dim.Rows(),
		Cols:   t.dim.Width,
		Data:   t.data,
		Stride: t.dim.Width,
	}
}

// AddScaled performs t += alpha * x in place.
func (t *Tensor) AddScaled(x *Tensor, alpha float32) error {
	if err := t.sameDim(x, "AddScaled"); err != nil {
		return err
	}
	blas32.Axpy(alpha, x.vector(), t.vector())
	return nil
}

// Scale multiplies every element by alpha in place.
func (t *Tensor) Scale(alpha float32) {
	if t.IsEmpty() {
		return
	}
	blas32.Scal(alpha, t.vector())
}

// L2Norm returns the Euclidean norm of all elements. Empty tensors have norm 0.
func (t *Tensor) L2Norm() float32 {
	if t.IsEmpty() {
		return 0
	}
	return blas32.Nrm2(t.vector())
}

// Sum returns the sum of all elements.
func (t *Tensor) Sum() float32 {
	var s float32
	for _, v := range t.Data() {
		s += v
	}
	return s
}

// Mean returns the mean of all elements. Empty tensors have mean 0.
func (t *Tensor) Mean() float32 {
	if t.IsEmpty() {
		return 0
	}
	return t.Sum() / float32(len(t.data))
}

// Add returns t + x as a new tensor.
func (t *Tensor) Add(x *Tensor) (*Tensor, error) {
	if err := t.sameDim(x, "Add"); err != nil {
		return nil, err
	}
	out := t.Clone()
	blas32.Axpy(1, x.vector(), out.vector())
	return out, nil
}

// Sub returns t - x as a new tensor.
func (t *Tensor) Sub(x *Tensor) (*Tensor, error) {
	if err := t.sameDim(x, "Sub"); err != nil {
		return nil, err
	}
	out := t.Clone()
	blas32.Axpy(-1, x.vector(), out.vector())
	return out, nil
}

// Mul returns the element-wise product t * x as a new tensor.
func (t *Tensor) Mul(x *Tensor) (*Tensor, error) {
	if err := t.sameDim(x, "Mul"); err != nil {
		return nil, err
	}
	out := t.Clone()
	for i, v := range x.data {
		out.data[i] *= v
	}
	return out, nil
}

// Apply returns a new tensor with fn applied to every element.
func (t *Tensor) Apply(fn func(float32) float32) *Tensor {
	out := t.Clone()
	for i, v := range out.data {
		out.data[i] = fn(v)
	}
	return out
}

// AddRow adds a 1-row tensor to every matrix row of t in place.
//
// row must have exactly one row and the same Width as t.
func (t *Tensor) AddRow(row *Tensor) error {
	if t.IsEmpty() || row.IsEmpty() {
		return errors.Wrapf(ErrDimMismatch, "AddRow: empty operand (%s, %s)", t, row)
	}
	if row.dim.Rows() != 1 || row.dim.Width != t.dim.Width {
		return errors.Wrapf(ErrDimMismatch, "AddRow: cannot broadcast %s over %s", row.dim, t.dim)
	}
	src := row.vector()
	for r := 0; r < t.dim.Rows(); r++ {
		blas32.Axpy(1, src, blas32.Vector{N: t.dim.Width, Data: t.Row(r), Inc: 1})
	}
	return nil
}

// SumRows sums all matrix rows of t into a single 1:1:1:Width tensor.
func (t *Tensor) SumRows() *Tensor {
	out := &Tensor{
		dim:  NewDim(1, 1, 1, t.dim.Width),
		data: make([]float32, t.dim.Width),
	}
	dst := out.vector()
	for r := 0; r < t.dim.Rows(); r++ {
		blas32.Axpy(1, blas32.Vector{N: t.dim.Width, Data: t.Row(r), Inc: 1}, dst)
	}
	return out
}

// MatMul multiplies t and x as matrices (Rows x Width each).
//
// When transT is false the result keeps the leading dims of t and takes
// its Width from the product; when transT is true the result is a
// 1:1:rows:cols matrix. Use transposes to compute the gradient products
// of a fully connected layer without materializing transposed copies:
//
//	out  = in · W          MatMul(W, false, false)
//	dW   = inᵀ · δ         in.MatMul(δ, true, false)
//	dIn  = δ · Wᵀ          δ.MatMul(W, false, true)
func (t *Tensor) MatMul(x *Tensor, transT, transX bool) (*Tensor, error) {
	if t.IsEmpty() || x.IsEmpty() {
		return nil, errors.Wrapf(ErrDimMismatch, "MatMul: empty operand (%s, %s)", t, x)
	}

	m, k := t.dim.Rows(), t.dim.Width
	if transT {
		m, k = k, m
	}
	kx, n := x.dim.Rows(), x.dim.Width
	if transX {
		kx, n = n, kx
	}
	if k != kx {
		return nil, errors.Wrapf(ErrDimMismatch, "MatMul: %s (trans=%v) x %s (trans=%v): inner extents %d != %d",
			t.dim, transT, x.dim, transX, k, kx)
	}

	outDim := NewDim(1, 1, m, n)
	if !transT {
		outDim = NewDim(t.dim.Batch, t.dim.Channel, t.dim.Height, n)
	}
	out, err := New(outDim)
	if err != nil {
		return nil, err
	}

	blas32.Gemm(transpose(transT), transpose(transX), 1, t.general(), x.general(), 0, out.general())
	return out, nil
}

func transpose(trans bool) blas.Transpose {
	if trans {
		return blas.Trans
	}
	return blas.NoTrans
}

// HasNaN reports whether any element is NaN or infinite.
func (t *Tensor) HasNaN() bool {
	for _, v := range t.Data() {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return true
		}
	}
	return false
}

// ArgMaxRows returns, for every matrix row, the column of its largest value.
func (t *Tensor) ArgMaxRows() []int {
	rows := t.dim.Rows()
	idx := make([]int, rows)
	for r := 0; r < rows; r++ {
		row := t.Row(r)
		best := 0
		for c, v := range row {
			if v > row[best] {
				best = c
			}
		}
		idx[r] = best
	}
	return idx
}
