package layers_test

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/nntrainer/internal/layers"
	"github.com/born-ml/nntrainer/internal/nn"
	"github.com/born-ml/nntrainer/internal/optim"
	"github.com/born-ml/nntrainer/internal/tensor"
)

func mustTensor(t *testing.T, dim tensor.Dim, data []float32) *tensor.Tensor {
	t.Helper()
	x, err := tensor.FromSlice(dim, data)
	require.NoError(t, err)
	return x
}

func randomTensor(t *testing.T, dim tensor.Dim) *tensor.Tensor {
	t.Helper()
	x, err := tensor.Initialize(dim, tensor.InitXavierUniform)
	require.NoError(t, err)
	return x
}

func newSGD(t *testing.T, lr float32) optim.Optimizer {
	t.Helper()
	opt, err := optim.NewSGD(optim.Config{LearningRate: lr})
	require.NoError(t, err)
	return opt
}

// newFC builds an initialized fully connected layer.
func newFC(t *testing.T, batch, in, units int, props ...string) *layers.FullyConnected {
	t.Helper()
	l := layers.NewFullyConnected()
	require.NoError(t, l.SetProperty(append([]string{"name=fc"}, props...)))
	require.NoError(t, l.SetOptimizer(newSGD(t, 0.1)))
	require.NoError(t, l.Initialize(batch, in, units, false, false, tensor.InitXavierUniform))
	return l
}

func TestInitialize_RejectsNonPositiveExtents(t *testing.T) {
	for _, l := range []layers.Layer{layers.NewInput(), layers.NewFullyConnected(), layers.NewBatchNorm()} {
		for _, width := range []int{0, -3} {
			err := l.Initialize(4, 1, width, false, false, tensor.InitZeros)
			assert.ErrorIs(t, err, nn.ErrInvalidParameter, "%s width=%d", l.Type(), width)
		}
		assert.ErrorIs(t, l.Initialize(0, 1, 5, false, false, tensor.InitZeros), nn.ErrInvalidParameter)
		assert.ErrorIs(t, l.CheckValidation(), nn.ErrInvalidParameter)
	}
}

func TestFullyConnected_ForwardShapes(t *testing.T) {
	l := newFC(t, 4, 5, 3, "activation=sigmoid")

	assert.Equal(t, tensor.NewDim(4, 1, 5, 3), l.Dim())
	assert.Equal(t, tensor.NewDim(4, 1, 1, 3), l.OutputDim())
	require.Len(t, l.Weights(), 2)
	assert.Equal(t, tensor.NewDim(1, 1, 5, 3), l.Weights()[0].Dim())
	assert.Equal(t, tensor.NewDim(1, 1, 1, 3), l.Weights()[1].Dim())

	// 4 samples of 1:1:5 features are accepted in any per-sample layout.
	out, err := l.Forwarding(randomTensor(t, tensor.NewDim(4, 1, 1, 5)))
	require.NoError(t, err)
	assert.Equal(t, tensor.NewDim(4, 1, 1, 3), out.Dim())
	for _, v := range out.Data() {
		assert.True(t, v > 0 && v < 1, "sigmoid output %f out of range", v)
	}

	_, err = l.Forwarding(randomTensor(t, tensor.NewDim(4, 1, 1, 6)))
	assert.ErrorIs(t, err, nn.ErrInvalidParameter)
}

func TestFullyConnected_ForwardValues(t *testing.T) {
	l := newFC(t, 1, 2, 2, "activation=none")
	w, b := l.Weights()[0].Variable(), l.Weights()[1].Variable()
	copy(w.Data(), []float32{1, 2, 3, 4})
	copy(b.Data(), []float32{0.5, -0.5})

	out, err := l.Forwarding(mustTensor(t, tensor.NewDim(1, 1, 1, 2), []float32{1, 1}))
	require.NoError(t, err)
	// [1 1] · [[1 2] [3 4]] + [0.5 -0.5] = [4.5 5.5]
	assert.Equal(t, []float32{4.5, 5.5}, out.Data())
}

func TestFullyConnected_BiasInitZero(t *testing.T) {
	l := newFC(t, 2, 3, 4, "activation=relu", "bias_init_zero=true", "weight_initializer=he_uniform")
	assert.Equal(t, float32(0), l.Weights()[1].Variable().L2Norm())
	assert.NotEqual(t, float32(0), l.Weights()[0].Variable().L2Norm())
	assert.Equal(t, tensor.InitHeUniform, l.Weights()[0].Initializer())
}

func TestFullyConnected_WeightDecay(t *testing.T) {
	l := newFC(t, 2, 3, 4, "activation=tanh", "weight_decay=l2norm", "weight_decay_lambda=0.01")
	weight, bias := l.Weights()[0], l.Weights()[1]
	assert.True(t, weight.IsRegularizerL2Norm())
	assert.Equal(t, float32(0.01), weight.RegularizerConstant())
	assert.False(t, bias.IsRegularizerL2Norm())

	bad := layers.NewFullyConnected()
	require.NoError(t, bad.SetProperty([]string{"activation=tanh", "weight_regularizer=l2norm"}))
	assert.ErrorIs(t, bad.Initialize(2, 3, 4, false, false, tensor.InitZeros), nn.ErrInvalidParameter)
}

// TestFullyConnected_GradientCheck compares the weight gradient applied by
// plain SGD with lr=1 against central differences of the MSE loss.
func TestFullyConnected_GradientCheck(t *testing.T) {
	l := layers.NewFullyConnected()
	require.NoError(t, l.SetProperty([]string{"activation=tanh", "loss=mse"}))
	require.NoError(t, l.SetOptimizer(newSGD(t, 1)))
	require.NoError(t, l.Initialize(3, 4, 2, true, false, tensor.InitXavierNormal))
	require.NoError(t, l.CheckValidation())

	x := randomTensor(t, tensor.NewDim(3, 1, 1, 4))
	label := mustTensor(t, tensor.NewDim(3, 1, 1, 2), []float32{0.5, -0.5, 0.1, 0.9, -0.3, 0.2})

	w := l.Weights()[0].Variable()
	loss := func() float32 {
		_, err := l.ForwardingWithLabel(x, label)
		require.NoError(t, err)
		return l.Loss()
	}

	const eps = 1e-2
	numeric := make([]float32, w.Len())
	for i := range w.Data() {
		orig := w.Data()[i]
		w.Data()[i] = orig + eps
		plus := loss()
		w.Data()[i] = orig - eps
		minus := loss()
		w.Data()[i] = orig
		numeric[i] = (plus - minus) / (2 * eps)
	}

	before := w.Clone()
	loss()
	_, err := l.Backwarding(nil, 0)
	require.NoError(t, err)

	for i := range numeric {
		analytic := before.Data()[i] - w.Data()[i]
		assert.InDelta(t, numeric[i], analytic, 2e-3, "weight element %d", i)
	}
}

func TestFullyConnected_BackwardingValidatesBeforeMutating(t *testing.T) {
	l := newFC(t, 2, 3, 2, "activation=sigmoid")

	_, err := l.Backwarding(randomTensor(t, tensor.NewDim(2, 1, 1, 2)), 0)
	assert.ErrorIs(t, err, nn.ErrNotInitialized, "no forward pass yet")

	_, err = l.Forwarding(randomTensor(t, tensor.NewDim(2, 1, 1, 3)))
	require.NoError(t, err)

	before := l.Weights()[0].Variable().Clone()
	_, err = l.Backwarding(randomTensor(t, tensor.NewDim(2, 1, 1, 5)), 0)
	assert.ErrorIs(t, err, nn.ErrInvalidParameter)
	assert.Equal(t, before.Data(), l.Weights()[0].Variable().Data())
	assert.Equal(t, float32(0), l.Weights()[0].Gradient().L2Norm())

	dIn, err := l.Backwarding(randomTensor(t, tensor.NewDim(2, 1, 1, 2)), 0)
	require.NoError(t, err)
	assert.Equal(t, tensor.NewDim(2, 1, 1, 3), dIn.Dim())
}

func TestFullyConnected_BackwardingNeedsOptimizer(t *testing.T) {
	l := layers.NewFullyConnected()
	require.NoError(t, l.SetProperty([]string{"activation=relu"}))
	require.NoError(t, l.Initialize(1, 2, 2, false, false, tensor.InitOnes))
	_, err := l.Forwarding(randomTensor(t, tensor.NewDim(1, 1, 1, 2)))
	require.NoError(t, err)

	_, err = l.Backwarding(randomTensor(t, tensor.NewDim(1, 1, 1, 2)), 0)
	assert.ErrorIs(t, err, nn.ErrNotInitialized)
}

func TestFullyConnected_UnlabeledForwardDropsLabel(t *testing.T) {
	l := layers.NewFullyConnected()
	require.NoError(t, l.SetProperty([]string{"activation=none", "loss=mse"}))
	require.NoError(t, l.SetOptimizer(newSGD(t, 0.1)))
	require.NoError(t, l.Initialize(2, 3, 2, true, false, tensor.InitXavierUniform))

	x := randomTensor(t, tensor.NewDim(2, 1, 1, 3))
	label := mustTensor(t, tensor.NewDim(2, 1, 1, 2), []float32{1, 0, 0, 1})
	_, err := l.ForwardingWithLabel(x, label)
	require.NoError(t, err)
	require.Greater(t, l.Loss(), float32(0))

	_, err = l.Forwarding(randomTensor(t, tensor.NewDim(2, 1, 1, 3)))
	require.NoError(t, err)
	assert.Zero(t, l.Loss())

	before := l.Weights()[0].Variable().Clone()
	_, err = l.Backwarding(nil, 0)
	assert.ErrorIs(t, err, nn.ErrNotInitialized)
	assert.Equal(t, before.Data(), l.Weights()[0].Variable().Data())
}

func TestFullyConnected_LateOptimizerRegistration(t *testing.T) {
	l := layers.NewFullyConnected()
	require.NoError(t, l.SetProperty([]string{"activation=relu"}))
	require.NoError(t, l.Initialize(1, 2, 2, false, false, tensor.InitOnes))
	for _, w := range l.Weights() {
		assert.Equal(t, 0, w.NumOptimizerVariables())
	}

	adam, err := optim.NewAdam(optim.Config{})
	require.NoError(t, err)
	require.NoError(t, l.SetOptimizer(adam))
	for _, w := range l.Weights() {
		assert.Equal(t, 2, w.NumOptimizerVariables(), w.Name())
	}

	// Switching optimizer replaces the state instead of appending to it.
	require.NoError(t, l.SetOptimizer(newSGD(t, 0.1)))
	for _, w := range l.Weights() {
		assert.Equal(t, 0, w.NumOptimizerVariables(), w.Name())
	}
	assert.ErrorIs(t, l.SetOptimizer(nil), nn.ErrInvalidParameter)
}

func TestFullyConnected_TrainsLogisticRegression(t *testing.T) {
	l := layers.NewFullyConnected()
	require.NoError(t, l.SetProperty([]string{"activation=sigmoid", "loss=cross"}))
	require.NoError(t, l.SetOptimizer(newSGD(t, 1)))
	require.NoError(t, l.Initialize(4, 2, 1, true, true, tensor.InitXavierUniform))

	// Logical OR.
	x := mustTensor(t, tensor.NewDim(4, 1, 1, 2), []float32{0, 0, 0, 1, 1, 0, 1, 1})
	y := mustTensor(t, tensor.NewDim(4, 1, 1, 1), []float32{0, 1, 1, 1})

	_, err := l.ForwardingWithLabel(x, y)
	require.NoError(t, err)
	initial := l.Loss()

	for i := 0; i < 500; i++ {
		_, err := l.ForwardingWithLabel(x, y)
		require.NoError(t, err)
		_, err = l.Backwarding(nil, i)
		require.NoError(t, err)
	}

	out, err := l.ForwardingWithLabel(x, y)
	require.NoError(t, err)
	assert.Less(t, l.Loss(), initial)
	assert.Less(t, l.Loss(), float32(0.2))
	assert.Less(t, out.Data()[0], float32(0.5))
	for _, v := range out.Data()[1:] {
		assert.Greater(t, v, float32(0.5))
	}
}

func TestFullyConnected_CrossEntropyNeedsProbabilities(t *testing.T) {
	l := layers.NewFullyConnected()
	require.NoError(t, l.SetProperty([]string{"activation=relu", "loss=cross"}))
	require.NoError(t, l.Initialize(1, 2, 2, true, false, tensor.InitOnes))
	assert.ErrorIs(t, l.CheckValidation(), nn.ErrInvalidParameter)

	fc := layers.NewFullyConnected()
	require.NoError(t, fc.Initialize(1, 2, 2, false, false, tensor.InitOnes))
	assert.ErrorIs(t, fc.CheckValidation(), nn.ErrInvalidParameter, "activation not set")
}

func TestSaveRead_RoundTrip(t *testing.T) {
	for _, newLayer := range []func() layers.Layer{
		func() layers.Layer { return layers.NewFullyConnected() },
		func() layers.Layer { return layers.NewBatchNorm() },
	} {
		src := newLayer()
		require.NoError(t, src.Initialize(2, 1, 5, false, false, tensor.InitXavierUniform))
		// Move BN parameters away from their ones/zeros defaults.
		for _, w := range src.Weights() {
			require.NoError(t, w.Variable().AddScaled(randomTensor(t, w.Dim()), 1))
		}

		var buf bytes.Buffer
		require.NoError(t, src.Save(&buf))
		saved := append([]byte(nil), buf.Bytes()...)

		dst := newLayer()
		require.NoError(t, dst.Initialize(2, 1, 5, false, false, tensor.InitZeros))
		require.NoError(t, dst.Read(bytes.NewReader(saved)))

		require.Len(t, dst.Weights(), len(src.Weights()))
		for i, w := range src.Weights() {
			assert.Equal(t, w.Variable().Data(), dst.Weights()[i].Variable().Data(), "%s weight %d", src.Type(), i)
		}

		var again bytes.Buffer
		require.NoError(t, dst.Save(&again))
		assert.Equal(t, saved, again.Bytes())

		// A truncated stream fails with an I/O error and leaves every
		// weight as it was.
		for _, w := range dst.Weights() {
			w.Variable().SetZero()
		}
		err := dst.Read(bytes.NewReader(saved[:len(saved)-3]))
		assert.ErrorIs(t, err, nn.ErrIOFailure)
		for _, w := range dst.Weights() {
			assert.Zero(t, w.Variable().L2Norm(), "%s %s", src.Type(), w.Name())
		}
	}
}

func TestSaveRead_Order(t *testing.T) {
	l := layers.NewBatchNorm()
	require.NoError(t, l.Initialize(2, 1, 1, false, false, tensor.InitZeros))
	for i, w := range l.Weights() {
		w.Variable().Fill(float32(i + 1))
	}

	var buf bytes.Buffer
	require.NoError(t, l.Save(&buf))
	require.Equal(t, 16, buf.Len())

	// gamma, beta, running mean, running variance
	values := make([]float32, 4)
	for i := range values {
		b := buf.Bytes()[4*i : 4*i+4]
		values[i] = math.Float32frombits(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
	}
	assert.Equal(t, []float32{1, 2, 3, 4}, values)
}

func TestSave_BeforeInitialize(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, layers.NewFullyConnected().Save(&buf), nn.ErrNotInitialized)
	assert.ErrorIs(t, layers.NewBatchNorm().Read(&buf), nn.ErrNotInitialized)
}

func TestSetProperty(t *testing.T) {
	l := layers.NewFullyConnected()
	require.NoError(t, l.SetProperty([]string{
		"Name = hidden", "unit=10", "activation=relu", "input_shape=1:1:784",
	}))
	assert.Equal(t, "hidden", l.Name())
	assert.Equal(t, 10, l.Units())
	assert.Equal(t, layers.ActivationReLU, l.Activation())
	assert.Equal(t, tensor.NewDim(1, 1, 1, 784), l.InputShape())

	cases := [][]string{
		{"no_such_key=1"},
		{"unit=0"},
		{"activation=swish"},
		{"unit"},
		{"epsilon=0.1"}, // batch normalization only
		{"weight_initializer=orthogonal"},
		{"loss=hinge"},
	}
	for _, values := range cases {
		assert.ErrorIs(t, l.SetProperty(values), nn.ErrInvalidParameter, "%v", values)
	}

	// A token without '=' rejects the whole call; a bad value keeps the
	// properties before it.
	assert.ErrorIs(t, l.SetProperty([]string{"unit=3", "activation"}), nn.ErrInvalidParameter)
	assert.Equal(t, 10, l.Units())
	assert.ErrorIs(t, l.SetProperty([]string{"unit=3", "activation=foo"}), nn.ErrInvalidParameter)
	assert.Equal(t, 3, l.Units())
	assert.Equal(t, layers.ActivationReLU, l.Activation())

	assert.NoError(t, layers.NewBatchNorm().SetProperty([]string{"epsilon=0.01", "momentum=0.9"}))
	assert.NoError(t, layers.NewInput().SetProperty([]string{"normalization=true", "standardization=false"}))
}

func TestCopy(t *testing.T) {
	src := newFC(t, 2, 3, 4, "activation=tanh")

	dst := layers.NewFullyConnected()
	require.NoError(t, dst.Copy(src))
	assert.Equal(t, src.Dim(), dst.Dim())
	assert.Equal(t, src.Activation(), dst.Activation())
	require.Len(t, dst.Weights(), 2)
	assert.Equal(t, src.Weights()[0].Variable().Data(), dst.Weights()[0].Variable().Data())

	// The copy owns its weights.
	dst.Weights()[0].Variable().Fill(7)
	assert.NotEqual(t, float32(7), src.Weights()[0].Variable().Data()[0])

	assert.ErrorIs(t, layers.NewBatchNorm().Copy(src), nn.ErrInvalidParameter)
	assert.ErrorIs(t, layers.NewInput().Copy(src), nn.ErrInvalidParameter)
}

func TestBatchNorm_Forward(t *testing.T) {
	l := layers.NewBatchNorm()
	require.NoError(t, l.SetOptimizer(newSGD(t, 0.1)))
	require.NoError(t, l.Initialize(4, 1, 2, false, false, tensor.InitZeros))

	x := mustTensor(t, tensor.NewDim(4, 1, 1, 2), []float32{1, 10, 2, 20, 3, 30, 4, 40})
	out, err := l.Forwarding(x)
	require.NoError(t, err)

	for c := 0; c < 2; c++ {
		var mean, sq float32
		for r := 0; r < 4; r++ {
			mean += out.Row(r)[c] / 4
		}
		for r := 0; r < 4; r++ {
			d := out.Row(r)[c] - mean
			sq += d * d / 4
		}
		assert.InDelta(t, 0, mean, 1e-5, "feature %d mean", c)
		assert.InDelta(t, 1, sq, 1e-2, "feature %d variance", c)
	}

	// running = 0.99 * running + 0.01 * batch
	runningMean := l.Weights()[2].Variable().Data()
	assert.InDelta(t, 0.025, runningMean[0], 1e-6)
	assert.InDelta(t, 0.25, runningMean[1], 1e-5)
}

func TestBatchNorm_InferenceUsesRunningStats(t *testing.T) {
	l := layers.NewBatchNorm()
	require.NoError(t, l.SetProperty([]string{"momentum=0", "epsilon=1e-6"}))
	require.NoError(t, l.Initialize(2, 1, 1, false, false, tensor.InitZeros))

	_, err := l.Forwarding(mustTensor(t, tensor.NewDim(2, 1, 1, 1), []float32{1, 3}))
	require.NoError(t, err)

	l.SetTraining(false)
	// Running mean 2, variance 1: a single sample is normalized with them.
	out, err := l.Forwarding(mustTensor(t, tensor.NewDim(1, 1, 1, 1), []float32{4}))
	require.NoError(t, err)
	assert.InDelta(t, 2, out.Data()[0], 1e-3)
}

// TestBatchNorm_GradientCheck compares the input derivative against central
// differences of L = sum(y * r).
func TestBatchNorm_GradientCheck(t *testing.T) {
	l := layers.NewBatchNorm()
	require.NoError(t, l.SetOptimizer(newSGD(t, 1e-9)))
	require.NoError(t, l.Initialize(4, 1, 3, false, false, tensor.InitZeros))
	l.Weights()[0].Variable().Fill(1.5)
	l.Weights()[1].Variable().Fill(0.2)

	x := mustTensor(t, tensor.NewDim(4, 1, 1, 3), []float32{
		0.1, -1.2, 2.0,
		0.7, 0.3, -0.5,
		-0.4, 1.1, 0.9,
		1.3, -0.6, 0.2,
	})
	r := mustTensor(t, tensor.NewDim(4, 1, 1, 3), []float32{
		1, -2, 0.5,
		0.3, 1, -1,
		-0.7, 0.2, 2,
		0.4, -0.1, 1.5,
	})

	loss := func() float64 {
		out, err := l.Forwarding(x)
		require.NoError(t, err)
		var sum float64
		for i, v := range out.Data() {
			sum += float64(v * r.Data()[i])
		}
		return sum
	}

	const eps = 1e-2
	numeric := make([]float64, x.Len())
	for i := range x.Data() {
		orig := x.Data()[i]
		x.Data()[i] = orig + eps
		plus := loss()
		x.Data()[i] = orig - eps
		minus := loss()
		x.Data()[i] = orig
		numeric[i] = (plus - minus) / (2 * eps)
	}

	loss()
	dx, err := l.Backwarding(r, 0)
	require.NoError(t, err)
	for i, v := range dx.Data() {
		assert.InDelta(t, numeric[i], v, 5e-3, "input element %d", i)
	}
}

func TestInput_Normalization(t *testing.T) {
	l := layers.NewInput()
	require.NoError(t, l.SetProperty([]string{"normalization=true"}))
	require.NoError(t, l.Initialize(2, 2, 2, false, false, tensor.InitNone))
	assert.Equal(t, tensor.NewDim(2, 1, 1, 4), l.OutputDim())

	out, err := l.Forwarding(mustTensor(t, tensor.NewDim(2, 1, 2, 2), []float32{2, 4, 6, 10, 5, 5, 5, 5}))
	require.NoError(t, err)
	assert.Equal(t, tensor.NewDim(2, 1, 1, 4), out.Dim())
	assert.Equal(t, []float32{0, 0.25, 0.5, 1, 0, 0, 0, 0}, out.Data())

	d := randomTensor(t, out.Dim())
	back, err := l.Backwarding(d, 0)
	require.NoError(t, err)
	assert.Equal(t, d.Data(), back.Data())
	assert.Empty(t, l.Weights())
}

func TestInput_Standardization(t *testing.T) {
	l := layers.NewInput()
	require.NoError(t, l.SetProperty([]string{"standardization=true"}))
	require.NoError(t, l.Initialize(1, 1, 4, false, false, tensor.InitNone))

	out, err := l.Forwarding(mustTensor(t, tensor.NewDim(1, 1, 1, 4), []float32{1, 2, 3, 4}))
	require.NoError(t, err)
	assert.InDelta(t, 0, out.Mean(), 1e-6)
	assert.InDelta(t, 2, out.L2Norm(), 1e-5) // sqrt(4 * unit variance)
}

func TestActivations(t *testing.T) {
	l := layers.NewFullyConnected()
	require.NoError(t, l.SetProperty([]string{"activation=softmax"}))
	require.NoError(t, l.Initialize(3, 4, 5, false, false, tensor.InitXavierNormal))

	out, err := l.Forwarding(randomTensor(t, tensor.NewDim(3, 1, 1, 4)))
	require.NoError(t, err)
	for r := 0; r < 3; r++ {
		var sum float32
		for _, v := range out.Row(r) {
			assert.Greater(t, v, float32(0))
			sum += v
		}
		assert.InDelta(t, 1, sum, 1e-5)
	}

	for _, name := range []string{"tanh", "sigmoid", "relu", "softmax", "none"} {
		a, err := layers.ParseActivation(name)
		require.NoError(t, err)
		assert.Equal(t, name, a.String())
	}
	_, err = layers.ParseActivation("gelu")
	assert.ErrorIs(t, err, nn.ErrInvalidParameter)
	assert.ErrorIs(t, l.SetActivation(layers.ActivationUnknown), nn.ErrInvalidParameter)
}

func TestFactory(t *testing.T) {
	for _, name := range []string{"input", "fully_connected", "fc", "batch_normalization", "bn"} {
		typ, err := layers.ParseType(name)
		require.NoError(t, err)
		l, err := layers.New(typ)
		require.NoError(t, err)
		assert.Equal(t, typ, l.Type())
	}

	_, err := layers.ParseType("conv2d")
	assert.ErrorIs(t, err, nn.ErrInvalidParameter)
	_, err = layers.New(layers.TypeUnknown)
	assert.ErrorIs(t, err, nn.ErrInvalidParameter)

	l, err := layers.NewFromProperties(layers.TypeFullyConnected, []string{"unit=3", "activation=sigmoid"})
	require.NoError(t, err)
	assert.Equal(t, 3, l.(*layers.FullyConnected).Units())

	_, err = layers.NewFromProperties(layers.TypeInput, []string{"unit=3"})
	assert.ErrorIs(t, err, nn.ErrInvalidParameter)
}
