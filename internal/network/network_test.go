package network_test

import (
	"bytes"
	"context"
	"io"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/nntrainer/internal/layers"
	"github.com/born-ml/nntrainer/internal/network"
	"github.com/born-ml/nntrainer/internal/nn"
	"github.com/born-ml/nntrainer/internal/optim"
	"github.com/born-ml/nntrainer/internal/tensor"
)

// blobs returns two well separated 2-D clusters with one-hot labels.
func blobs(n int, seed uint64) (inputs, labels [][]float32) {
	rng := rand.New(rand.NewPCG(seed, seed))
	for i := 0; i < n; i++ {
		class := i % 2
		center := float32(2*class - 1)
		inputs = append(inputs, []float32{
			center*2 + float32(rng.NormFloat64())*0.5,
			-center*2 + float32(rng.NormFloat64())*0.5,
		})
		label := []float32{0, 0}
		label[class] = 1
		labels = append(labels, label)
	}
	return inputs, labels
}

func newLayer(t *testing.T, typ layers.Type, props ...string) layers.Layer {
	t.Helper()
	l, err := layers.NewFromProperties(typ, props)
	require.NoError(t, err)
	return l
}

// newClassifier builds input(2) -> fc(8, relu) -> bn -> fc(2, softmax).
func newClassifier(t *testing.T, batch int, props ...string) *network.Network {
	t.Helper()
	net := network.New(network.Config{BatchSize: batch, Initializer: tensor.InitXavierUniform, Cost: layers.CostCrossEntropy})
	net.AddLayer(
		newLayer(t, layers.TypeInput, "input_shape=1:1:2"),
		newLayer(t, layers.TypeFullyConnected, append([]string{"unit=8", "activation=relu"}, props...)...),
		newLayer(t, layers.TypeBatchNorm, "momentum=0.9"),
		newLayer(t, layers.TypeFullyConnected, "unit=2", "activation=softmax"),
	)
	adam, err := optim.NewAdam(optim.Config{LearningRate: 0.01})
	require.NoError(t, err)
	require.NoError(t, net.SetOptimizer(adam))
	require.NoError(t, net.Initialize())
	return net
}

func TestInitialize_ChainsDimensions(t *testing.T) {
	net := newClassifier(t, 4)
	ls := net.Layers()

	assert.Equal(t, tensor.NewDim(4, 1, 1, 2), ls[0].OutputDim())
	assert.Equal(t, tensor.NewDim(4, 1, 2, 8), ls[1].Dim())
	assert.Equal(t, tensor.NewDim(4, 1, 1, 8), ls[2].OutputDim())
	assert.Equal(t, tensor.NewDim(4, 1, 8, 2), ls[3].Dim())

	assert.Equal(t, "input0", ls[0].Name())
	assert.Equal(t, "fully_connected1", ls[1].Name())
	assert.True(t, ls[3].IsLast())
	assert.Equal(t, layers.CostCrossEntropy, ls[3].Cost())

	// The activation moves onto the batch normalization layer.
	assert.Equal(t, layers.ActivationReLU, ls[2].Activation())

	// Every trainable weight got its Adam moments.
	for _, l := range ls {
		for _, w := range l.Weights() {
			if w.NeedsGradient() {
				assert.Equal(t, 2, w.NumOptimizerVariables(), w.Name())
			}
		}
	}
}

func TestInitialize_Errors(t *testing.T) {
	empty := network.New(network.Config{})
	assert.ErrorIs(t, empty.Initialize(), nn.ErrInvalidParameter)

	noShape := network.New(network.Config{})
	noShape.AddLayer(newLayer(t, layers.TypeFullyConnected, "unit=2", "activation=relu"))
	assert.ErrorIs(t, noShape.Initialize(), nn.ErrInvalidParameter)

	noUnit := network.New(network.Config{})
	noUnit.AddLayer(
		newLayer(t, layers.TypeInput, "input_shape=1:1:2"),
		newLayer(t, layers.TypeFullyConnected, "activation=relu"),
	)
	assert.ErrorIs(t, noUnit.Initialize(), nn.ErrInvalidParameter)

	lateInput := network.New(network.Config{})
	lateInput.AddLayer(
		newLayer(t, layers.TypeFullyConnected, "input_shape=1:1:2", "unit=2", "activation=relu"),
		newLayer(t, layers.TypeInput),
	)
	assert.ErrorIs(t, lateInput.Initialize(), nn.ErrInvalidParameter)

	badCost := network.New(network.Config{Cost: layers.CostCrossEntropy})
	badCost.AddLayer(
		newLayer(t, layers.TypeInput, "input_shape=2"),
		newLayer(t, layers.TypeFullyConnected, "unit=2", "activation=tanh"),
	)
	assert.ErrorIs(t, badCost.Initialize(), nn.ErrInvalidParameter)

	_, err := empty.Forward(tensor.Empty(), nil)
	assert.ErrorIs(t, err, nn.ErrNotInitialized)
	assert.ErrorIs(t, empty.SetOptimizer(nil), nn.ErrInvalidParameter)
}

func TestTrain_ConvergesOnBlobs(t *testing.T) {
	inputs, labels := blobs(256, 1)
	trainIn, trainLabels, valIn, valLabels := network.Split(inputs, labels, 0.25)
	require.Len(t, trainIn, 192)

	src, err := network.NewMemorySource(trainIn, trainLabels, tensor.NewDim(1, 1, 1, 2), 16, true, 7)
	require.NoError(t, err)
	assert.Equal(t, 12, src.Batches())

	net := newClassifier(t, 16)
	steps := 0
	history, err := net.Train(context.Background(), src, 10, func(s network.Step) {
		steps++
		assert.Equal(t, steps, s.Iteration)
	})
	require.NoError(t, err)
	require.Len(t, history, 10)
	assert.Equal(t, 120, steps)
	assert.Equal(t, 120, net.Iteration())
	assert.Less(t, history[9].MeanLoss, history[0].MeanLoss)

	val, err := network.NewMemorySource(valIn, valLabels, tensor.NewDim(1, 1, 1, 2), 16, false, 0)
	require.NoError(t, err)
	m, err := net.Evaluate(context.Background(), val)
	require.NoError(t, err)
	assert.Equal(t, 64, m.Samples)
	assert.GreaterOrEqual(t, m.Accuracy, float32(0.9))

	out, err := net.Predict(must.M1(tensor.FromSlice(tensor.NewDim(1, 1, 1, 2), []float32{2, -2})))
	require.NoError(t, err)
	assert.Equal(t, []int{1}, out.ArgMaxRows())
}

func TestTrain_Cancellation(t *testing.T) {
	inputs, labels := blobs(32, 2)
	src, err := network.NewMemorySource(inputs, labels, tensor.NewDim(1, 1, 1, 2), 8, false, 0)
	require.NoError(t, err)
	net := newClassifier(t, 8)

	ctx, cancel := context.WithCancel(context.Background())
	history, err := net.Train(ctx, src, 5, func(s network.Step) {
		if s.Iteration == 6 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, history, 1)
	assert.Equal(t, 6, net.Iteration())
}

func TestTrainStep_Errors(t *testing.T) {
	net := newClassifier(t, 2)
	x := must.M1(tensor.FromSlice(tensor.NewDim(2, 1, 1, 2), []float32{1, 2, 3, 4}))

	_, err := net.TrainStep(x, nil)
	assert.ErrorIs(t, err, nn.ErrInvalidParameter)

	wrong := must.M1(tensor.FromSlice(tensor.NewDim(2, 1, 1, 3), []float32{1, 0, 0, 0, 1, 0}))
	_, err = net.TrainStep(x, wrong)
	assert.ErrorIs(t, err, nn.ErrInvalidParameter)
	assert.Equal(t, 0, net.Iteration())
}

func TestLoss_IncludesRegularization(t *testing.T) {
	net := newClassifier(t, 4, "weight_decay=l2norm", "weight_decay_lambda=0.5")
	inputs, labels := blobs(4, 3)
	src, err := network.NewMemorySource(inputs, labels, tensor.NewDim(1, 1, 1, 2), 4, false, 0)
	require.NoError(t, err)
	in, label, err := src.Next(context.Background())
	require.NoError(t, err)

	_, err = net.Forward(in, label)
	require.NoError(t, err)

	hidden := net.Layers()[1].Weights()[0]
	require.True(t, hidden.IsRegularizerL2Norm())
	expected := net.Layers()[3].Loss() + hidden.RegularizationLoss()
	assert.InDelta(t, expected, net.Loss(), 1e-6)
	assert.Greater(t, hidden.RegularizationLoss(), float32(0))
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	inputs, labels := blobs(32, 4)
	src, err := network.NewMemorySource(inputs, labels, tensor.NewDim(1, 1, 1, 2), 8, true, 1)
	require.NoError(t, err)

	trained := newClassifier(t, 8)
	_, err = trained.Train(context.Background(), src, 2, nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.bin")
	require.NoError(t, trained.SaveFile(path))

	restored := newClassifier(t, 8)
	require.NoError(t, restored.LoadFile(path))

	probe := must.M1(tensor.FromSlice(tensor.NewDim(2, 1, 1, 2), []float32{0.3, -1.2, -2, 1.5}))
	want, err := trained.Predict(probe)
	require.NoError(t, err)
	got, err := restored.Predict(probe)
	require.NoError(t, err)
	assert.Equal(t, want.Data(), got.Data())

	var a, b bytes.Buffer
	require.NoError(t, trained.Save(&a))
	require.NoError(t, restored.Save(&b))
	assert.Equal(t, a.Bytes(), b.Bytes())

	// Truncated streams and missing files fail with I/O errors.
	assert.ErrorIs(t, restored.Load(bytes.NewReader(a.Bytes()[:a.Len()/2])), nn.ErrIOFailure)
	assert.ErrorIs(t, restored.LoadFile(filepath.Join(t.TempDir(), "missing.bin")), nn.ErrIOFailure)
	assert.ErrorIs(t, network.New(network.Config{}).Save(&a), nn.ErrNotInitialized)
}

func TestExportHalf(t *testing.T) {
	net := newClassifier(t, 4)

	var full, half bytes.Buffer
	require.NoError(t, net.Save(&full))
	require.NoError(t, net.ExportHalf(&half))
	assert.Equal(t, full.Len()/2, half.Len())

	path := filepath.Join(t.TempDir(), "model.f16")
	require.NoError(t, net.ExportHalfFile(path))
}

func TestMemorySource(t *testing.T) {
	inputs, labels := blobs(10, 5)
	shape := tensor.NewDim(1, 1, 1, 2)

	_, err := network.NewMemorySource(inputs, labels[:9], shape, 2, false, 0)
	assert.ErrorIs(t, err, nn.ErrInvalidParameter)
	_, err = network.NewMemorySource(inputs, labels, shape, 11, false, 0)
	assert.ErrorIs(t, err, nn.ErrInvalidParameter)
	_, err = network.NewMemorySource(inputs, labels, tensor.NewDim(1, 1, 1, 3), 2, false, 0)
	assert.ErrorIs(t, err, nn.ErrInvalidParameter)

	src, err := network.NewMemorySource(inputs, labels, shape, 4, true, 9)
	require.NoError(t, err)
	assert.Equal(t, 10, src.Len())
	assert.Equal(t, 2, src.Batches())

	ctx := context.Background()
	for epoch := 0; epoch < 2; epoch++ {
		require.NoError(t, src.Reset())
		seen := map[float32]bool{}
		for {
			in, label, err := src.Next(ctx)
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			assert.Equal(t, tensor.NewDim(4, 1, 1, 2), in.Dim())
			assert.Equal(t, tensor.NewDim(4, 1, 1, 2), label.Dim())
			for r := 0; r < 4; r++ {
				seen[in.Row(r)[0]] = true
			}
		}
		// The trailing incomplete batch is dropped.
		assert.Len(t, seen, 8)
	}

	ctx, cancel := context.WithCancel(ctx)
	cancel()
	require.NoError(t, src.Reset())
	_, _, err = src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckpoint_Resume(t *testing.T) {
	inputs, labels := blobs(32, 6)
	src, err := network.NewMemorySource(inputs, labels, tensor.NewDim(1, 1, 1, 2), 8, true, 2)
	require.NoError(t, err)

	trained := newClassifier(t, 8)
	_, err = trained.Train(context.Background(), src, 2, nil)
	require.NoError(t, err)
	require.Equal(t, 8, trained.Iteration())

	path := filepath.Join(t.TempDir(), "model.ckpt")
	require.NoError(t, trained.SaveCheckpoint(path))

	resumed := newClassifier(t, 8)
	require.NoError(t, resumed.LoadCheckpoint(path))
	assert.Equal(t, trained.Iteration(), resumed.Iteration())
	assert.Equal(t, trained.Loss(), resumed.Loss())
	assert.NotEmpty(t, trained.RunID())
	assert.Equal(t, trained.RunID(), resumed.RunID())

	// Weights and Adam moments are both restored, so the next step is
	// identical on the two networks.
	batches, err := network.NewMemorySource(inputs, labels, tensor.NewDim(1, 1, 1, 2), 8, false, 0)
	require.NoError(t, err)
	in, label, err := batches.Next(context.Background())
	require.NoError(t, err)
	want, err := trained.TrainStep(in, label)
	require.NoError(t, err)
	got, err := resumed.TrainStep(in, label)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	var a, b bytes.Buffer
	require.NoError(t, trained.Save(&a))
	require.NoError(t, resumed.Save(&b))
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestCheckpoint_Errors(t *testing.T) {
	net := newClassifier(t, 4)
	var buf bytes.Buffer
	require.NoError(t, net.WriteCheckpoint(&buf))
	raw := buf.Bytes()

	corrupted := bytes.Clone(raw)
	corrupted[len(corrupted)-1] ^= 0x01
	assert.ErrorIs(t, newClassifier(t, 4).ReadCheckpoint(bytes.NewReader(corrupted)), nn.ErrIOFailure)
	assert.ErrorIs(t, newClassifier(t, 4).ReadCheckpoint(bytes.NewReader(raw[:100])), nn.ErrIOFailure)

	// Same layer names, different shapes.
	other := network.New(network.Config{BatchSize: 4, Initializer: tensor.InitXavierUniform, Cost: layers.CostCrossEntropy})
	other.AddLayer(
		newLayer(t, layers.TypeInput, "input_shape=1:1:2"),
		newLayer(t, layers.TypeFullyConnected, "unit=3", "activation=softmax"),
	)
	require.NoError(t, other.SetOptimizer(must.M1(optim.NewAdam(optim.Config{}))))
	require.NoError(t, other.Initialize())
	before := other.Layers()[1].Weights()[0].Variable().Clone()
	assert.ErrorIs(t, other.ReadCheckpoint(bytes.NewReader(raw)), nn.ErrInvalidParameter)
	assert.Equal(t, before.Data(), other.Layers()[1].Weights()[0].Variable().Data(), "failed restore leaves weights untouched")

	assert.ErrorIs(t, network.New(network.Config{}).WriteCheckpoint(&buf), nn.ErrNotInitialized)
	assert.ErrorIs(t, net.LoadCheckpoint(filepath.Join(t.TempDir(), "missing.ckpt")), nn.ErrIOFailure)
}

func TestCheckpoint_OtherOptimizer(t *testing.T) {
	adamNet := newClassifier(t, 4)
	var buf bytes.Buffer
	require.NoError(t, adamNet.WriteCheckpoint(&buf))

	sgdNet := network.New(network.Config{BatchSize: 4, Initializer: tensor.InitXavierUniform, Cost: layers.CostCrossEntropy})
	sgdNet.AddLayer(
		newLayer(t, layers.TypeInput, "input_shape=1:1:2"),
		newLayer(t, layers.TypeFullyConnected, "unit=8", "activation=relu"),
		newLayer(t, layers.TypeBatchNorm),
		newLayer(t, layers.TypeFullyConnected, "unit=2", "activation=softmax"),
	)
	require.NoError(t, sgdNet.SetOptimizer(must.M1(optim.NewSGD(optim.Config{Momentum: 0.9}))))
	require.NoError(t, sgdNet.Initialize())

	require.NoError(t, sgdNet.ReadCheckpoint(&buf))
	var a, b bytes.Buffer
	require.NoError(t, adamNet.Save(&a))
	require.NoError(t, sgdNet.Save(&b))
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestNew_Initializer(t *testing.T) {
	assert.Equal(t, tensor.InitXavierUniform, network.New(network.Config{Initializer: tensor.InitUnknown}).Config().Initializer)

	net := network.New(network.Config{BatchSize: 2, Initializer: tensor.InitZeros})
	require.Equal(t, tensor.InitZeros, net.Config().Initializer)
	net.AddLayer(
		newLayer(t, layers.TypeInput, "input_shape=1:1:3"),
		newLayer(t, layers.TypeFullyConnected, "unit=4", "activation=none"),
	)
	require.NoError(t, net.SetOptimizer(must.M1(optim.NewSGD(optim.Config{}))))
	require.NoError(t, net.Initialize())
	for _, v := range net.Layers()[1].Weights()[0].Variable().Data() {
		assert.Zero(t, v)
	}
}

func TestBackward_AfterUnlabeledForward(t *testing.T) {
	net := newClassifier(t, 4)
	inputs, labels := blobs(8, 3)
	x := must.M1(tensor.FromSlice(tensor.NewDim(4, 1, 1, 2), flatten(inputs[:4])))
	y := must.M1(tensor.FromSlice(tensor.NewDim(4, 1, 1, 2), flatten(labels[:4])))
	x2 := must.M1(tensor.FromSlice(tensor.NewDim(4, 1, 1, 2), flatten(inputs[4:])))

	_, err := net.Forward(x, y)
	require.NoError(t, err)
	_, err = net.Forward(x2, nil)
	require.NoError(t, err)

	var before bytes.Buffer
	require.NoError(t, net.Save(&before))
	assert.ErrorIs(t, net.Backward(0), nn.ErrNotInitialized)
	var after bytes.Buffer
	require.NoError(t, net.Save(&after))
	assert.Equal(t, before.Bytes(), after.Bytes())
}

func flatten(rows [][]float32) []float32 {
	var out []float32
	for _, r := range rows {
		out = append(out, r...)
	}
	return out
}
