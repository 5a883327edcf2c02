// Package network chains layers into a trainable model.
//
// The driver owns the ordered layers and the optimizer. Initialize
// propagates the output width of each layer into the next one; a training
// step runs ForwardingWithLabel through every layer and then Backwarding
// in reverse order, each layer updating its own weights on the way back.
//
// Example:
//
//	net := network.New(network.Config{BatchSize: 32, Cost: layers.CostCrossEntropy})
//	net.AddLayer(input, hidden, output)
//	net.SetOptimizer(adam)
//	if err := net.Initialize(); err != nil { ... }
//	loss, err := net.TrainStep(x, y)
package network

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/nntrainer/internal/layers"
	"github.com/born-ml/nntrainer/internal/nn"
	"github.com/born-ml/nntrainer/internal/optim"
	"github.com/born-ml/nntrainer/internal/tensor"
)

// Config holds the network-wide settings.
//
// A zero BatchSize and an InitUnknown Initializer take defaults in New.
type Config struct {
	BatchSize    int                // Samples per step (default: 32)
	Initializer  tensor.Initializer // Weight initializer of layers without their own (InitUnknown: xavier_uniform)
	BiasInitZero bool               // Zero-fill every bias
	Cost         layers.Cost        // Loss of the terminal layer; none keeps the layer's own setting
}

// Network is an ordered stack of layers trained with one optimizer.
type Network struct {
	config    Config
	layers    []layers.Layer
	optimizer optim.Optimizer

	initialized bool
	iteration   int
	loss        float32
	runID       string
}

// New creates an empty network.
func New(config Config) *Network {
	if config.BatchSize == 0 {
		config.BatchSize = 32
	}
	if config.Initializer == tensor.InitUnknown {
		config.Initializer = tensor.InitXavierUniform
	}
	return &Network{config: config, runID: uuid.NewString()}
}

// RunID identifies the training run. It is carried through checkpoints so
// a resumed network keeps the id of the run it continues.
func (n *Network) RunID() string {
	return n.runID
}

// Config returns the effective configuration.
func (n *Network) Config() Config {
	return n.config
}

// AddLayer appends layers in forward order.
func (n *Network) AddLayer(ls ...layers.Layer) {
	n.layers = append(n.layers, ls...)
	n.initialized = false
}

// Layers returns the layers in forward order.
func (n *Network) Layers() []layers.Layer {
	return n.layers
}

// SetOptimizer attaches opt to the network and, once initialized, to every
// layer.
func (n *Network) SetOptimizer(opt optim.Optimizer) error {
	if opt == nil {
		return errors.Wrap(nn.ErrInvalidParameter, "nil optimizer")
	}
	n.optimizer = opt
	if !n.initialized {
		return nil
	}
	for _, l := range n.layers {
		if err := l.SetOptimizer(opt); err != nil {
			return err
		}
	}
	return nil
}

// Optimizer returns the attached optimizer, nil if none.
func (n *Network) Optimizer() optim.Optimizer {
	return n.optimizer
}

// Iteration returns the number of training steps taken so far.
func (n *Network) Iteration() int {
	return n.iteration
}

// Initialize names, dimensions and validates every layer.
//
// The first layer needs the input_shape property. A layer followed by
// batch normalization hands its activation over to it.
func (n *Network) Initialize() error {
	if len(n.layers) == 0 {
		return errors.Wrap(nn.ErrInvalidParameter, "network has no layers")
	}
	shape := n.layers[0].InputShape()
	if shape.IsZero() {
		return errors.Wrapf(nn.ErrInvalidParameter, "first layer %q needs %s", n.layers[0].Name(), layers.PropInputShape)
	}

	batch := n.config.BatchSize
	width := shape.FeatureLen()
	for i, l := range n.layers {
		if l.Name() == "" {
			l.SetName(fmt.Sprintf("%s%d", l.Type(), i))
		}
		last := i == len(n.layers)-1
		if last && n.config.Cost != layers.CostNone {
			l.SetCost(n.config.Cost)
		}
		if err := n.linkBatchNorm(i); err != nil {
			return err
		}
		if n.optimizer != nil {
			if err := l.SetOptimizer(n.optimizer); err != nil {
				return err
			}
		}

		var err error
		switch l.Type() {
		case layers.TypeInput:
			if i != 0 {
				return errors.Wrapf(nn.ErrInvalidParameter, "input layer %q must come first", l.Name())
			}
			err = l.Initialize(batch, shape.Channel*shape.Height, shape.Width, last, n.config.BiasInitZero, n.config.Initializer)
		case layers.TypeFullyConnected:
			units := l.(interface{ Units() int }).Units()
			if units <= 0 {
				return errors.Wrapf(nn.ErrInvalidParameter, "layer %q needs %s", l.Name(), layers.PropUnit)
			}
			err = l.Initialize(batch, width, units, last, n.config.BiasInitZero, n.config.Initializer)
		default:
			err = l.Initialize(batch, 1, width, last, n.config.BiasInitZero, n.config.Initializer)
		}
		if err != nil {
			return err
		}
		if err := l.CheckValidation(); err != nil {
			return err
		}
		width = l.OutputDim().Width

		if klog.V(1).Enabled() {
			klog.Infof("layer %d %q (%s): %s -> %s", i, l.Name(), l.Type(), l.Dim(), l.OutputDim())
		}
	}

	n.initialized = true
	n.loss = 0
	params, bytes := n.size()
	klog.Infof("network initialized: %d layers, %s parameters, %s", len(n.layers),
		humanize.Comma(int64(params)), humanize.Bytes(bytes))
	return nil
}

// linkBatchNorm marks layer i as followed by batch normalization and moves
// its activation onto the batch normalization layer.
func (n *Network) linkBatchNorm(i int) error {
	if i+1 >= len(n.layers) || n.layers[i+1].Type() != layers.TypeBatchNorm {
		return nil
	}
	l, bn := n.layers[i], n.layers[i+1]
	l.SetBNFollow(true)
	if bn.Activation() == layers.ActivationNone && l.Activation() != layers.ActivationUnknown {
		return bn.SetActivation(l.Activation())
	}
	return nil
}

// size returns the number of trainable values and the bytes held by all
// weights.
func (n *Network) size() (int, uint64) {
	var params int
	var bytes uint64
	for _, l := range n.layers {
		for _, w := range l.Weights() {
			if w.NeedsGradient() {
				params += w.Dim().Len()
			}
			bytes += w.Bytes()
		}
	}
	return params, bytes
}

// Forward runs in through every layer. With a label, the terminal layer
// computes the loss, available from Loss afterwards.
//
// The returned tensor belongs to the terminal layer.
func (n *Network) Forward(in, label *tensor.Tensor) (*tensor.Tensor, error) {
	if !n.initialized {
		return nil, errors.Wrap(nn.ErrNotInitialized, "forward before initialize")
	}
	x := in
	for i, l := range n.layers {
		var err error
		if i == len(n.layers)-1 && label != nil {
			x, err = l.ForwardingWithLabel(x, label)
		} else {
			x, err = l.Forwarding(x)
		}
		if err != nil {
			return nil, errors.WithMessagef(err, "forward layer %d", i)
		}
	}
	if label != nil {
		n.loss = n.layers[len(n.layers)-1].Loss() + n.regularizationLoss()
	}
	return x, nil
}

// Backward propagates from the label of the last Forward down to the
// first layer, updating the weights at the given iteration.
func (n *Network) Backward(iteration int) error {
	if !n.initialized {
		return errors.Wrap(nn.ErrNotInitialized, "backward before initialize")
	}
	if n.optimizer == nil {
		return errors.Wrap(nn.ErrNotInitialized, "backward without optimizer")
	}
	if n.layers[len(n.layers)-1].Cost() == layers.CostNone {
		return errors.Wrap(nn.ErrInvalidParameter, "backward needs a loss on the terminal layer")
	}

	var derivative *tensor.Tensor
	for i := len(n.layers) - 1; i >= 0; i-- {
		d, err := n.layers[i].Backwarding(derivative, iteration)
		if err != nil {
			return errors.WithMessagef(err, "backward layer %d", i)
		}
		derivative = d
	}
	return nil
}

// TrainStep runs one forward/backward pass on a batch and returns the
// loss measured before the update.
func (n *Network) TrainStep(in, label *tensor.Tensor) (float32, error) {
	if label.IsEmpty() {
		return 0, errors.Wrap(nn.ErrInvalidParameter, "train step without label")
	}
	n.setTraining(true)
	if _, err := n.Forward(in, label); err != nil {
		return 0, err
	}
	if err := n.Backward(n.iteration); err != nil {
		return 0, err
	}
	n.iteration++
	return n.loss, nil
}

// Predict runs in through the network in inference mode and returns a
// copy of the output.
func (n *Network) Predict(in *tensor.Tensor) (*tensor.Tensor, error) {
	n.setTraining(false)
	defer n.setTraining(true)
	out, err := n.Forward(in, nil)
	if err != nil {
		return nil, err
	}
	return out.Clone(), nil
}

// Loss returns the loss of the last labeled forward pass, including the
// regularization loss of every weight.
func (n *Network) Loss() float32 {
	return n.loss
}

func (n *Network) regularizationLoss() float32 {
	var sum float32
	for _, l := range n.layers {
		for _, w := range l.Weights() {
			sum += w.RegularizationLoss()
		}
	}
	return sum
}

func (n *Network) setTraining(training bool) {
	for _, l := range n.layers {
		l.SetTraining(training)
	}
}
