package network

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/nntrainer/internal/nn"
)

// Step describes one finished training step, as reported to the progress
// callback of Train.
type Step struct {
	Epoch     int
	Batch     int
	Iteration int
	Loss      float32
}

// EpochStats summarizes one training epoch.
type EpochStats struct {
	Epoch    int
	Batches  int
	MeanLoss float32
	Duration time.Duration
}

// Metrics summarizes an evaluation pass.
type Metrics struct {
	Samples  int
	MeanLoss float32
	Accuracy float32 // Fraction of samples whose largest output matches the largest label value
}

// Train runs epochs passes over src. progress, when not nil, is called
// after every step.
//
// Cancellation of ctx is honored between steps; the statistics of the
// finished epochs are returned along with ctx.Err().
func (n *Network) Train(ctx context.Context, src DataSource, epochs int, progress func(Step)) ([]EpochStats, error) {
	if epochs <= 0 {
		return nil, errors.Wrapf(nn.ErrInvalidParameter, "epochs must be positive, got %d", epochs)
	}
	if !n.initialized {
		return nil, errors.Wrap(nn.ErrNotInitialized, "train before initialize")
	}

	history := make([]EpochStats, 0, epochs)
	for epoch := 0; epoch < epochs; epoch++ {
		start := time.Now()
		if err := src.Reset(); err != nil {
			return history, errors.WithMessagef(err, "epoch %d", epoch)
		}

		var total float32
		batches := 0
		for {
			if err := ctx.Err(); err != nil {
				return history, err
			}
			in, label, err := src.Next(ctx)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return history, errors.WithMessagef(err, "epoch %d batch %d", epoch, batches)
			}

			loss, err := n.TrainStep(in, label)
			if err != nil {
				return history, errors.WithMessagef(err, "epoch %d batch %d", epoch, batches)
			}
			total += loss
			batches++
			if progress != nil {
				progress(Step{Epoch: epoch, Batch: batches, Iteration: n.iteration, Loss: loss})
			}
		}
		if batches == 0 {
			return history, errors.Wrapf(nn.ErrInvalidParameter, "epoch %d: data source yielded no batch", epoch)
		}

		stats := EpochStats{
			Epoch:    epoch,
			Batches:  batches,
			MeanLoss: total / float32(batches),
			Duration: time.Since(start),
		}
		history = append(history, stats)
		if klog.V(1).Enabled() {
			klog.Infof("epoch %d/%d: loss=%.6f over %d batches in %s", epoch+1, epochs, stats.MeanLoss, batches, stats.Duration)
		}
	}
	return history, nil
}

// Evaluate measures loss and accuracy on src without updating weights.
func (n *Network) Evaluate(ctx context.Context, src DataSource) (Metrics, error) {
	if err := src.Reset(); err != nil {
		return Metrics{}, err
	}
	n.setTraining(false)
	defer n.setTraining(true)

	var m Metrics
	var total float32
	batches, correct := 0, 0
	for {
		in, label, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Metrics{}, err
		}
		out, err := n.Forward(in, label)
		if err != nil {
			return Metrics{}, err
		}
		total += n.loss
		batches++

		predicted, expected := out.ArgMaxRows(), label.ArgMaxRows()
		for i := range predicted {
			if predicted[i] == expected[i] {
				correct++
			}
		}
		m.Samples += len(predicted)
	}
	if batches == 0 {
		return Metrics{}, errors.Wrap(nn.ErrInvalidParameter, "data source yielded no batch")
	}
	m.MeanLoss = total / float32(batches)
	m.Accuracy = float32(correct) / float32(m.Samples)
	return m, nil
}
