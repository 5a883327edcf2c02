package network

import (
	"context"
	"io"
	"math/rand/v2"

	"github.com/pkg/errors"

	"github.com/born-ml/nntrainer/internal/nn"
	"github.com/born-ml/nntrainer/internal/tensor"
)

// DataSource yields training batches.
type DataSource interface {
	// Next returns the next input and label batch. It returns io.EOF when
	// the epoch is exhausted.
	Next(ctx context.Context) (in, label *tensor.Tensor, err error)

	// Reset starts a new epoch.
	Reset() error
}

// MemorySource serves batches from samples held in memory.
//
// Incomplete trailing batches are dropped so every batch has exactly
// BatchSize samples.
type MemorySource struct {
	inputs  [][]float32
	labels  [][]float32
	shape   tensor.Dim
	batch   int
	shuffle bool
	rng     *rand.Rand

	order []int
	pos   int
}

// NewMemorySource creates a source over inputs and labels.
//
// Every input must hold shape.FeatureLen() values and every label the same
// number of values. With shuffle, each epoch visits the samples in a new
// order drawn from seed.
func NewMemorySource(inputs, labels [][]float32, shape tensor.Dim, batch int, shuffle bool, seed uint64) (*MemorySource, error) {
	switch {
	case len(inputs) == 0 || len(inputs) != len(labels):
		return nil, errors.Wrapf(nn.ErrInvalidParameter, "%d inputs for %d labels", len(inputs), len(labels))
	case batch <= 0 || batch > len(inputs):
		return nil, errors.Wrapf(nn.ErrInvalidParameter, "batch size %d for %d samples", batch, len(inputs))
	case shape.Validate() != nil:
		return nil, errors.Wrapf(nn.ErrInvalidParameter, "sample shape %s", shape)
	}
	features, classes := shape.FeatureLen(), len(labels[0])
	for i := range inputs {
		if len(inputs[i]) != features {
			return nil, errors.Wrapf(nn.ErrInvalidParameter, "sample %d has %d values, want %d", i, len(inputs[i]), features)
		}
		if len(labels[i]) != classes || classes == 0 {
			return nil, errors.Wrapf(nn.ErrInvalidParameter, "label %d has %d values, want %d", i, len(labels[i]), classes)
		}
	}

	s := &MemorySource{
		inputs:  inputs,
		labels:  labels,
		shape:   shape.WithBatch(1),
		batch:   batch,
		shuffle: shuffle,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		order:   make([]int, len(inputs)),
	}
	for i := range s.order {
		s.order[i] = i
	}
	return s, s.Reset()
}

// Len returns the number of samples.
func (s *MemorySource) Len() int {
	return len(s.inputs)
}

// Batches returns the number of batches per epoch.
func (s *MemorySource) Batches() int {
	return len(s.inputs) / s.batch
}

// Reset rewinds to the first batch, reshuffling when enabled.
func (s *MemorySource) Reset() error {
	s.pos = 0
	if s.shuffle {
		s.rng.Shuffle(len(s.order), func(i, j int) {
			s.order[i], s.order[j] = s.order[j], s.order[i]
		})
	}
	return nil
}

// Next copies the next batch into fresh tensors.
func (s *MemorySource) Next(ctx context.Context) (*tensor.Tensor, *tensor.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if s.pos+s.batch > len(s.order) {
		return nil, nil, io.EOF
	}

	features, classes := s.shape.FeatureLen(), len(s.labels[0])
	in, err := tensor.New(s.shape.WithBatch(s.batch))
	if err != nil {
		return nil, nil, err
	}
	label, err := tensor.New(tensor.NewDim(s.batch, 1, 1, classes))
	if err != nil {
		return nil, nil, err
	}
	inData, labelData := in.Data(), label.Data()
	for b := 0; b < s.batch; b++ {
		idx := s.order[s.pos+b]
		copy(inData[b*features:(b+1)*features], s.inputs[idx])
		copy(labelData[b*classes:(b+1)*classes], s.labels[idx])
	}
	s.pos += s.batch
	return in, label, nil
}

// Split partitions samples into a training and a validation part, the
// latter holding the trailing validationRatio of the samples.
func Split(inputs, labels [][]float32, validationRatio float32) (trainIn, trainLabels, valIn, valLabels [][]float32) {
	splitIdx := int(float32(len(inputs)) * (1.0 - validationRatio))
	return inputs[:splitIdx], labels[:splitIdx], inputs[splitIdx:], labels[splitIdx:]
}
