package network

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/nntrainer/internal/nn"
	"github.com/born-ml/nntrainer/internal/serialization"
	"github.com/born-ml/nntrainer/internal/tensor"
)

// optimizerVarName names the i-th optimizer variable of a weight inside a
// checkpoint.
func optimizerVarName(weight string, i int) string {
	return fmt.Sprintf("%s:opt%d", weight, i)
}

// WriteCheckpoint stores every weight, the optimizer state and the
// iteration counter, so that training can resume with LoadCheckpoint.
func (n *Network) WriteCheckpoint(w io.Writer) error {
	if !n.initialized {
		return errors.Wrap(nn.ErrNotInitialized, "checkpoint before initialize")
	}

	var entries []serialization.Entry
	for _, l := range n.layers {
		for _, wt := range l.Weights() {
			entries = append(entries, serialization.Entry{Name: wt.Name(), Tensor: wt.Variable()})
			for i := 0; i < wt.NumOptimizerVariables(); i++ {
				entries = append(entries, serialization.Entry{Name: optimizerVarName(wt.Name(), i), Tensor: wt.OptimizerVariable(i)})
			}
		}
	}

	meta := &serialization.CheckpointMeta{Iteration: n.iteration, Loss: n.loss}
	if n.optimizer != nil {
		meta.OptimizerType = n.optimizer.Type().String()
	}
	header := serialization.Header{
		Metadata:   map[string]string{"run_id": n.runID},
		Checkpoint: meta,
	}
	if err := serialization.Write(w, header, entries, false); err != nil {
		return errors.Wrapf(nn.ErrIOFailure, "write checkpoint: %v", err)
	}
	return nil
}

// ReadCheckpoint restores a checkpoint written by WriteCheckpoint into a
// network of the same architecture.
//
// Optimizer state is restored only when the checkpoint was taken with the
// same optimizer type.
func (n *Network) ReadCheckpoint(r io.Reader) error {
	if !n.initialized {
		return errors.Wrap(nn.ErrNotInitialized, "checkpoint before initialize")
	}
	header, entries, err := serialization.Read(r, serialization.ValidationStrict)
	if err != nil {
		return errors.Wrapf(nn.ErrIOFailure, "read checkpoint: %v", err)
	}
	stored := make(map[string]*tensor.Tensor, len(entries))
	for _, e := range entries {
		stored[e.Name] = e.Tensor
	}

	meta := header.Checkpoint
	if meta == nil {
		meta = &serialization.CheckpointMeta{}
	}
	withOptimizer := n.optimizer != nil && meta.OptimizerType == n.optimizer.Type().String()
	if !withOptimizer && meta.OptimizerType != "" {
		klog.Warningf("checkpoint optimizer state (%s) does not match the network optimizer, skipping it", meta.OptimizerType)
	}

	// Check everything before touching any weight.
	type restore struct {
		dst, src *tensor.Tensor
	}
	var plan []restore
	add := func(name string, dst *tensor.Tensor) error {
		src, ok := stored[name]
		if !ok {
			return errors.Wrapf(nn.ErrInvalidParameter, "checkpoint has no tensor %q", name)
		}
		if !src.Dim().Equal(dst.Dim()) {
			return errors.Wrapf(nn.ErrInvalidParameter, "tensor %q: checkpoint dim %s, network dim %s", name, src.Dim(), dst.Dim())
		}
		plan = append(plan, restore{dst: dst, src: src})
		return nil
	}
	for _, l := range n.layers {
		for _, wt := range l.Weights() {
			if err := add(wt.Name(), wt.Variable()); err != nil {
				return err
			}
			if !withOptimizer {
				continue
			}
			for i := 0; i < wt.NumOptimizerVariables(); i++ {
				if err := add(optimizerVarName(wt.Name(), i), wt.OptimizerVariable(i)); err != nil {
					return err
				}
			}
		}
	}

	for _, p := range plan {
		if err := p.dst.CopyFrom(p.src); err != nil {
			return errors.Wrapf(nn.ErrInvalidParameter, "restore checkpoint: %v", err)
		}
	}
	n.iteration = meta.Iteration
	n.loss = meta.Loss
	if id := header.Metadata["run_id"]; id != "" {
		n.runID = id
	}
	klog.V(1).Infof("checkpoint restored: %d tensors, iteration %d", len(plan), n.iteration)
	return nil
}

// SaveCheckpoint writes a checkpoint to path.
func (n *Network) SaveCheckpoint(path string) error {
	return n.writeFile(path, n.WriteCheckpoint)
}

// LoadCheckpoint restores the checkpoint at path.
func (n *Network) LoadCheckpoint(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(nn.ErrIOFailure, "open %s: %v", path, err)
	}
	defer f.Close()
	return n.ReadCheckpoint(bufio.NewReader(f))
}
