package network

import (
	"bufio"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/nntrainer/internal/nn"
)

// Save writes the weights of every layer in forward order.
//
// The stream is the concatenation of the layers' raw little-endian
// float32 weights; Load needs a network of the same architecture.
func (n *Network) Save(w io.Writer) error {
	if !n.initialized {
		return errors.Wrap(nn.ErrNotInitialized, "save before initialize")
	}
	for _, l := range n.layers {
		if err := l.Save(w); err != nil {
			return err
		}
	}
	return nil
}

// Load restores the weights written by Save.
func (n *Network) Load(r io.Reader) error {
	if !n.initialized {
		return errors.Wrap(nn.ErrNotInitialized, "load before initialize")
	}
	for _, l := range n.layers {
		if err := l.Read(r); err != nil {
			return err
		}
	}
	return nil
}

// ExportHalf writes every weight as IEEE 754 binary16, in Save order.
// The export is one-way: it is meant for inference runtimes.
func (n *Network) ExportHalf(w io.Writer) error {
	if !n.initialized {
		return errors.Wrap(nn.ErrNotInitialized, "export before initialize")
	}
	for _, l := range n.layers {
		for _, wt := range l.Weights() {
			if err := wt.Variable().SaveHalf(w); err != nil {
				return errors.Wrapf(nn.ErrIOFailure, "export %s: %v", wt.Name(), err)
			}
		}
	}
	return nil
}

// SaveFile writes the model to path, replacing any existing file.
func (n *Network) SaveFile(path string) error {
	return n.writeFile(path, n.Save)
}

// ExportHalfFile writes the half-precision export to path.
func (n *Network) ExportHalfFile(path string) error {
	return n.writeFile(path, n.ExportHalf)
}

func (n *Network) writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(nn.ErrIOFailure, "create %s: %v", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(nn.ErrIOFailure, "close %s: %v", path, cerr)
		}
	}()

	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrapf(nn.ErrIOFailure, "write %s: %v", path, err)
	}
	if info, err := f.Stat(); err == nil {
		klog.Infof("model written to %s (%s)", path, humanize.Bytes(uint64(info.Size())))
	}
	return nil
}

// LoadFile restores the model from path.
func (n *Network) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(nn.ErrIOFailure, "open %s: %v", path, err)
	}
	defer f.Close()

	if err := n.Load(bufio.NewReader(f)); err != nil {
		return err
	}
	klog.Infof("model loaded from %s", path)
	return nil
}
