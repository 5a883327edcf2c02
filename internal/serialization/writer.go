package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"time"

	"github.com/pkg/errors"
)

// Write stores entries, in order, as a checkpoint.
//
// FormatVersion, CreatedAt and Tensors of header are filled in. With half,
// tensor data is stored as float16.
func Write(w io.Writer, header Header, entries []Entry, half bool) error {
	header.FormatVersion = FormatVersion
	header.CreatedAt = time.Now().UTC()
	header.Tensors = make([]TensorMeta, 0, len(entries))

	dtype := DTypeFloat32
	if half {
		dtype = DTypeFloat16
	}

	// Collect all tensor data to compute the checksum.
	var data bytes.Buffer
	for _, e := range entries {
		if err := ValidateTensorName(e.Name); err != nil {
			return err
		}
		if e.Tensor.IsEmpty() {
			return errors.Errorf("tensor %q is empty", e.Name)
		}
		offset := int64(data.Len())
		var err error
		if half {
			err = e.Tensor.SaveHalf(&data)
		} else {
			err = e.Tensor.Save(&data)
		}
		if err != nil {
			return errors.WithMessagef(err, "tensor %q", e.Name)
		}

		d := e.Tensor.Dim()
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   e.Name,
			DType:  dtype,
			Shape:  [4]int{d.Batch, d.Channel, d.Height, d.Width},
			Offset: offset,
			Size:   int64(data.Len()) - offset,
		})
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return errors.Wrap(err, "failed to marshal header")
	}

	flags := uint32(0)
	if half {
		flags |= FlagHalf
	}
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if header.Checkpoint != nil && header.Checkpoint.OptimizerType != "" {
		flags |= FlagHasOptimizer
	}
	checksum := ComputeChecksum(data.Bytes())

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	// 0x0C-0x0F: Reserved (0)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(data.Len()))
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := w.Write(fixed); err != nil {
		return errors.Wrap(err, "failed to write fixed header")
	}
	if _, err := w.Write(headerJSON); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	if pad := padding(len(headerJSON)); pad > 0 {
		if _, err := w.Write(make([]byte, pad)); err != nil {
			return errors.Wrap(err, "failed to write padding")
		}
	}
	if _, err := data.WriteTo(w); err != nil {
		return errors.Wrap(err, "failed to write tensor data")
	}
	return nil
}

// padding returns the bytes needed after a JSON header of headerSize bytes
// to align the data section to HeaderAlignment.
func padding(headerSize int) int {
	pos := FixedHeaderSize + headerSize
	return (HeaderAlignment - pos%HeaderAlignment) % HeaderAlignment
}
