package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"github.com/born-ml/nntrainer/internal/tensor"
)

// Read parses a checkpoint written by Write and returns its header and
// tensors in stored order.
//
// The data checksum is always verified; level controls header validation.
func Read(r io.Reader, level ValidationLevel) (*Header, []Entry, error) {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, nil, errors.Wrap(err, "failed to read fixed header")
	}
	if string(fixed[0:4]) != MagicBytes {
		return nil, nil, ErrInvalidMagic
	}
	if version := binary.LittleEndian.Uint32(fixed[4:8]); version != FormatVersion {
		return nil, nil, errors.Wrapf(ErrUnsupportedVersion, "got %d, expected %d", version, FormatVersion)
	}
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	dataSize := binary.LittleEndian.Uint64(fixed[24:32])
	if headerSize > MaxHeaderSize {
		return nil, nil, errors.Wrapf(ErrHeaderTooLarge, "%d bytes", headerSize)
	}
	if dataSize > MaxDataSize {
		return nil, nil, errors.Wrapf(ErrOutOfBounds, "data section of %d bytes", dataSize)
	}
	var stored [32]byte
	copy(stored[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, nil, errors.Wrap(err, "failed to read header")
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, nil, errors.Wrap(err, "failed to parse header")
	}
	if _, err := io.CopyN(io.Discard, r, int64(padding(int(headerSize)))); err != nil {
		return nil, nil, errors.Wrap(err, "failed to skip padding")
	}

	data := make([]byte, dataSize)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, nil, errors.Wrap(err, "failed to read tensor data")
	}
	if err := ValidateChecksum(ComputeChecksum(data), stored); err != nil {
		return nil, nil, err
	}
	if err := ValidateHeader(&header, int64(dataSize), level); err != nil {
		return nil, nil, errors.WithMessage(err, "validation failed")
	}

	entries := make([]Entry, 0, len(header.Tensors))
	for _, meta := range header.Tensors {
		t, err := decode(meta, data)
		if err != nil {
			return nil, nil, err
		}
		entries = append(entries, Entry{Name: meta.Name, Tensor: t})
	}
	return &header, entries, nil
}

func decode(meta TensorMeta, data []byte) (*tensor.Tensor, error) {
	if err := validateMeta(meta); err != nil {
		return nil, err
	}
	if meta.Offset < 0 || meta.Offset+meta.Size > int64(len(data)) {
		return nil, &ValidationError{Err: ErrOutOfBounds, Tensor: meta.Name, Details: "outside data section"}
	}

	t, err := tensor.New(meta.Dim())
	if err != nil {
		return nil, errors.WithMessagef(err, "tensor %q", meta.Name)
	}
	src := bytes.NewReader(data[meta.Offset : meta.Offset+meta.Size])
	if meta.DType == DTypeFloat16 {
		err = t.ReadHalf(src)
	} else {
		err = t.Read(src)
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "tensor %q", meta.Name)
	}
	return t, nil
}
