package tensor

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Save writes the raw buffer as little-endian float32 values.
//
// No header or shape is written: the reader must know the Dim.
func (t *Tensor) Save(w io.Writer) error {
	if t.IsEmpty() {
		return errors.New("cannot save an empty tensor")
	}
	if err := binary.Write(w, binary.LittleEndian, t.data); err != nil {
		return errors.Wrapf(err, "failed to write %s", t)
	}
	return nil
}

// Read fills the allocated buffer from little-endian float32 values.
func (t *Tensor) Read(r io.Reader) error {
	if t.IsEmpty() {
		return errors.New("cannot read into an empty tensor")
	}
	if err := binary.Read(r, binary.LittleEndian, t.data); err != nil {
		return errors.Wrapf(err, "failed to read %s", t)
	}
	return nil
}

// SaveHalf writes the buffer as little-endian IEEE 754 binary16 values.
//
// Values outside the half-precision range saturate to infinity.
func (t *Tensor) SaveHalf(w io.Writer) error {
	if t.IsEmpty() {
		return errors.New("cannot save an empty tensor")
	}
	bits := make([]uint16, len(t.data))
	for i, v := range t.data {
		bits[i] = float16.Fromfloat32(v).Bits()
	}
	if err := binary.Write(w, binary.LittleEndian, bits); err != nil {
		return errors.Wrapf(err, "failed to write %s as float16", t)
	}
	return nil
}

// ReadHalf fills the allocated buffer from binary16 values written by SaveHalf.
func (t *Tensor) ReadHalf(r io.Reader) error {
	if t.IsEmpty() {
		return errors.New("cannot read into an empty tensor")
	}
	bits := make([]uint16, len(t.data))
	if err := binary.Read(r, binary.LittleEndian, bits); err != nil {
		return errors.Wrapf(err, "failed to read %s as float16", t)
	}
	for i, b := range bits {
		t.data[i] = float16.Frombits(b).Float32()
	}
	return nil
}
