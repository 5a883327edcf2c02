package serialization

import (
	"time"

	"github.com/born-ml/nntrainer/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "NNTC"
	FormatVersion   = 1
	HeaderAlignment = 64   // Tensor data starts on a 64-byte boundary
	FixedHeaderSize = 64   // Fixed header size (0x40 bytes)
	ChecksumSize    = 32   // SHA-256 checksum size
	ChecksumOffset  = 0x20 // Checksum offset in the fixed header
)

// Data type names stored in TensorMeta.
const (
	DTypeFloat32 = "float32"
	DTypeFloat16 = "float16"
)

// Flags of the fixed header.
const (
	FlagHalf         uint32 = 1 << 0 // bit 0: tensor data stored as float16
	FlagHasOptimizer uint32 = 1 << 1 // bit 1: optimizer state included
	FlagHasMetadata  uint32 = 1 << 2 // bit 2: custom metadata included
)

// Header is the JSON header of a checkpoint.
type Header struct {
	FormatVersion int               `json:"format_version"`
	CreatedAt     time.Time         `json:"created_at"`
	Tensors       []TensorMeta      `json:"tensors"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Checkpoint    *CheckpointMeta   `json:"checkpoint,omitempty"`
}

// CheckpointMeta records where training stood when the checkpoint was taken.
type CheckpointMeta struct {
	Iteration     int     `json:"iteration"`
	Loss          float32 `json:"loss"`
	OptimizerType string  `json:"optimizer_type,omitempty"`
}

// TensorMeta describes one tensor of the data section.
type TensorMeta struct {
	Name   string `json:"name"`   // e.g. "fully_connected1:weight"
	DType  string `json:"dtype"`  // float32 or float16
	Shape  [4]int `json:"shape"`  // batch, channel, height, width
	Offset int64  `json:"offset"` // Offset from the start of the data section
	Size   int64  `json:"size"`   // Size in bytes
}

// Dim returns the shape of the tensor.
func (m TensorMeta) Dim() tensor.Dim {
	return tensor.NewDim(m.Shape[0], m.Shape[1], m.Shape[2], m.Shape[3])
}

// Entry is a named tensor to store in a checkpoint.
type Entry struct {
	Name   string
	Tensor *tensor.Tensor
}

func dtypeSize(dtype string) int64 {
	if dtype == DTypeFloat16 {
		return 2
	}
	return 4
}
