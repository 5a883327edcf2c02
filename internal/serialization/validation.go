package serialization

import (
	"fmt"
	"sort"
	"strings"
)

// Validation limits for resource protection.
const (
	MaxHeaderSize    = 16 * 1024 * 1024 // 16MB
	MaxDataSize      = 1 << 32          // 4GB
	MaxTensorCount   = 100_000
	MaxTensorNameLen = 1024
)

// ValidationLevel controls the strictness of validation.
type ValidationLevel int

const (
	// ValidationStrict performs all validation checks (default).
	ValidationStrict ValidationLevel = iota
	// ValidationNormal checks names and sizes but not offset overlap.
	ValidationNormal
	// ValidationNone skips header validation. The checksum is still verified.
	ValidationNone
)

// ValidateTensorOffsets checks for overlapping tensor offsets and out-of-bounds access.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	sorted := make([]TensorMeta, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, t := range sorted {
		if t.Offset < 0 || t.Size < 0 {
			return &ValidationError{
				Err:     ErrOutOfBounds,
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset=%d, size=%d (negative values not allowed)", t.Offset, t.Size),
			}
		}
		if t.Offset+t.Size > dataSize {
			return &ValidationError{
				Err:     ErrOutOfBounds,
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", t.Offset, t.Size, dataSize),
			}
		}
		if i < len(sorted)-1 {
			next := sorted[i+1]
			if t.Offset+t.Size > next.Offset {
				return &ValidationError{
					Err:     ErrOffsetOverlap,
					Tensor:  t.Name,
					Tensor2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						t.Offset, t.Offset+t.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}
	return nil
}

// ValidateTensorName rejects empty, oversized and control-character names.
func ValidateTensorName(name string) error {
	switch {
	case name == "":
		return &ValidationError{Err: ErrInvalidTensorName, Details: "empty name"}
	case len(name) > MaxTensorNameLen:
		return &ValidationError{
			Err:     ErrInvalidTensorName,
			Tensor:  name[:32] + "...",
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
		}
	case strings.ContainsFunc(name, func(r rune) bool { return r < 0x20 || r == 0x7f }):
		return &ValidationError{Err: ErrInvalidTensorName, Tensor: name, Details: "contains control character"}
	}
	return nil
}

// validateMeta checks the per-tensor fields a reader relies on.
func validateMeta(t TensorMeta) error {
	if t.DType != DTypeFloat32 && t.DType != DTypeFloat16 {
		return &ValidationError{Err: ErrUnsupportedDType, Tensor: t.Name, Details: fmt.Sprintf("dtype %q", t.DType)}
	}
	if err := t.Dim().Validate(); err != nil {
		return &ValidationError{Err: ErrInvalidShape, Tensor: t.Name, Details: err.Error()}
	}
	if want := int64(t.Dim().Len()) * dtypeSize(t.DType); t.Size != want {
		return &ValidationError{
			Err:     ErrInvalidShape,
			Tensor:  t.Name,
			Details: fmt.Sprintf("size %d does not match shape %s (%d bytes)", t.Size, t.Dim(), want),
		}
	}
	return nil
}

// ValidateHeader performs header validation at the given level.
func ValidateHeader(h *Header, dataSize int64, level ValidationLevel) error {
	if level == ValidationNone {
		return nil
	}
	if len(h.Tensors) > MaxTensorCount {
		return &ValidationError{
			Err:     ErrTooManyTensors,
			Details: fmt.Sprintf("got %d, max %d", len(h.Tensors), MaxTensorCount),
		}
	}

	seen := make(map[string]bool, len(h.Tensors))
	for _, t := range h.Tensors {
		if err := ValidateTensorName(t.Name); err != nil {
			return err
		}
		if seen[t.Name] {
			return &ValidationError{Err: ErrInvalidTensorName, Tensor: t.Name, Details: "duplicate name"}
		}
		seen[t.Name] = true
		if err := validateMeta(t); err != nil {
			return err
		}
	}

	if level == ValidationStrict {
		return ValidateTensorOffsets(h.Tensors, dataSize)
	}
	return nil
}
