// Package serialization provides the checkpoint format used to suspend and
// resume training.
//
// Unlike the raw layer persistence, a checkpoint is self-describing: every
// tensor is stored with its name and shape, the training position is kept
// in the header and the data section is protected by a SHA-256 checksum.
//
//	Format Structure:
//	  [0x00-0x03: Magic "NNTC"]
//	  [0x04-0x07: Version (uint32 LE)]
//	  [0x08-0x0B: Flags (uint32 LE)]
//	  [0x0C-0x0F: Reserved]
//	  [0x10-0x17: Header Size (uint64 LE)]
//	  [0x18-0x1F: Data Size (uint64 LE)]
//	  [0x20-0x3F: SHA-256 of the data section]
//	  [Header: JSON metadata]
//	  [Padding to a 64-byte boundary]
//	  [Tensor data: little-endian float32, or float16 with FlagHalf]
//
// Example usage:
//
//	err := serialization.Write(w, serialization.Header{
//	    Checkpoint: &serialization.CheckpointMeta{Iteration: 1200, Loss: 0.08},
//	}, entries, false)
//
//	header, tensors, err := serialization.Read(r, serialization.ValidationStrict)
package serialization
