package serialization

import (
	"time"

	"github.com/strand-ml/strand/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "STRD"
	FormatVersion   = 1
	FixedHeaderSize = 64   // fixed header size (0x40 bytes)
	DataAlignment   = 64   // tensor data is aligned to 64 bytes
	ChecksumSize    = 32   // SHA-256 checksum size
	ChecksumOffset  = 0x20 // checksum offset in the fixed header
)

// Data type string constants for serialization.
const (
	DTypeFloat32 = "float32"
	DTypeInt32   = "int32"
	DTypeBool    = "bool"
)

// Flags for the .strand format.
const (
	FlagHasMetadata uint32 = 1 << 0 // bit 0: custom metadata included
)

// Header is the JSON header in a .strand file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	StrandVersion string            `json:"strand_version"` // version of Strand that created this file
	CreatedAt     time.Time         `json:"created_at"`
	Model         *ModelMeta        `json:"model,omitempty"` // hyperparameters of the saved model
	Tensors       []TensorMeta      `json:"tensors"`
	Metadata      map[string]string `json:"metadata"` // custom metadata
}

// ModelMeta records the hyperparameters of the saved model. Loaders
// compare these against the receiving model's configuration before any
// tensor data is touched.
type ModelMeta struct {
	VocabSize int     `json:"vocab_size"`
	DModel    int     `json:"d_model"`
	NumHeads  int     `json:"n_heads"`
	NumLayers int     `json:"n_layers"`
	FFDim     int     `json:"d_ff"`
	MaxSeqLen int     `json:"max_seq_length"`
	Dropout   float32 `json:"dropout"`
}

// TensorMeta describes a tensor in the .strand file.
type TensorMeta struct {
	Name   string `json:"name"`   // parameter name (e.g. "blocks.0.attention.wq.weight")
	DType  string `json:"dtype"`  // data type (e.g. "float32")
	Shape  []int  `json:"shape"`  // tensor shape
	Offset int64  `json:"offset"` // offset in bytes from the start of the data section
	Size   int64  `json:"size"`   // size in bytes
}

// dtypeToString converts tensor.DataType to its string representation.
func dtypeToString(dt tensor.DataType) string {
	switch dt {
	case tensor.Float32:
		return DTypeFloat32
	case tensor.Int32:
		return DTypeInt32
	case tensor.Bool:
		return DTypeBool
	default:
		return "unknown"
	}
}

// stringToDtype converts a string representation to tensor.DataType.
func stringToDtype(s string) (tensor.DataType, bool) {
	switch s {
	case DTypeFloat32:
		return tensor.Float32, true
	case DTypeInt32:
		return tensor.Int32, true
	case DTypeBool:
		return tensor.Bool, true
	default:
		return 0, false
	}
}
