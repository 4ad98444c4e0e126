// Package serialization implements the .strand binary checkpoint format.
//
// A .strand file has a 64-byte fixed header, a JSON header describing the
// tensors and the model hyperparameters, padding, and raw tensor data
// aligned to a 64-byte boundary:
//
//	Fixed header (64 bytes):
//	  0x00-0x03  Magic "STRD"
//	  0x04-0x07  Version (uint32 LE)
//	  0x08-0x0B  Flags (uint32 LE)
//	  0x0C-0x0F  Reserved
//	  0x10-0x17  JSON header size (uint64 LE)
//	  0x18-0x1F  Tensor data size (uint64 LE)
//	  0x20-0x3F  SHA-256 checksum of the tensor data
//	[JSON header]
//	[padding to the next 64-byte boundary]
//	[tensor data: raw little-endian bytes, concatenated in header order]
//
// The checksum covers only the tensor data section. Readers validate it
// by default; ReaderOptions.SkipChecksumValidation trades that safety for
// load speed on large checkpoints.
package serialization
