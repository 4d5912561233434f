// Package u4pak reads, verifies, extracts, and writes Unreal Engine .pak
// archives: a sequence of file payloads, optionally zlib-compressed per
// block and optionally AES-256-ECB encrypted, followed by a centralized
// index and a fixed 44-byte footer.
package u4pak

import "github.com/panzi/u4pak/internal/codec"

// PakMagic identifies a valid archive footer.
const PakMagic uint32 = 0x5A6F12E1

// FooterSize is the fixed byte size of the trailing footer.
const FooterSize = 44

// Compression method identifiers.
const (
	ComprNone       uint32 = 0x00
	ComprZlib       uint32 = 0x01
	ComprBiasMemory uint32 = 0x10
	ComprBiasSpeed  uint32 = 0x20
)

// DefaultBlockSize is the default uncompressed compression-block size used
// by the writer when the caller does not specify one.
const DefaultBlockSize uint32 = 64 * 1024

// BufferSize is the chunk size used when streaming uncompressed record
// bytes through a digest or copy.
const BufferSize = 64 * 1024

// Variant selects an alternate record layout for a given version; at
// present only version 4 has a non-standard variant.
type Variant int

const (
	// Standard is the default record layout for every supported version.
	Standard Variant = iota
	// ConanExiles is version 4's variant, which appends one extra
	// (ignored) trailing u32 field to every record.
	ConanExiles
)

// Encoding re-exports the string codec's encoding selector for callers
// that configure ReadOptions/WriteOptions.
type Encoding = codec.Encoding

// String encodings accepted for non-negative length-prefixed strings.
const (
	UTF8   = codec.UTF8
	ASCII  = codec.ASCII
	Latin1 = codec.Latin1
)

// compressionMethodName renders a compression method id for diagnostics.
func compressionMethodName(method uint32) string {
	switch method {
	case ComprNone:
		return "none"
	case ComprZlib:
		return "zlib"
	case ComprBiasMemory:
		return "bias-memory"
	case ComprBiasSpeed:
		return "bias-speed"
	default:
		return "unknown"
	}
}

// isKnownCompressionMethod reports whether method is one the checker
// accepts at the metadata level (it does not imply the writer/extractor
// can produce or consume it).
func isKnownCompressionMethod(method uint32) bool {
	switch method {
	case ComprNone, ComprZlib, ComprBiasMemory, ComprBiasSpeed:
		return true
	default:
		return false
	}
}
