// Package blendload loads Blender files that may be stored raw or wrapped in a
// gzip or Zstandard container, and hands back the native .blend payload.
package blendload

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// Format represents the container a loaded file is stored in.
// Example:
//
//	format := blendload.Classify(data)
//	ext := format.Extension() // Returns ".blend.gz" for gzipped files
type Format int

const (
	// Native indicates an uncompressed .blend payload
	Native Format = iota
	// Gzip indicates a gzip (DEFLATE) container
	Gzip
	// Zstd indicates a Zstandard container
	Zstd
	// Unknown indicates that none of the known signatures matched
	Unknown
)

// MinHeaderSize is the smallest buffer Decode accepts. It is the width of the
// widest fixed-size signature check that every format relies on.
const MinHeaderSize = 4

const (
	zstdFrameMagic     = 0xFD2FB528
	zstdSkippableMagic = 0x184D2A5 // top 28 bits of 0x184D2A50..0x184D2A5F
)

var (
	nativeMagic = []byte("BLENDER")
	gzipMagic   = []byte{0x1F, 0x8B, 0x08}
)

// String returns the lower-case name of the format.
func (format Format) String() string {
	switch format {
	case Native:
		return "native"
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	case Unknown:
		return "unknown"
	}
	return fmt.Sprintf("Format(%d)", int(format))
}

// Extension returns the conventional file extension for the format.
// Example:
//
//	format := blendload.Zstd
//	ext := format.Extension() // Returns ".blend.zst"
func (format Format) Extension() string {
	switch format {
	case Native:
		return ".blend"
	case Gzip:
		return ".blend.gz"
	case Zstd:
		return ".blend.zst"
	}
	return ""
}

// ParseFormat maps a user supplied name to a Format.
// Example:
//
//	format, err := blendload.ParseFormat("zst") // Returns blendload.Zstd
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "native", "none", "uncompressed":
		return Native, nil
	case "gzip", "gz":
		return Gzip, nil
	case "zstd", "zst":
		return Zstd, nil
	default:
		return Unknown, fmt.Errorf("unsupported format: %q", name)
	}
}

// Classify detects the container format from the leading bytes of data.
// It never reads past len(data): a signature wider than the buffer simply
// does not match, so short or empty input yields Unknown.
//
// Only offset 0 is inspected. A Zstandard skippable frame (magic
// 0x184D2A50..0x184D2A5F) is reported as Zstd even though LZ4 frame files may
// legitimately start with one; such LZ4 files are misclassified and will fail
// to decode rather than being detected up front.
//
// Example:
//
//	data := []byte{0x1F, 0x8B, 0x08, ...} // Gzip magic bytes
//	format := blendload.Classify(data) // Returns blendload.Gzip
func Classify(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, nativeMagic):
		return Native
	case bytes.HasPrefix(data, gzipMagic):
		return Gzip
	case isZstd(data):
		return Zstd
	}
	return Unknown
}

func isZstd(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	magic := binary.LittleEndian.Uint32(data[:4])
	return magic == zstdFrameMagic || magic>>4 == zstdSkippableMagic
}
