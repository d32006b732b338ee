// Package blend reads the block structure of native (uncompressed) Blender
// files: the file header and the sequence of file-block headers up to ENDB.
// It does not decode SDNA or block contents.
package blend

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrBadMagic is returned when data does not start with "BLENDER".
	ErrBadMagic = errors.New("not a blend file")
	// ErrBadHeader is returned for a malformed or unsupported file header.
	ErrBadHeader = errors.New("malformed blend file header")
)

const (
	magic             = "BLENDER"
	legacyHeaderSize  = 12
	largeHeaderSize   = 17
	largeFormatLatest = 1
)

// Header describes the file-wide encoding parameters.
type Header struct {
	// PointerSize is 4 or 8.
	PointerSize int
	Order       binary.ByteOrder
	// Version is the Blender version times 100, e.g. 293 or 405.
	Version int
	// FormatVersion is 0 for the legacy 12-byte header, otherwise the
	// file format version of the large header.
	FormatVersion int
	// Size is the number of bytes the header occupies.
	Size int
}

// ParseHeader decodes the header at the start of data.
//
// Two layouts exist. The legacy one is "BLENDER" followed by the pointer
// size ('_' = 4, '-' = 8), the byte order ('v' little, 'V' big) and a
// three-digit version, e.g. "BLENDER-v293". The large one is "BLENDER",
// a two-digit header size, '-', a two-digit format version, 'v' and a
// four-digit version, e.g. "BLENDER17-01v0405"; it always uses 8-byte
// pointers and little-endian integers.
func ParseHeader(data []byte) (Header, error) {
	if !bytes.HasPrefix(data, []byte(magic)) {
		return Header{}, ErrBadMagic
	}
	if len(data) < legacyHeaderSize {
		return Header{}, errors.Wrapf(ErrBadHeader, "header truncated at %d bytes", len(data))
	}

	if isDigit(data[7]) {
		return parseLargeHeader(data)
	}

	h := Header{Size: legacyHeaderSize}
	switch data[7] {
	case '_':
		h.PointerSize = 4
	case '-':
		h.PointerSize = 8
	default:
		return Header{}, errors.Wrapf(ErrBadHeader, "unknown pointer size marker %q", data[7])
	}
	order, err := byteOrder(data[8])
	if err != nil {
		return Header{}, err
	}
	h.Order = order
	if h.Version, err = atoi(data[9:12]); err != nil {
		return Header{}, err
	}
	return h, nil
}

func parseLargeHeader(data []byte) (Header, error) {
	size, err := atoi(data[7:9])
	if err != nil {
		return Header{}, err
	}
	if size != largeHeaderSize {
		return Header{}, errors.Wrapf(ErrBadHeader, "unsupported header size %d", size)
	}
	if len(data) < largeHeaderSize {
		return Header{}, errors.Wrapf(ErrBadHeader, "header truncated at %d bytes", len(data))
	}
	if data[9] != '-' {
		return Header{}, errors.Wrapf(ErrBadHeader, "unknown pointer size marker %q", data[9])
	}

	h := Header{PointerSize: 8, Size: largeHeaderSize}
	if h.FormatVersion, err = atoi(data[10:12]); err != nil {
		return Header{}, err
	}
	if h.FormatVersion < 1 || h.FormatVersion > largeFormatLatest {
		return Header{}, errors.Wrapf(ErrBadHeader, "unsupported file format version %d", h.FormatVersion)
	}
	if data[12] != 'v' {
		return Header{}, errors.Wrapf(ErrBadHeader, "unsupported byte order marker %q", data[12])
	}
	h.Order = binary.LittleEndian
	if h.Version, err = atoi(data[13:17]); err != nil {
		return Header{}, err
	}
	return h, nil
}

func (h Header) String() string {
	order := "little-endian"
	if h.Order == binary.BigEndian {
		order = "big-endian"
	}
	return fmt.Sprintf("Blender %d.%02d (%d-bit pointers, %s)", h.Version/100, h.Version%100, h.PointerSize*8, order)
}

// blockHeaderSize is the size of each file-block header for this file.
func (h Header) blockHeaderSize() int {
	switch {
	case h.FormatVersion >= 1:
		return 32
	case h.PointerSize == 8:
		return 24
	default:
		return 20
	}
}

func byteOrder(c byte) (binary.ByteOrder, error) {
	switch c {
	case 'v':
		return binary.LittleEndian, nil
	case 'V':
		return binary.BigEndian, nil
	}
	return nil, errors.Wrapf(ErrBadHeader, "unknown byte order marker %q", c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func atoi(digits []byte) (int, error) {
	n := 0
	for _, c := range digits {
		if !isDigit(c) {
			return 0, errors.Wrapf(ErrBadHeader, "invalid number %q", digits)
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}
