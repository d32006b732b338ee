package blend

import (
	"bytes"

	"github.com/pkg/errors"
)

var (
	// ErrTruncated is returned when a block header or its data runs past
	// the end of the buffer.
	ErrTruncated = errors.New("truncated blend file")
	// ErrMissingEnd is returned when the data ends without an ENDB block.
	ErrMissingEnd = errors.New("blend file has no ENDB block")
)

const endCode = "ENDB"

// Block is one file block. Data aliases the buffer passed to Parse.
type Block struct {
	Code [4]byte
	// Size is the length of Data in bytes.
	Size int64
	// OldAddr is the memory address the block had when it was saved.
	OldAddr   uint64
	SDNAIndex int
	// Count is the number of SDNA structs stored in Data.
	Count int64
	// Offset is the position of the block header in the file.
	Offset int
	Data   []byte
}

// Name returns the block code without trailing NUL padding.
func (b Block) Name() string {
	return string(bytes.TrimRight(b.Code[:], "\x00"))
}

// IsID reports whether the block holds an ID datablock (object, mesh,
// scene, ...). Those use two-letter codes such as "OB\0\0".
func (b Block) IsID() bool {
	return b.Code[2] == 0 && b.Code[3] == 0 && b.Code[0] != 0
}

// File is a parsed blend file.
type File struct {
	Header Header
	blocks []Block
}

// Parse reads the header and every block up to and including ENDB.
//
// Example:
//
//	f, err := blend.Parse(payload)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	blend.Fprint(os.Stdout, f.Roots())
func Parse(data []byte) (*File, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}

	f := &File{Header: h}
	hdrSize := h.blockHeaderSize()
	for offset := h.Size; ; {
		if offset == len(data) {
			return nil, ErrMissingEnd
		}
		if len(data)-offset < hdrSize {
			return nil, errors.Wrapf(ErrTruncated, "block header at offset %d", offset)
		}

		b := h.readBlockHeader(data[offset : offset+hdrSize])
		b.Offset = offset
		if b.Size < 0 || b.Count < 0 {
			return nil, errors.Wrapf(ErrTruncated, "block %q at offset %d has negative size", b.Name(), offset)
		}
		start := offset + hdrSize
		if b.Size > int64(len(data)-start) {
			return nil, errors.Wrapf(ErrTruncated, "block %q at offset %d needs %d bytes, %d left",
				b.Name(), offset, b.Size, len(data)-start)
		}
		b.Data = data[start : start+int(b.Size)]
		f.blocks = append(f.blocks, b)

		if b.Name() == endCode {
			return f, nil
		}
		offset = start + int(b.Size)
	}
}

func (h Header) readBlockHeader(p []byte) Block {
	var b Block
	copy(b.Code[:], p[:4])
	order := h.Order

	switch {
	case h.FormatVersion >= 1:
		b.SDNAIndex = int(int32(order.Uint32(p[4:])))
		b.OldAddr = order.Uint64(p[8:])
		b.Size = int64(order.Uint64(p[16:]))
		b.Count = int64(order.Uint64(p[24:]))
	case h.PointerSize == 8:
		b.Size = int64(int32(order.Uint32(p[4:])))
		b.OldAddr = order.Uint64(p[8:])
		b.SDNAIndex = int(int32(order.Uint32(p[16:])))
		b.Count = int64(int32(order.Uint32(p[20:])))
	default:
		b.Size = int64(int32(order.Uint32(p[4:])))
		b.OldAddr = uint64(order.Uint32(p[8:]))
		b.SDNAIndex = int(int32(order.Uint32(p[12:])))
		b.Count = int64(int32(order.Uint32(p[16:])))
	}
	return b
}

// Blocks returns every block in file order, ENDB included.
func (f *File) Blocks() []Block {
	return f.blocks
}

// Roots returns the ID blocks.
func (f *File) Roots() []Block {
	var roots []Block
	for _, b := range f.blocks {
		if b.IsID() {
			roots = append(roots, b)
		}
	}
	return roots
}

// Find returns the blocks whose code, NULs trimmed, equals code.
func (f *File) Find(code string) []Block {
	var found []Block
	for _, b := range f.blocks {
		if b.Name() == code {
			found = append(found, b)
		}
	}
	return found
}
