package blendload

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// zstdDecoder is shared by every Materialize call. DecodeAll on a
// zstd.Decoder is safe for concurrent use.
var zstdDecoder *zstd.Decoder

func init() {
	var err error
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		panic("blendload: zstd decoder initialization failed: " + err.Error())
	}
}

// Materialize returns the native payload held in data, given its detected
// format. Native data is returned as-is (same slice, no copy); compressed data
// is fully decoded into a new buffer. Decoding is all-or-nothing: on error the
// returned slice is nil.
//
// Example:
//
//	format := blendload.Classify(data)
//	payload, err := blendload.Materialize(data, format)
//	if err != nil {
//	    log.Fatal(err)
//	}
func Materialize(data []byte, format Format) ([]byte, error) {
	switch format {
	case Native:
		return data, nil
	case Gzip:
		return decodeGzip(data)
	case Zstd:
		return decodeZstd(data)
	default:
		return nil, ErrUnsupportedFormat
	}
}

// Decode runs the whole pipeline on a loaded file: it rejects buffers too
// short to classify, detects the format and materializes the payload.
// Example:
//
//	data, err := os.ReadFile("scene.blend")
//	payload, format, err := blendload.Decode(data)
func Decode(data []byte) ([]byte, Format, error) {
	if len(data) < MinHeaderSize {
		return nil, Unknown, ErrShortBuffer
	}
	format := Classify(data)
	payload, err := Materialize(data, format)
	if err != nil {
		return nil, format, err
	}
	return payload, format, nil
}

func decodeGzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Format: Gzip, Err: err}
	}
	defer zr.Close()
	// Only the first member is the file; anything after it is ignored.
	zr.Multistream(false)

	var out bytes.Buffer
	if _, err := io.Copy(&out, zr); err != nil {
		return nil, &DecodeError{Format: Gzip, Err: err}
	}
	return out.Bytes(), nil
}

func decodeZstd(data []byte) ([]byte, error) {
	out, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, &DecodeError{Format: Zstd, Err: err}
	}
	return out, nil
}
