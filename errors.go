package blendload

import (
	"github.com/pkg/errors"
)

var (
	// ErrUnsupportedFormat is returned when the leading bytes match none of
	// the known signatures. It is not recoverable for the given input.
	ErrUnsupportedFormat = errors.New("unsupported container format")

	// ErrShortBuffer is returned by Decode for input shorter than MinHeaderSize.
	ErrShortBuffer = errors.New("buffer too short to identify a container format")

	// ErrNotNative is returned by Pack when the payload is not a native .blend file.
	ErrNotNative = errors.New("payload is not a native blend file")
)

// DecodeError reports a malformed compressed stream. Format tells which
// decoder rejected it and Err holds the decoder's own error.
// Example:
//
//	_, err := blendload.Materialize(data, blendload.Gzip)
//	var decodeErr *blendload.DecodeError
//	if errors.As(err, &decodeErr) {
//	    log.Printf("bad %s stream: %v", decodeErr.Format, decodeErr.Err)
//	}
type DecodeError struct {
	Format Format
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return e.Format.String() + " decode error"
	}
	return e.Format.String() + " decode: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
