package blendload

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// NewCompressor returns a writer that wraps everything written to it in the
// given container before passing it on to w. Close must be called to flush
// the container trailer; it does not close w.
//
// Supported formats:
//   - Native: no compression (passthrough to w)
//   - Gzip: gzip (DEFLATE) compression
//   - Zstd: Zstandard compression at the default level
//
// Example:
//
//	f, _ := os.Create("scene.blend.zst")
//	wc, err := blendload.NewCompressor(f, blendload.Zstd)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_, err = wc.Write(payload)
//	err = wc.Close()
func NewCompressor(w io.Writer, format Format) (io.WriteCloser, error) {
	switch format {
	case Native:
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriter(w), nil
	case Zstd:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, errors.Wrap(err, "failed to create zstd writer")
		}
		return zw, nil
	default:
		return nil, ErrUnsupportedFormat
	}
}

// Pack wraps a native payload in the given container. Payloads that are not
// native .blend data are refused with ErrNotNative, so the result always
// satisfies Classify(out) == format and Materialize(out, format) == payload.
// For Native the payload itself is returned.
// Example:
//
//	compressed, err := blendload.Pack(payload, blendload.Gzip)
func Pack(payload []byte, format Format) ([]byte, error) {
	if Classify(payload) != Native {
		return nil, ErrNotNative
	}
	if format == Native {
		return payload, nil
	}

	var buf bytes.Buffer
	if err := packTo(&buf, payload, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// packTo streams payload into w wrapped in the given container.
func packTo(w io.Writer, payload []byte, format Format) error {
	if Classify(payload) != Native {
		return ErrNotNative
	}
	wc, err := NewCompressor(w, format)
	if err != nil {
		return err
	}
	if _, err := wc.Write(payload); err != nil {
		wc.Close()
		return errors.Wrapf(err, "failed to write %s container", format)
	}
	if err := wc.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %s compressor", format)
	}
	return nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
