package blendload

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Saver writes native payloads to a local file or an S3 object, wrapped in
// the requested container. S3 is only needed for S3 destinations.
// Example:
//
//	s := blendload.Saver{S3: s3.NewFromConfig(cfg)}
//	dst, _ := blendload.ParseSource("s3://my-bucket/scene.blend.zst")
//	n, err := s.Save(ctx, dst, payload, blendload.Zstd)
type Saver struct {
	S3 S3Uploader
	// PartSize is the multipart upload part size; zero selects MinPartSize.
	PartSize int64
}

// Save packs payload into format and writes it to dst. It returns the number
// of bytes stored. Payloads that are not native .blend data are refused with
// ErrNotNative. A failed save leaves no partial file or object behind.
func (s Saver) Save(ctx context.Context, dst Source, payload []byte, format Format) (int64, error) {
	if Classify(payload) != Native {
		return 0, ErrNotNative
	}
	if dst.IsS3() {
		return s.saveObject(ctx, dst, payload, format)
	}
	return saveFile(dst.Path, payload, format)
}

func (s Saver) saveObject(ctx context.Context, dst Source, payload []byte, format Format) (int64, error) {
	if s.S3 == nil {
		return 0, errors.Errorf("no S3 client configured for %s", dst)
	}
	w, err := NewS3Writer(ctx, s.S3, dst.Bucket, dst.Key, s.PartSize)
	if err != nil {
		return 0, err
	}
	cw := &countingWriter{w: w}
	if err := packTo(cw, payload, format); err != nil {
		w.Abort()
		return 0, errors.Wrapf(err, "failed to upload %s", dst)
	}
	if err := w.Close(); err != nil {
		return 0, errors.Wrapf(err, "failed to upload %s", dst)
	}
	return cw.n, nil
}

func saveFile(path string, payload []byte, format Format) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to create %s", path)
	}
	cw := &countingWriter{w: f}
	if err := packTo(cw, payload, format); err != nil {
		f.Close()
		os.Remove(path)
		return 0, errors.Wrapf(err, "failed to write %s", path)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return 0, errors.Wrapf(err, "failed to write %s", path)
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
