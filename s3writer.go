package blendload

import (
	"bytes"
	"context"
	"sort"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pkg/errors"
)

const (
	// MinPartSize is the smallest part S3 accepts in a multipart upload,
	// except for the last one.
	MinPartSize = 5 * 1024 * 1024 // 5MiB
	maxParts    = 10000
)

// S3Uploader is the subset of the S3 API needed to write objects.
// Example:
//
//	client := s3.NewFromConfig(cfg)
//	w, err := blendload.NewS3Writer(ctx, client, "my-bucket", "scene.blend.zst", 0)
type S3Uploader interface {
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// S3Writer is an io.WriteCloser that stores everything written to it as one
// S3 object, using a multipart upload. Data is buffered until a part is full;
// the object only becomes visible once Close succeeds.
//
// After the first error the writer is unusable and every later call returns
// that error. Abort discards the upload. It is not safe for concurrent use.
//
// Example:
//
//	w, err := blendload.NewS3Writer(ctx, client, "my-bucket", "scene.blend.gz", 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	zw, _ := blendload.NewCompressor(w, blendload.Gzip)
//	zw.Write(payload)
//	zw.Close()
//	if err := w.Close(); err != nil {
//	    log.Fatal(err)
//	}
type S3Writer struct {
	ctx         context.Context
	client      S3Uploader
	bucket, key string
	partSize    int64
	uploadID    *string
	buf         bytes.Buffer
	partNumber  int32
	parts       []types.CompletedPart
	closed      bool
	err         error
}

// NewS3Writer starts a multipart upload to bucket/key. A non-positive
// partSize selects MinPartSize; smaller sizes are rejected.
func NewS3Writer(ctx context.Context, client S3Uploader, bucket, key string, partSize int64) (*S3Writer, error) {
	if client == nil {
		return nil, errors.New("S3 client cannot be nil")
	}
	if bucket == "" || key == "" {
		return nil, errors.Errorf("invalid S3 destination %q/%q: bucket and key are required", bucket, key)
	}
	if partSize <= 0 {
		partSize = MinPartSize
	}
	if partSize < MinPartSize {
		return nil, errors.Errorf("part size must be at least 5MiB (%d bytes), got %d bytes", MinPartSize, partSize)
	}

	w := &S3Writer{
		ctx:        ctx,
		client:     client,
		bucket:     bucket,
		key:        key,
		partSize:   partSize,
		partNumber: 1,
	}
	resp, err := client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: &w.bucket,
		Key:    &w.key,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create multipart upload for s3://%s/%s", bucket, key)
	}
	w.uploadID = resp.UploadId
	return w, nil
}

// Write buffers p and uploads every part that fills up.
func (w *S3Writer) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	if w.closed {
		return 0, errors.Errorf("write to closed S3Writer (s3://%s/%s)", w.bucket, w.key)
	}

	written := 0
	for len(p) > 0 {
		n := int(w.partSize) - w.buf.Len()
		if n > len(p) {
			n = len(p)
		}
		w.buf.Write(p[:n])
		written += n
		p = p[n:]

		if int64(w.buf.Len()) >= w.partSize {
			if err := w.uploadPart(); err != nil {
				w.err = err
				return written, err
			}
		}
	}
	return written, nil
}

// Close uploads the buffered tail and completes the upload. On failure the
// upload is aborted.
func (w *S3Writer) Close() error {
	if w.closed {
		return w.err
	}
	w.closed = true
	if w.err != nil {
		w.abort()
		return w.err
	}

	if err := w.uploadPart(); err != nil {
		w.err = err
		w.abort()
		return err
	}
	if err := w.complete(); err != nil {
		w.err = err
		w.abort()
		return err
	}
	return nil
}

// Abort discards the upload and every part uploaded so far.
func (w *S3Writer) Abort() error {
	w.closed = true
	if w.err == nil {
		w.err = errors.Errorf("upload to s3://%s/%s aborted", w.bucket, w.key)
	}
	return w.abort()
}

func (w *S3Writer) uploadPart() error {
	if w.buf.Len() == 0 {
		return nil
	}
	if w.partNumber > maxParts {
		return errors.Errorf("exceeded maximum number of parts (%d) for multipart upload", maxParts)
	}

	data := append([]byte(nil), w.buf.Bytes()...)
	size := int64(len(data))
	partNumber := w.partNumber
	resp, err := w.client.UploadPart(w.ctx, &s3.UploadPartInput{
		Bucket:        &w.bucket,
		Key:           &w.key,
		PartNumber:    &partNumber,
		UploadId:      w.uploadID,
		Body:          bytes.NewReader(data),
		ContentLength: &size,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to upload part %d", partNumber)
	}
	if resp.ETag == nil || *resp.ETag == "" {
		return errors.Errorf("received empty ETag for part %d", partNumber)
	}

	w.parts = append(w.parts, types.CompletedPart{ETag: resp.ETag, PartNumber: &partNumber})
	w.buf.Reset()
	w.partNumber++
	return nil
}

func (w *S3Writer) complete() error {
	if len(w.parts) == 0 {
		return errors.Errorf("no data written to s3://%s/%s", w.bucket, w.key)
	}
	sort.Slice(w.parts, func(i, j int) bool {
		return *w.parts[i].PartNumber < *w.parts[j].PartNumber
	})

	_, err := w.client.CompleteMultipartUpload(w.ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          &w.bucket,
		Key:             &w.key,
		UploadId:        w.uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{Parts: w.parts},
	})
	if err != nil {
		return errors.Wrapf(err, "failed to complete multipart upload with %d parts", len(w.parts))
	}
	return nil
}

func (w *S3Writer) abort() error {
	if w.uploadID == nil {
		return nil
	}
	_, err := w.client.AbortMultipartUpload(w.ctx, &s3.AbortMultipartUploadInput{
		Bucket:   &w.bucket,
		Key:      &w.key,
		UploadId: w.uploadID,
	})
	if err != nil {
		return errors.Wrap(err, "failed to abort multipart upload")
	}
	return nil
}
