package blendload

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

// DefaultChunkSize is the size of each ranged GET issued by ChunkReader when
// no chunk size is configured.
const DefaultChunkSize = 5 * 1024 * 1024 // 5MiB

// S3Client is the subset of the S3 API needed to load objects.
// Example:
//
//	client := s3.NewFromConfig(cfg)
//	loader := blendload.Loader{S3: client}
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// ChunkReader is an io.Reader over an S3 object that fetches it one ranged
// GetObject call at a time. It is not safe for concurrent use.
// Example:
//
//	r := blendload.NewChunkReader(ctx, client, "my-bucket", "scene.blend.zst", size, 5*1024*1024)
//	data, err := io.ReadAll(r)
type ChunkReader struct {
	ctx         context.Context
	client      S3Client
	bucket, key string
	size        int64
	chunkSize   int64
	offset      int64
	pending     []byte
}

// NewChunkReader creates a ChunkReader for the first size bytes of an object.
// A non-positive chunkSize selects DefaultChunkSize.
func NewChunkReader(ctx context.Context, client S3Client, bucket, key string, size, chunkSize int64) *ChunkReader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &ChunkReader{
		ctx:       ctx,
		client:    client,
		bucket:    bucket,
		key:       key,
		size:      size,
		chunkSize: chunkSize,
	}
}

// Read implements io.Reader, downloading the next chunk once the previous one
// has been consumed.
func (c *ChunkReader) Read(p []byte) (int, error) {
	if len(c.pending) == 0 {
		if c.offset >= c.size {
			return 0, io.EOF
		}
		chunk, err := c.fetch()
		if err != nil {
			return 0, err
		}
		c.pending = chunk
	}

	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

func (c *ChunkReader) fetch() ([]byte, error) {
	end := c.offset + c.chunkSize - 1
	if end >= c.size {
		end = c.size - 1
	}
	rangeHeader := fmt.Sprintf("bytes=%d-%d", c.offset, end)

	resp, err := c.client.GetObject(c.ctx, &s3.GetObjectInput{
		Bucket: &c.bucket,
		Key:    &c.key,
		Range:  &rangeHeader,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to download chunk (%s)", rangeHeader)
	}
	defer resp.Body.Close()

	chunk, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read chunk (%s)", rangeHeader)
	}
	if int64(len(chunk)) != end-c.offset+1 {
		return nil, errors.Errorf("short chunk (%s): got %d bytes", rangeHeader, len(chunk))
	}

	c.offset = end + 1
	return chunk, nil
}
