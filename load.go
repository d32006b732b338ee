package blendload

import (
	"bytes"
	"context"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

const s3Scheme = "s3://"

// Source names a file to load: either a local path or an S3 object.
type Source struct {
	Path   string
	Bucket string
	Key    string
}

// ParseSource parses a command-line location. "s3://bucket/key" names an S3
// object; anything else is a local path.
// Example:
//
//	src, err := blendload.ParseSource("s3://assets/scenes/city.blend.zst")
//	// src.Bucket == "assets", src.Key == "scenes/city.blend.zst"
func ParseSource(location string) (Source, error) {
	if !strings.HasPrefix(location, s3Scheme) {
		if location == "" {
			return Source{}, errors.New("empty source")
		}
		return Source{Path: location}, nil
	}

	bucket, key, _ := strings.Cut(strings.TrimPrefix(location, s3Scheme), "/")
	if bucket == "" || key == "" {
		return Source{}, errors.Errorf("invalid S3 location %q: want s3://bucket/key", location)
	}
	return Source{Bucket: bucket, Key: key}, nil
}

// IsS3 reports whether the source is an S3 object.
func (s Source) IsS3() bool {
	return s.Bucket != ""
}

func (s Source) String() string {
	if s.IsS3() {
		return s3Scheme + s.Bucket + "/" + s.Key
	}
	return s.Path
}

// Loader reads whole sources into memory. S3 is only needed for S3 sources.
// Example:
//
//	loader := blendload.Loader{S3: s3.NewFromConfig(cfg)}
//	data, err := loader.Load(ctx, src)
type Loader struct {
	S3        S3Client
	ChunkSize int64
}

// Load reads the entire source.
func (l Loader) Load(ctx context.Context, src Source) ([]byte, error) {
	if !src.IsS3() {
		return LoadFile(src.Path)
	}
	if l.S3 == nil {
		return nil, errors.Errorf("no S3 client configured for %s", src)
	}
	return LoadObject(ctx, l.S3, src.Bucket, src.Key, l.ChunkSize)
}

// LoadFile reads a local file into memory.
func LoadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return data, nil
}

// LoadObject reads an S3 object into memory using ranged requests of
// chunkSize bytes.
// Example:
//
//	data, err := blendload.LoadObject(ctx, client, "my-bucket", "scene.blend.gz", 0)
func LoadObject(ctx context.Context, client S3Client, bucket, key string, chunkSize int64) ([]byte, error) {
	head, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get metadata for s3://%s/%s", bucket, key)
	}
	if head.ContentLength == nil {
		return nil, errors.Errorf("content length is missing for s3://%s/%s", bucket, key)
	}
	size := *head.ContentLength
	if size == 0 {
		return nil, errors.Errorf("object s3://%s/%s is empty", bucket, key)
	}

	buf := bytes.NewBuffer(make([]byte, 0, size))
	if _, err := buf.ReadFrom(NewChunkReader(ctx, client, bucket, key, size, chunkSize)); err != nil {
		return nil, errors.Wrapf(err, "failed to load s3://%s/%s", bucket, key)
	}
	return buf.Bytes(), nil
}
