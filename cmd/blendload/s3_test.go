package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// memS3 is an in-memory bucket store covering the calls the CLI makes.
type memS3 struct {
	objects map[string][]byte
	uploads map[string]map[int32][]byte
	next    int
}

func newMemS3() *memS3 {
	return &memS3{objects: map[string][]byte{}, uploads: map[string]map[int32][]byte{}}
}

func (m *memS3) object(bucket, key *string) ([]byte, error) {
	data, ok := m.objects[*bucket+"/"+*key]
	if !ok {
		return nil, fmt.Errorf("NoSuchKey: %s/%s", *bucket, *key)
	}
	return data, nil
}

func (m *memS3) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	data, err := m.object(params.Bucket, params.Key)
	if err != nil {
		return nil, err
	}
	size := int64(len(data))
	return &s3.HeadObjectOutput{ContentLength: &size}, nil
}

func (m *memS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, err := m.object(params.Bucket, params.Key)
	if err != nil {
		return nil, err
	}
	if params.Range != nil {
		var start, end int
		if _, err := fmt.Sscanf(*params.Range, "bytes=%d-%d", &start, &end); err != nil {
			return nil, err
		}
		if end >= len(data) {
			end = len(data) - 1
		}
		data = data[start : end+1]
	}
	size := int64(len(data))
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data)), ContentLength: &size}, nil
}

func (m *memS3) CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	m.next++
	id := fmt.Sprintf("upload-%d", m.next)
	m.uploads[id] = map[int32][]byte{}
	return &s3.CreateMultipartUploadOutput{UploadId: &id}, nil
}

func (m *memS3) UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	parts, ok := m.uploads[*params.UploadId]
	if !ok {
		return nil, fmt.Errorf("NoSuchUpload: %s", *params.UploadId)
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	parts[*params.PartNumber] = data
	etag := fmt.Sprintf("%q", fmt.Sprint(*params.PartNumber))
	return &s3.UploadPartOutput{ETag: &etag}, nil
}

func (m *memS3) CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	parts, ok := m.uploads[*params.UploadId]
	if !ok {
		return nil, fmt.Errorf("NoSuchUpload: %s", *params.UploadId)
	}
	numbers := make([]int, 0, len(parts))
	for n := range parts {
		numbers = append(numbers, int(n))
	}
	sort.Ints(numbers)
	var data []byte
	for _, n := range numbers {
		data = append(data, parts[int32(n)]...)
	}
	m.objects[*params.Bucket+"/"+*params.Key] = data
	delete(m.uploads, *params.UploadId)
	return &s3.CompleteMultipartUploadOutput{}, nil
}

func (m *memS3) AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	delete(m.uploads, *params.UploadId)
	return &s3.AbortMultipartUploadOutput{}, nil
}
