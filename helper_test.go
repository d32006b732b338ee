package blendload

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const testUploadID = "test-upload-id-12345"

// nativePayload builds a small legacy-header .blend payload: header, one
// object block, ENDB.
func nativePayload(t testing.TB) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("BLENDER-v293")
	writeBlock := func(code string, data []byte) {
		var hdr [24]byte
		copy(hdr[:4], code)
		binary.LittleEndian.PutUint32(hdr[4:], uint32(len(data)))
		binary.LittleEndian.PutUint64(hdr[8:], 0x7f0012345678)
		binary.LittleEndian.PutUint32(hdr[16:], 0)
		binary.LittleEndian.PutUint32(hdr[20:], 1)
		buf.Write(hdr[:])
		buf.Write(data)
	}
	writeBlock("OB\x00\x00", bytes.Repeat([]byte("cube"), 64))
	writeBlock("ENDB", nil)
	return buf.Bytes()
}

// mockS3Client serves ranged GetObject requests from an in-memory object and
// records multipart uploads.
type mockS3Client struct {
	data          []byte
	contentLength *int64
	getCallCount  int
	headCallCount int
	getErr        error

	uploadedParts map[int32][]byte
	completed     bool
	aborted       bool
	createErr     error
	uploadErr     error // returned from UploadPart once failPart is reached
	failPart      int32
	completeErr   error
}

func newMockS3Client(data []byte) *mockS3Client {
	size := int64(len(data))
	return &mockS3Client{data: data, contentLength: &size}
}

func (m *mockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.getCallCount++
	if m.getErr != nil {
		return nil, m.getErr
	}

	size := int64(len(m.data))
	start, end := int64(0), size-1
	if params.Range != nil {
		var err error
		start, end, err = parseRangeHeader(*params.Range, size)
		if err != nil {
			return nil, err
		}
	}
	if start < 0 || start >= size || end < start || end >= size {
		return nil, fmt.Errorf("invalid range: %d-%d (content length: %d)", start, end, size)
	}

	body := m.data[start : end+1]
	length := int64(len(body))
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: &length,
	}, nil
}

func (m *mockS3Client) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.headCallCount++
	return &s3.HeadObjectOutput{ContentLength: m.contentLength}, nil
}

func (m *mockS3Client) CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.uploadedParts = make(map[int32][]byte)
	uploadID := testUploadID
	return &s3.CreateMultipartUploadOutput{UploadId: &uploadID}, nil
}

func (m *mockS3Client) UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	if params.UploadId == nil || *params.UploadId != testUploadID {
		return nil, fmt.Errorf("unknown upload id")
	}
	if m.uploadErr != nil && *params.PartNumber >= m.failPart {
		return nil, m.uploadErr
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	if params.ContentLength == nil || *params.ContentLength != int64(len(data)) {
		return nil, fmt.Errorf("content length mismatch for part %d", *params.PartNumber)
	}
	m.uploadedParts[*params.PartNumber] = data
	etag := fmt.Sprintf("\"etag-part-%d\"", *params.PartNumber)
	return &s3.UploadPartOutput{ETag: &etag}, nil
}

func (m *mockS3Client) CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	if m.completeErr != nil {
		return nil, m.completeErr
	}
	for _, p := range params.MultipartUpload.Parts {
		want := fmt.Sprintf("\"etag-part-%d\"", *p.PartNumber)
		if p.ETag == nil || *p.ETag != want {
			return nil, fmt.Errorf("bad etag for part %d", *p.PartNumber)
		}
	}
	m.completed = true
	return &s3.CompleteMultipartUploadOutput{}, nil
}

func (m *mockS3Client) AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	m.aborted = true
	return &s3.AbortMultipartUploadOutput{}, nil
}

// object returns the uploaded parts joined in part order.
func (m *mockS3Client) object() []byte {
	numbers := make([]int, 0, len(m.uploadedParts))
	for n := range m.uploadedParts {
		numbers = append(numbers, int(n))
	}
	sort.Ints(numbers)
	var out []byte
	for _, n := range numbers {
		out = append(out, m.uploadedParts[int32(n)]...)
	}
	return out
}

// parseRangeHeader parses S3 range headers like "bytes=0-499"
func parseRangeHeader(rangeHeader string, contentLength int64) (int64, int64, error) {
	var start, end int64
	if _, err := fmt.Sscanf(rangeHeader, "bytes=%d-%d", &start, &end); err != nil {
		return 0, 0, fmt.Errorf("invalid range format: %s", rangeHeader)
	}
	if end >= contentLength {
		end = contentLength - 1
	}
	return start, end, nil
}
