package s3

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/seventv/image-resizer/internal/instance"
)

// MockInstance keeps buckets in memory. Uploads to unknown buckets fail.
type MockInstance struct {
	mtx     sync.Mutex
	buckets map[string]map[string][]byte
}

func NewMock(ctx context.Context, files map[string]map[string][]byte) (instance.S3, error) {
	buckets := map[string]map[string][]byte{}
	for bucket, objects := range files {
		buckets[bucket] = map[string][]byte{}
		for key, data := range objects {
			buckets[bucket][key] = data
		}
	}

	return &MockInstance{
		buckets: buckets,
	}, nil
}

func (i *MockInstance) UploadFile(ctx context.Context, opts *s3manager.UploadInput) error {
	data, err := io.ReadAll(opts.Body)
	if err != nil {
		return err
	}

	i.mtx.Lock()
	defer i.mtx.Unlock()

	bucket, ok := i.buckets[aws.StringValue(opts.Bucket)]
	if !ok {
		return fmt.Errorf("bucket not found: %s", aws.StringValue(opts.Bucket))
	}

	bucket[aws.StringValue(opts.Key)] = data

	return nil
}

func (i *MockInstance) ListBuckets(ctx context.Context) ([]*s3.Bucket, error) {
	i.mtx.Lock()
	defer i.mtx.Unlock()

	buckets := make([]*s3.Bucket, 0, len(i.buckets))
	for name := range i.buckets {
		buckets = append(buckets, &s3.Bucket{Name: aws.String(name)})
	}

	return buckets, nil
}

func (i *MockInstance) Object(bucket, key string) ([]byte, bool) {
	i.mtx.Lock()
	defer i.mtx.Unlock()

	b, ok := i.buckets[bucket]
	if !ok {
		return nil, false
	}

	data, ok := b[key]

	return data, ok
}
