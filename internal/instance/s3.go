package instance

import (
	"context"

	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

type S3 interface {
	UploadFile(ctx context.Context, opts *s3manager.UploadInput) error
	ListBuckets(ctx context.Context) ([]*s3.Bucket, error)
}
