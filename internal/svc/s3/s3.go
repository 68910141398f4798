package s3

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/seventv/image-resizer/internal/instance"
)

type Options struct {
	Region      string
	Endpoint    string
	AccessToken string
	SecretKey   string
}

type Instance struct {
	session  *session.Session
	client   *s3.S3
	uploader *s3manager.Uploader
}

func New(o Options) (instance.S3, error) {
	config := aws.NewConfig().
		WithRegion(o.Region).
		WithCredentials(credentials.NewStaticCredentials(o.AccessToken, o.SecretKey, "")).
		WithS3ForcePathStyle(true)

	if o.Endpoint != "" {
		config = config.WithEndpoint(o.Endpoint)
	}

	sess, err := session.NewSession(config)
	if err != nil {
		return nil, err
	}

	return &Instance{
		session:  sess,
		client:   s3.New(sess),
		uploader: s3manager.NewUploader(sess),
	}, nil
}

func (i *Instance) UploadFile(ctx context.Context, opts *s3manager.UploadInput) error {
	_, err := i.uploader.UploadWithContext(ctx, opts)

	return err
}

func (i *Instance) ListBuckets(ctx context.Context) ([]*s3.Bucket, error) {
	resp, err := i.client.ListBucketsWithContext(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, err
	}

	return resp.Buckets, nil
}
