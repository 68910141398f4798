package session

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/seventv/image-resizer/internal/instance"
	"github.com/seventv/image-resizer/task"
	"go.uber.org/zap"
)

// Analyze describes the current payload, or the original image if nothing
// has been rendered yet. A nil analyzer yields the fallback record.
func (s *Session) Analyze(ctx context.Context, analyzer instance.Analyzer) task.Analysis {
	if analyzer == nil {
		return task.FallbackAnalysis()
	}

	data, mime := s.data, s.MIME
	if p := s.Payload(); p != nil {
		data, mime = p.Bytes(), p.MIME()
	}

	return analyzer.Analyze(ctx, data, mime)
}

type ExportTarget struct {
	Bucket       string
	Prefix       string
	ACL          string
	CacheControl string
}

type ExportResult struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Size   int    `json:"size"`
	SHA3   string `json:"sha3"`
}

// Export uploads the current payload under prefix/filename.
func (s *Session) Export(ctx context.Context, uploader instance.S3, target ExportTarget) (ExportResult, error) {
	p := s.Payload()
	if p == nil {
		return ExportResult{}, ErrNoPayload
	}

	key := path.Join(target.Prefix, s.Filename())

	input := &s3manager.UploadInput{
		Body:        bytes.NewReader(p.Bytes()),
		Bucket:      aws.String(target.Bucket),
		ContentType: aws.String(p.MIME()),
		Key:         aws.String(key),
	}
	if target.ACL != "" {
		input.ACL = aws.String(target.ACL)
	}
	if target.CacheControl != "" {
		input.CacheControl = aws.String(target.CacheControl)
	}

	if err := uploader.UploadFile(ctx, input); err != nil {
		return ExportResult{}, fmt.Errorf("failed at s3 upload: %w", err)
	}

	if s.prom != nil {
		s.prom.TotalBytesExported(p.Len())
	}

	zap.S().Infow("exported payload",
		"session_id", s.ID,
		"bucket", target.Bucket,
		"key", key,
		"size", p.Len(),
	)

	return ExportResult{
		Bucket: target.Bucket,
		Key:    key,
		Size:   p.Len(),
		SHA3:   p.SHA3(),
	}, nil
}
