package instance

import (
	"context"
	"time"

	"github.com/seventv/image-resizer/task"
)

// Analyzer describes an image. It never fails: on any error it returns
// task.FallbackAnalysis().
type Analyzer interface {
	Analyze(ctx context.Context, payload []byte, mime string) task.Analysis
}

type Cache interface {
	Get(ctx context.Context, key string) (task.Analysis, bool, error)
	Set(ctx context.Context, key string, value task.Analysis, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}
