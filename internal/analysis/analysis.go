package analysis

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/seventv/image-resizer/internal/instance"
	"github.com/seventv/image-resizer/task"
	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"
	"golang.org/x/sync/singleflight"
)

const DefaultTTL = time.Hour * 24

type Options struct {
	Cache      instance.Cache
	TTL        time.Duration
	Prometheus instance.Prometheus
}

// Cached deduplicates concurrent analyses of the same bytes and remembers
// successful results in the cache. Fallback results are never stored.
type Cached struct {
	next  instance.Analyzer
	cache instance.Cache
	ttl   time.Duration
	prom  instance.Prometheus
	group singleflight.Group
}

func NewCached(next instance.Analyzer, o Options) *Cached {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}

	return &Cached{
		next:  next,
		cache: o.Cache,
		ttl:   o.TTL,
		prom:  o.Prometheus,
	}
}

func Key(payload []byte, mime string) string {
	h := sha3.New256()
	_, _ = h.Write([]byte(mime))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(payload)

	return hex.EncodeToString(h.Sum(nil))
}

func (c *Cached) Analyze(ctx context.Context, payload []byte, mime string) task.Analysis {
	if c.next == nil {
		c.observe(true, false)
		return task.FallbackAnalysis()
	}

	key := Key(payload, mime)

	if c.cache != nil {
		result, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			zap.S().Warnw("analysis cache read failed",
				"key", key,
				"error", err,
			)
		} else if ok {
			c.observe(false, true)
			return result
		}
	}

	v, _, _ := c.group.Do(key, func() (interface{}, error) {
		result := c.next.Analyze(ctx, payload, mime)
		if result.Fallback || c.cache == nil {
			return result, nil
		}

		if err := c.cache.Set(ctx, key, result, c.ttl); err != nil {
			zap.S().Warnw("analysis cache write failed",
				"key", key,
				"error", err,
			)
		}

		return result, nil
	})

	result := v.(task.Analysis)
	c.observe(result.Fallback, false)

	return result
}

func (c *Cached) observe(fallback bool, cached bool) {
	if c.prom != nil {
		c.prom.Analysis(fallback, cached)
	}
}
