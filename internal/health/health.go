package health

import (
	"context"
	"fmt"
	"time"

	"github.com/seventv/image-resizer/internal/global"
	"github.com/valyala/fasthttp"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Check pings every configured collaborator and returns all failures.
func Check(gCtx global.Context) error {
	var err error

	if gCtx.Inst().S3 != nil {
		lCtx, cancel := context.WithTimeout(gCtx, time.Second*5)
		if _, e := gCtx.Inst().S3.ListBuckets(lCtx); e != nil {
			err = multierr.Append(err, fmt.Errorf("s3 is not responding: %w", e))
		}
		cancel()
	}

	if gCtx.Inst().Cache != nil {
		lCtx, cancel := context.WithTimeout(gCtx, time.Second*5)
		if e := gCtx.Inst().Cache.Ping(lCtx); e != nil {
			err = multierr.Append(err, fmt.Errorf("cache is not responding: %w", e))
		}
		cancel()
	}

	return err
}

func New(gCtx global.Context) <-chan struct{} {
	done := make(chan struct{})

	srv := fasthttp.Server{
		Handler: func(ctx *fasthttp.RequestCtx) {
			defer func() {
				if err := recover(); err != nil {
					zap.S().Errorw("panic in health",
						"panic", err,
					)
				}
			}()

			if err := Check(gCtx); err != nil {
				zap.S().Warnw("unhealthy",
					"error", err,
				)
				ctx.SetStatusCode(500)
			}
		},
	}

	go func() {
		defer close(done)
		zap.S().Infow("Health enabled",
			"bind", gCtx.Config().Health.Bind,
		)

		if err := srv.ListenAndServe(gCtx.Config().Health.Bind); err != nil {
			zap.S().Fatalw("failed to bind health",
				"error", err,
			)
		}
	}()

	go func() {
		<-gCtx.Done()

		_ = srv.Shutdown()
	}()

	return done
}
