package api

import (
	"time"

	"github.com/seventv/image-resizer/internal/global"
	"github.com/seventv/image-resizer/internal/savings"
	"github.com/seventv/image-resizer/internal/session"
	"github.com/seventv/image-resizer/task"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// SessionOptions builds the per-session settings from the resize config.
func SessionOptions(gCtx global.Context) session.Options {
	cfg := gCtx.Config().Resize

	opts := session.Options{
		Delay:          time.Duration(cfg.DebounceMS) * time.Millisecond,
		MaxPixels:      cfg.MaxPixels,
		Estimator:      savings.Estimator{CO2GramsPerMB: cfg.CO2GramsPerMB},
		Prometheus:     gCtx.Inst().Prometheus,
		DefaultQuality: cfg.DefaultQuality,
	}

	if cfg.DefaultFormat != "" {
		f, err := task.ParseFormat(cfg.DefaultFormat)
		if err != nil {
			zap.S().Warnw("ignoring default format",
				"format", cfg.DefaultFormat,
				"error", err,
			)
		} else {
			opts.DefaultFormat = f
		}
	}

	return opts
}

func New(gCtx global.Context, store *session.Store) <-chan struct{} {
	done := make(chan struct{})

	srv := fasthttp.Server{
		Handler:            NewHandler(gCtx, store),
		MaxRequestBodySize: gCtx.Config().API.MaxBodySize,
		Name:               "image-resizer",
	}

	go func() {
		defer close(done)
		zap.S().Infow("API enabled",
			"bind", gCtx.Config().API.Bind,
		)

		if err := srv.ListenAndServe(gCtx.Config().API.Bind); err != nil {
			zap.S().Fatalw("failed to bind api",
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
