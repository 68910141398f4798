package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/bugsnag/panicwrap"
	"github.com/seventv/image-resizer/internal/analysis"
	"github.com/seventv/image-resizer/internal/api"
	"github.com/seventv/image-resizer/internal/configure"
	"github.com/seventv/image-resizer/internal/global"
	"github.com/seventv/image-resizer/internal/health"
	"github.com/seventv/image-resizer/internal/monitoring"
	"github.com/seventv/image-resizer/internal/session"
	"github.com/seventv/image-resizer/internal/svc/openai"
	"github.com/seventv/image-resizer/internal/svc/prometheus"
	"github.com/seventv/image-resizer/internal/svc/redis"
	"github.com/seventv/image-resizer/internal/svc/s3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	Version = "development"
	Unix    = ""
	Time    = "unknown"
	User    = "unknown"
)

func init() {
	debug.SetGCPercent(2000)
	if i, err := strconv.Atoi(Unix); err == nil {
		Time = time.Unix(int64(i), 0).Format(time.RFC3339)
	}
}

func setupInstances(gCtx global.Context) error {
	config := gCtx.Config()
	inst := gCtx.Inst()

	var err error

	inst.Prometheus = prometheus.New(prometheus.Options{
		Labels: config.Monitoring.Labels.ToPrometheus(),
	})

	if config.S3.Enabled {
		inst.S3, err = s3.New(s3.Options{
			Region:      config.S3.Region,
			Endpoint:    config.S3.Endpoint,
			AccessToken: config.S3.AccessToken,
			SecretKey:   config.S3.SecretKey,
		})
		if err != nil {
			err = fmt.Errorf("failed at s3: %w", err)
		}
	}

	if config.Redis.Enabled {
		lCtx, cancel := context.WithTimeout(gCtx, time.Second*10)
		cache, e := redis.New(lCtx, redis.Options{
			Addr:     config.Redis.Addr,
			Username: config.Redis.Username,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
			Prefix:   config.Redis.Prefix,
		})
		cancel()
		if e != nil {
			err = multierr.Append(err, fmt.Errorf("failed at redis: %w", e))
		} else {
			inst.Cache = cache
		}
	}

	if config.Analysis.Enabled {
		analyzer, e := openai.New(openai.Options{
			APIKey:  config.Analysis.APIKey,
			BaseURL: config.Analysis.BaseURL,
			Model:   config.Analysis.Model,
			Timeout: time.Duration(config.Analysis.TimeoutSeconds) * time.Second,
		})
		if e != nil {
			err = multierr.Append(err, fmt.Errorf("failed at openai: %w", e))
		} else {
			inst.Analyzer = analysis.NewCached(analyzer, analysis.Options{
				Cache:      inst.Cache,
				TTL:        time.Duration(config.Redis.TTLSeconds) * time.Second,
				Prometheus: inst.Prometheus,
			})
		}
	}

	return err
}

func main() {
	config := configure.New()

	exitStatus, err := panicwrap.BasicWrap(func(s string) {
		zap.S().Error("panic: ", s)
	})
	if err != nil {
		zap.S().Errorw("failed to setup panic handler: ",
			"error", err,
		)
		os.Exit(2)
	}

	if exitStatus >= 0 {
		os.Exit(exitStatus)
	}

	if !config.NoHeader {
		zap.S().Info("Image Resizer")
		zap.S().Infof("Version: %s", Version)
		zap.S().Infof("build.Time: %s", Time)
		zap.S().Infof("build.User: %s", User)
	}

	zap.S().Debug("MaxProcs: ", runtime.GOMAXPROCS(0))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	gCtx, cancel := global.WithCancel(global.New(context.Background(), config))

	if err := setupInstances(gCtx); err != nil {
		zap.S().Fatalw("failed to setup instances",
			"error", err,
		)
	}

	store := session.NewStore(api.SessionOptions(gCtx))

	wg := sync.WaitGroup{}

	if gCtx.Config().API.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-api.New(gCtx, store)
		}()
	}
	if gCtx.Config().Health.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-health.New(gCtx)
		}()
	}
	if gCtx.Config().Monitoring.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-monitoring.New(gCtx)
		}()
	}

	done := make(chan struct{})
	go func() {
		<-sig
		cancel()
		go func() {
			select {
			case <-time.After(time.Minute):
			case <-sig:
			}
			zap.S().Fatal("force shutdown")
		}()

		zap.S().Info("shutting down")

		wg.Wait()

		store.Close()
		if gCtx.Inst().Cache != nil {
			if err := gCtx.Inst().Cache.Close(); err != nil {
				zap.S().Warnw("failed to close cache",
					"error", err,
				)
			}
		}

		close(done)
	}()

	zap.S().Info("running")

	<-done

	zap.S().Info("shutdown")
	os.Exit(0)
}
