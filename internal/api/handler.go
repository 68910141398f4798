package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fasthttp/router"
	"github.com/seventv/image-resizer/container"
	"github.com/seventv/image-resizer/internal/dimension"
	"github.com/seventv/image-resizer/internal/global"
	"github.com/seventv/image-resizer/internal/raster"
	"github.com/seventv/image-resizer/internal/session"
	"github.com/seventv/image-resizer/task"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const requestTimeout = time.Minute

var errBadRequest = errors.New("bad request")

type handler struct {
	gCtx       global.Context
	store      *session.Store
	opts       session.Options
	rasterizer *raster.Rasterizer
}

// NewHandler routes the /v1 API onto store.
func NewHandler(gCtx global.Context, store *session.Store) fasthttp.RequestHandler {
	opts := SessionOptions(gCtx)

	h := &handler{
		gCtx:       gCtx,
		store:      store,
		opts:       opts,
		rasterizer: raster.New(opts.MaxPixels),
	}

	r := router.New()
	r.NotFound = func(ctx *fasthttp.RequestCtx) {
		writeError(ctx, fasthttp.StatusNotFound, "not found")
	}
	r.MethodNotAllowed = func(ctx *fasthttp.RequestCtx) {
		writeError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
	}

	v1 := r.Group("/v1")
	v1.POST("/resize", h.resize)
	v1.POST("/sessions", h.createSession)
	v1.GET("/sessions/{id}", h.getSession)
	v1.PATCH("/sessions/{id}", h.patchSession)
	v1.DELETE("/sessions/{id}", h.deleteSession)
	v1.GET("/sessions/{id}/download", h.download)
	v1.POST("/sessions/{id}/analyze", h.analyze)
	v1.POST("/sessions/{id}/export", h.export)

	return recoverer(r.Handler)
}

func recoverer(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		defer func() {
			if err := recover(); err != nil {
				zap.S().Errorw("panic in api",
					"panic", err,
					"path", string(ctx.Path()),
				)
				writeError(ctx, fasthttp.StatusInternalServerError, "internal error")
			}
		}()

		next(ctx)
	}
}

func sessionID(ctx *fasthttp.RequestCtx) string {
	id, _ := ctx.UserValue("id").(string)

	return id
}

func (h *handler) resize(ctx *fasthttp.RequestCtx) {
	data := append([]byte(nil), ctx.PostBody()...)

	if _, err := container.MatchDecodable(data); err != nil {
		writeErr(ctx, fmt.Errorf("%w: %v", raster.ErrDecode, err))
		return
	}

	prom := h.gCtx.Inst().Prometheus
	if prom != nil {
		prom.TotalBytesIn(len(data))
	}

	lCtx, cancel := context.WithTimeout(h.gCtx, requestTimeout)
	defer cancel()

	src := raster.NewSource(data)

	original, err := src.Dimensions(lCtx)
	if err != nil {
		writeErr(ctx, err)
		return
	}

	opts, err := h.resizeOptions(ctx.QueryArgs(), original)
	if err != nil {
		writeErr(ctx, err)
		return
	}

	if err := dimension.Validate(opts); err != nil {
		writeErr(ctx, err)
		return
	}

	var done func()
	if prom != nil {
		done = prom.Rasterize()
	}

	payload, err := h.rasterizer.Rasterize(lCtx, src, opts.Width, opts.Height, opts.Format, opts.Quality)
	if done != nil {
		done()
	}
	if err != nil {
		writeErr(ctx, err)
		return
	}

	est := h.opts.Estimator.Estimate(int64(len(data)), payload)
	if prom != nil {
		prom.TotalBytesOut(payload.Len())
		prom.TotalBytesSaved(est.SavedBytes)
	}

	name := string(ctx.QueryArgs().Peek("name"))

	ctx.Response.Header.Set("X-Estimated-Bytes", strconv.FormatInt(est.EstimatedNewBytes, 10))
	ctx.Response.Header.Set("X-Saved-Bytes", strconv.FormatInt(est.SavedBytes, 10))
	ctx.Response.Header.Set("X-Saved-CO2-Grams", strconv.FormatFloat(est.SavedCO2Grams, 'f', 4, 64))
	ctx.Response.Header.Set("X-Percent-Of-Original", strconv.Itoa(est.PercentOfOriginal))
	ctx.Response.Header.Set(fasthttp.HeaderContentDisposition, disposition(session.Filename(name, payload.Width, payload.Height, payload.Format)))
	ctx.SetContentType(payload.MIME())
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(payload.Bytes())
}

// resizeOptions applies the query in a fixed order: format and quality,
// the lock, then percentage, width and height edits.
func (h *handler) resizeOptions(args *fasthttp.Args, original task.Dimensions) (task.Options, error) {
	opts := dimension.Initial(original)
	if h.opts.DefaultFormat != 0 {
		opts.Format = h.opts.DefaultFormat
	}
	if h.opts.DefaultQuality != 0 {
		opts.Quality = task.ClampQuality(h.opts.DefaultQuality)
	}

	if v := args.Peek("format"); len(v) > 0 {
		f, err := task.ParseFormat(string(v))
		if err != nil {
			return opts, fmt.Errorf("%w: %v", raster.ErrUnsupportedFormat, err)
		}
		opts.Format = f
	}

	if v := args.Peek("quality"); len(v) > 0 {
		q, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return opts, fmt.Errorf("%w: quality %q", errBadRequest, v)
		}
		opts.Quality = task.ClampQuality(q)
	}

	if v := args.Peek("lock"); len(v) > 0 {
		lock, err := strconv.ParseBool(string(v))
		if err != nil {
			return opts, fmt.Errorf("%w: lock %q", errBadRequest, v)
		}
		opts.MaintainAspectRatio = lock
	}

	for _, edit := range []struct {
		key  string
		axis task.Axis
	}{
		{"percentage", task.AxisPercentage},
		{"width", task.AxisWidth},
		{"height", task.AxisHeight},
	} {
		v := args.Peek(edit.key)
		if len(v) == 0 {
			continue
		}

		f, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return opts, fmt.Errorf("%w: %s %q", errBadRequest, edit.key, v)
		}
		if f < 0 {
			return opts, fmt.Errorf("%w: negative %s", raster.ErrInvalidDimension, edit.key)
		}

		if edit.axis == task.AxisPercentage {
			opts.Mode = task.ModePercentage
		}
		opts = dimension.Resolve(original, opts, edit.axis, f)
	}

	return opts, nil
}

func (h *handler) createSession(ctx *fasthttp.RequestCtx) {
	data := append([]byte(nil), ctx.PostBody()...)

	lCtx, cancel := context.WithTimeout(h.gCtx, requestTimeout)
	defer cancel()

	s, err := h.store.Create(lCtx, string(ctx.QueryArgs().Peek("name")), data)
	if err != nil {
		writeErr(ctx, err)
		return
	}

	writeJSON(ctx, fasthttp.StatusCreated, s.Snapshot())
}

func (h *handler) session(ctx *fasthttp.RequestCtx) (*session.Session, bool) {
	s, err := h.store.Get(sessionID(ctx))
	if err != nil {
		writeErr(ctx, err)
		return nil, false
	}

	return s, true
}

// settle waits for pending runs when the caller asked with ?wait=true.
func (h *handler) settle(ctx *fasthttp.RequestCtx, s *session.Session) bool {
	if wait, _ := strconv.ParseBool(string(ctx.QueryArgs().Peek("wait"))); !wait {
		return true
	}

	lCtx, cancel := context.WithTimeout(h.gCtx, requestTimeout)
	defer cancel()

	if err := s.Flush(lCtx); err != nil {
		writeError(ctx, fasthttp.StatusGatewayTimeout, "timed out waiting for resize")
		return false
	}

	return true
}

func (h *handler) getSession(ctx *fasthttp.RequestCtx) {
	s, ok := h.session(ctx)
	if !ok || !h.settle(ctx, s) {
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, s.Snapshot())
}

type patchRequest struct {
	Axis                *task.Axis   `json:"axis"`
	Value               *float64     `json:"value"`
	Mode                *task.Mode   `json:"mode"`
	Quality             *float64     `json:"quality"`
	Format              *task.Format `json:"format"`
	MaintainAspectRatio *bool        `json:"maintain_aspect_ratio"`
}

func (h *handler) patchSession(ctx *fasthttp.RequestCtx) {
	s, ok := h.session(ctx)
	if !ok {
		return
	}

	req := patchRequest{}
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, err.Error())
		return
	}

	if (req.Axis == nil) != (req.Value == nil) {
		writeError(ctx, fasthttp.StatusBadRequest, "axis and value go together")
		return
	}

	if req.Mode != nil {
		s.SetMode(*req.Mode)
	}
	if req.MaintainAspectRatio != nil {
		s.SetMaintainAspectRatio(*req.MaintainAspectRatio)
	}
	if req.Format != nil {
		s.SetFormat(*req.Format)
	}
	if req.Quality != nil {
		s.SetQuality(*req.Quality)
	}
	if req.Axis != nil {
		s.Edit(*req.Axis, *req.Value)
	}

	if !h.settle(ctx, s) {
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, s.Snapshot())
}

func (h *handler) download(ctx *fasthttp.RequestCtx) {
	s, ok := h.session(ctx)
	if !ok || !h.settle(ctx, s) {
		return
	}

	p := s.Payload()
	if p == nil {
		writeErr(ctx, session.ErrNoPayload)
		return
	}

	ctx.Response.Header.Set(fasthttp.HeaderContentDisposition, disposition(s.Filename()))
	ctx.Response.Header.Set("X-Payload-SHA3", p.SHA3())
	ctx.SetContentType(p.MIME())
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(p.Bytes())
}

func (h *handler) analyze(ctx *fasthttp.RequestCtx) {
	s, ok := h.session(ctx)
	if !ok {
		return
	}

	lCtx, cancel := context.WithTimeout(h.gCtx, requestTimeout)
	defer cancel()

	writeJSON(ctx, fasthttp.StatusOK, s.Analyze(lCtx, h.gCtx.Inst().Analyzer))
}

func (h *handler) export(ctx *fasthttp.RequestCtx) {
	s, ok := h.session(ctx)
	if !ok {
		return
	}

	if h.gCtx.Inst().S3 == nil {
		writeError(ctx, fasthttp.StatusServiceUnavailable, "export is not configured")
		return
	}

	if !h.settle(ctx, s) {
		return
	}

	cfg := h.gCtx.Config().S3

	lCtx, cancel := context.WithTimeout(h.gCtx, requestTimeout)
	defer cancel()

	res, err := s.Export(lCtx, h.gCtx.Inst().S3, session.ExportTarget{
		Bucket:       cfg.Bucket,
		Prefix:       cfg.Prefix,
		ACL:          cfg.ACL,
		CacheControl: cfg.CacheControl,
	})
	if err != nil {
		writeErr(ctx, err)
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, res)
}

func (h *handler) deleteSession(ctx *fasthttp.RequestCtx) {
	if err := h.store.Delete(sessionID(ctx)); err != nil {
		writeErr(ctx, err)
		return
	}

	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func disposition(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", filename)
}
