package api

import (
	"encoding/json"
	"errors"

	"github.com/seventv/image-resizer/internal/raster"
	"github.com/seventv/image-resizer/internal/session"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusOf maps pipeline errors onto HTTP statuses.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, raster.ErrDecode):
		return fasthttp.StatusUnsupportedMediaType, err.Error()
	case errors.Is(err, raster.ErrSurfaceUnavailable):
		return fasthttp.StatusUnprocessableEntity, "cannot process image here"
	case errors.Is(err, raster.ErrInvalidDimension),
		errors.Is(err, raster.ErrUnsupportedFormat),
		errors.Is(err, errBadRequest):
		return fasthttp.StatusBadRequest, err.Error()
	case errors.Is(err, session.ErrNotFound):
		return fasthttp.StatusNotFound, err.Error()
	case errors.Is(err, session.ErrNoPayload):
		return fasthttp.StatusConflict, err.Error()
	}

	return fasthttp.StatusInternalServerError, "internal error"
}

func writeErr(ctx *fasthttp.RequestCtx, err error) {
	status, msg := statusOf(err)
	if status == fasthttp.StatusInternalServerError {
		zap.S().Errorw("api request failed",
			"path", string(ctx.Path()),
			"error", err,
		)
	}

	writeError(ctx, status, msg)
}

func writeError(ctx *fasthttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, errorResponse{Error: msg})
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		zap.S().Errorw("failed to encode response",
			"error", err,
		)
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}

	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(data)
}
