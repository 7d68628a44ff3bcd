// Package httpkit factors out the go-kit HTTP transport glue duplicated
// between the teacher's pkg/mapdata/transport/http.go and
// pkg/routegen/transport/http.go: JSON response encoding and the
// error-kind-to-status-code mapping. The teacher's version switches on a
// package (internal/util/errors) that its own go.mod never provides; this
// is that mapping, wired to the errs package this module actually defines.
package httpkit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/osmgraph/osmgraph/internal/errs"
)

var logger log.Logger

func init() {
	logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "component", "httpkit")
}

// EncodeJSONResponse writes response as JSON, or delegates to EncodeError
// if response is a non-nil error — the go-kit convention the teacher's
// encodeGenerateResponse/encodeSSEResponse follow.
func EncodeJSONResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	if e, ok := response.(error); ok && e != nil {
		EncodeError(ctx, e, w)
		return nil
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	return json.NewEncoder(w).Encode(response)
}

// EncodeError writes a JSON {"error": "..."} body with a status code
// derived from the error's errs.Kind, generalizing the teacher's
// encodeError switch. For an *errs.Error the body carries its Message (the
// kind is conveyed by the status); any other error is written as
// err.Error().
func EncodeError(_ context.Context, err error, w http.ResponseWriter) {
	status := statusFor(err)
	level.Warn(logger).Log("msg", "request failed", "status", status, "error", err)
	message := err.Error()
	var kindErr *errs.Error
	if errors.As(err, &kindErr) {
		message = kindErr.Message
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": message,
	})
}

func statusFor(err error) int {
	switch {
	case errs.Is(err, errs.InvalidInput):
		return http.StatusBadRequest
	case errs.Is(err, errs.ValidationFailed):
		return http.StatusBadRequest
	case errs.Is(err, errs.EmptyResponse):
		return http.StatusNotFound
	case errs.Is(err, errs.GeocodeMiss):
		return http.StatusNotFound
	case errs.Is(err, errs.NoPath):
		return http.StatusNotFound
	case errs.Is(err, errs.AlreadySimplified):
		return http.StatusConflict
	case errs.Is(err, errs.FetcherFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
