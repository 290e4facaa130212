package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/garyjia/sales-reports/internal/domain/apperr"
)

// statusFor maps an error kind to its HTTP status
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindPermissionDenied:
		return http.StatusForbidden
	case apperr.KindInvalidTransition, apperr.KindConcurrencyConflict:
		return http.StatusConflict
	case apperr.KindValidation:
		return http.StatusUnprocessableEntity
	case apperr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error body for err; internal failures are not described to the client
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)

	resp := Response{Success: false, Kind: string(kind), Error: err.Error()}
	if kind == apperr.KindInternal {
		resp.Error = "internal error"
	}

	var verr *apperr.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}

	if span := trace.SpanFromContext(c.Request.Context()); span.IsRecording() {
		span.RecordError(err)
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, string(kind))
		}
	}

	c.JSON(status, resp)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg, Kind: "bad_request"})
}
