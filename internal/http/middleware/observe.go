package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/leasingborsen/listing-reconciler/internal/observability"
	"github.com/leasingborsen/listing-reconciler/internal/platform/ctxutil"
	"github.com/leasingborsen/listing-reconciler/internal/platform/logger"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"
)

// Observe tags the request with trace/request ids, counts it in metrics and
// writes one access log line naming the session and change it touched.
// Both log and m may be nil.
func Observe(log *logger.Logger, m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		req := &ctxutil.Request{
			RequestID: headerOr(c, headerRequestID, uuid.NewString),
			TraceID: headerOr(c, headerTraceID, func() string {
				if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
					return sc.TraceID().String()
				}
				return uuid.NewString()
			}),
		}
		c.Request = c.Request.WithContext(ctxutil.With(c.Request.Context(), req))
		c.Writer.Header().Set(headerTraceID, req.TraceID)
		c.Writer.Header().Set(headerRequestID, req.RequestID)

		m.ApiInflightInc()
		defer m.ApiInflightDec()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		m.ObserveAPI(c.Request.Method, route, status, elapsed)

		if log == nil {
			return
		}
		fields := []interface{}{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			"trace_id", req.TraceID,
			"request_id", req.RequestID,
		}
		if id := c.Param("id"); id != "" {
			fields = append(fields, "session_id", id)
		}
		if id := c.Param("changeId"); id != "" {
			fields = append(fields, "change_id", id)
		}
		if req.Reviewer != "" {
			fields = append(fields, "reviewer", req.Reviewer)
		}
		switch {
		case status >= 500:
			if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
				fields = append(fields, "error", errs.String())
			}
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Debug("HTTP request", fields...)
		}
	}
}

func headerOr(c *gin.Context, name string, fallback func() string) string {
	if v := strings.TrimSpace(c.GetHeader(name)); v != "" {
		return v
	}
	return fallback()
}
