package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tourdesk/backoffice/internal/infrastructure/logger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MaxRequestIDLength caps request ids copied onto spans
const MaxRequestIDLength = 128

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "tour-backoffice",
		Enabled:     true,
	}
}

// Tracing returns OpenTelemetry tracing middleware with default configuration.
func Tracing() gin.HandlerFunc {
	return TracingWithConfig(DefaultTracingConfig())
}

// TracingWithConfig opens a server span per request via otelgin.
// Place it after logger.GinMiddleware and follow it with SpanAnnotator.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return otelgin.Middleware(cfg.ServiceName)
}

// SpanAnnotator must follow TracingWithConfig in the chain. It runs inside the
// request span, so attributes and the error status land before the span ends.
func SpanAnnotator() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}

		if id := requestID(c); id != "" {
			span.SetAttributes(attribute.String("request_id", id))
		}
		if id := operatorID(c); id != "" {
			span.SetAttributes(attribute.String("operator_id", id))
		}

		c.Next()

		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}
		span.SetAttributes(attribute.Int("http.status_code", status))
		if len(c.Errors) > 0 {
			span.SetStatus(codes.Error, c.Errors.Last().Error())
			return
		}
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}

func requestID(c *gin.Context) string {
	id := logger.GetRequestID(c.Request.Context())
	if id == "" {
		id = c.GetHeader(logger.RequestIDHeader)
	}
	if len(id) > MaxRequestIDLength {
		return id[:MaxRequestIDLength]
	}
	return id
}

// operatorID returns the operator header only when it is a well-formed UUID
func operatorID(c *gin.Context) string {
	id := logger.GetOperatorID(c.Request.Context())
	if id == "" {
		id = c.GetHeader(logger.OperatorIDHeader)
	}
	if _, err := uuid.Parse(id); err != nil {
		return ""
	}
	return id
}
