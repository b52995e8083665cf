// Package middleware 提供 HTTP 中间件
package middleware

import (
	"roleplay-coach-api/pkg/logger"
	"roleplay-coach-api/pkg/tracer"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Trace OpenTelemetry 追踪中间件
func Trace(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// TraceContext 把 otelgin 创建的 span 标识写入 gin/日志上下文与响应头，须排在 Trace 之后
func TraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if traceID := tracer.TraceID(ctx); traceID != "" {
			spanID := tracer.SpanID(ctx)
			c.Set("trace_id", traceID)
			c.Set("span_id", spanID)

			ctx = logger.WithContext(ctx, logger.TraceIDKey, traceID)
			ctx = logger.WithContext(ctx, logger.SpanIDKey, spanID)
			c.Request = c.Request.WithContext(ctx)
			c.Header("X-Trace-ID", traceID)
		}
		c.Next()
	}
}
