// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Init 初始化全局 zerolog 配置。
// 所有服务在启动时调用一次，service 字段用于在日志聚合平台中区分来源。
func Init(serviceName string) {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

// Ctx 返回一个绑定了追踪上下文的 logger。
// 如果 ctx 中存在有效的 Span，则自动附加 trace_id/span_id 字段，
// 便于在日志平台与 Jaeger 之间相互跳转。
func Ctx(ctx context.Context) *zerolog.Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return &log.Logger
	}
	l := log.Logger.With().
		Str("trace_id", spanCtx.TraceID().String()).
		Str("span_id", spanCtx.SpanID().String()).
		Logger()
	return &l
}
