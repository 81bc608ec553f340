package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DBSpanConfig describes a database operation for tracing
type DBSpanConfig struct {
	Operation string
	Table     string
}

// StartDBSpan starts a client span for a database operation
func StartDBSpan(ctx context.Context, cfg DBSpanConfig) (context.Context, trace.Span) {
	tracer := GetTracer("bridge-service/database")
	return tracer.Start(ctx, cfg.Operation+" "+cfg.Table,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", cfg.Operation),
			attribute.String("db.sql.table", cfg.Table),
		),
	)
}

// EndDBSpan records the outcome of a database operation. Pass -1 for rows
// when the count is unknown.
func EndDBSpan(span trace.Span, err error, rows int64) {
	if rows >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", rows))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
