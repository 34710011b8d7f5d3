package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span times one outbound call and logs its outcome when it ends.
type Span struct {
	name   string
	logger *slog.Logger
	start  time.Time
	status int
	err    error
}

// StartSpan derives a child span from the provided context. The request id
// doubles as the trace id so backend calls can be correlated with the page
// request that caused them.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := FromContext(ctx)

	traceID := TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = RequestIDFromContext(ctx)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		ctx = WithTraceID(ctx, traceID)
		logger = logger.With(slog.String("trace_id", traceID))
	}

	parentSpanID := SpanIDFromContext(ctx)
	spanID := uuid.NewString()

	logger = logger.With(
		slog.String("span_id", spanID),
		slog.String("span_name", name),
	)
	if parentSpanID != "" {
		logger = logger.With(slog.String("parent_span_id", parentSpanID))
	}

	ctx = WithLogger(ctx, logger)
	ctx = WithSpanID(ctx, spanID)

	return ctx, &Span{name: name, logger: logger, start: time.Now()}
}

// SetStatus records the HTTP status observed for the call.
func (s *Span) SetStatus(status int) {
	if s != nil {
		s.status = status
	}
}

// SetError records a transport or decoding failure.
func (s *Span) SetError(err error) {
	if s != nil {
		s.err = err
	}
}

// End emits the completion entry.
func (s *Span) End() {
	if s == nil {
		return
	}
	attrs := []any{slog.Duration("duration", time.Since(s.start))}
	if s.status != 0 {
		attrs = append(attrs, slog.Int("status", s.status))
	}
	if s.err != nil {
		s.logger.Warn("span failed", append(attrs, slog.String("error", s.err.Error()))...)
		return
	}
	s.logger.Debug("span completed", attrs...)
}
