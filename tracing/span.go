package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/viant/vigil"

// Span names.
const (
	SpanStrategyRun  = "strategy.run"
	SpanApprovalWait = "approval.wait"
)

// Attribute keys recorded on vigil spans.
const (
	StrategyIDKey   = attribute.Key("vigil.strategy.id")
	StrategyTypeKey = attribute.Key("vigil.strategy.type")
	ExecutorKey     = attribute.Key("vigil.executor")
	SuccessKey      = attribute.Key("vigil.success")
	RevenueKey      = attribute.Key("vigil.revenue")
	CostKey         = attribute.Key("vigil.cost")
	TrippedKey      = attribute.Key("vigil.breaker.tripped")
	RequestIDKey    = attribute.Key("vigil.request.id")
	RequestStatus   = attribute.Key("vigil.request.status")
)

// Span is a started vigil span. A nil *Span is a no-op.
type Span struct {
	span trace.Span
}

// StartRun starts the span covering one strategy run.
func StartRun(ctx context.Context, strategyID, strategyType string) (context.Context, *Span) {
	return start(ctx, SpanStrategyRun, StrategyIDKey.String(strategyID), StrategyTypeKey.String(strategyType))
}

// StartWait starts the span covering a wait on approval request id.
func StartWait(ctx context.Context, requestID string) (context.Context, *Span) {
	return start(ctx, SpanApprovalWait, RequestIDKey.String(requestID))
}

func start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	return ctx, &Span{span: span}
}

// Executed records a strategy run outcome.
func (s *Span) Executed(executor string, success bool, revenue, cost float64, tripped bool) {
	if s == nil {
		return
	}
	s.span.SetAttributes(
		ExecutorKey.String(executor),
		SuccessKey.Bool(success),
		RevenueKey.Float64(revenue),
		CostKey.Float64(cost),
		TrippedKey.Bool(tripped),
	)
}

// Decided records the terminal status a wait observed.
func (s *Span) Decided(status string) {
	if s == nil {
		return
	}
	s.span.SetAttributes(RequestStatus.String(status))
}

// End ends the span with an error status when err is set.
func (s *Span) End(err error) {
	if s == nil {
		return
	}
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}
