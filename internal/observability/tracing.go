package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Tracer implements actorhost.DispatchTracer and llm.TurnTracer, matching
// the teacher's Tracer/TraceConfig wrapper around an
// sdktrace.TracerProvider, trimmed of the OTLP exporter configuration
// (ServiceVersion/Environment/Endpoint/SamplingRate/EnableInsecure) this
// module's go.mod has no OTLP exporter package to back: a TracerProvider
// with no span processor attached still records spans (Start/End work,
// attributes are set, errors are recorded) but does not ship them
// anywhere. Wiring a real OTLP batch exporter in is a matter of calling
// sdktrace.WithBatcher(exporter) here — left for whoever stands this repo
// up against a real collector, since adding that dependency now would be
// inventing a library the pack never names.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracer builds a Tracer named serviceName and installs its provider as
// the process-wide default via otel.SetTracerProvider, matching the
// teacher's NewTracer side effect.
func NewTracer(serviceName string) *Tracer {
	provider := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(provider)
	return &Tracer{provider: provider, tracer: provider.Tracer(serviceName)}
}

// Shutdown flushes and stops the underlying provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}

// StartDispatch implements actorhost.DispatchTracer: one span per
// actor-dispatch iteration, tagged with the actor and message type.
func (t *Tracer) StartDispatch(ctx context.Context, actorID, messageType string) (context.Context, func(err error)) {
	spanCtx, span := t.tracer.Start(ctx, "actor.dispatch", trace.WithAttributes(
		attribute.String("actor_id", actorID),
		attribute.String("message_type", messageType),
	))
	return spanCtx, func(err error) { endSpan(span, err) }
}

// StartLLMTurn implements llm.TurnTracer: one span per Assistant
// Complete call, tagged with the provider and model in play.
func (t *Tracer) StartLLMTurn(ctx context.Context, provider, model string) (context.Context, func(err error)) {
	spanCtx, span := t.tracer.Start(ctx, "assistant.llm_turn", trace.WithAttributes(
		attribute.String("llm.provider", provider),
		attribute.String("llm.model", model),
	))
	return spanCtx, func(err error) { endSpan(span, err) }
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
