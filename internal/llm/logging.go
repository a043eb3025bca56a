package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/abhisek/contentgen/internal/store"
	"github.com/abhisek/contentgen/internal/tracer"
)

// LoggingProvider is a decorator that records every text request as a
// history event, a structured log line and a span.
type LoggingProvider struct {
	inner     Provider
	provider  string
	eventRepo store.EventRepo
	log       *zap.Logger
}

// WithLogging wraps a Provider with event logging.
func WithLogging(p Provider, provider string, repo store.EventRepo, log *zap.Logger) Provider {
	return &LoggingProvider{inner: p, provider: provider, eventRepo: repo, log: nopIfNil(log)}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	purpose := PurposeFrom(ctx)

	ctx, span := startSpan(ctx, "llm.generate", store.KindText, l.provider, l.inner.ModelID(), purpose)
	defer span.End()

	resp, err := l.inner.Generate(ctx, req)

	data := store.LLMRequestEventData{
		Kind:        store.KindText,
		Provider:    l.provider,
		Model:       l.inner.ModelID(),
		Purpose:     purpose,
		LatencyMs:   time.Since(start).Milliseconds(),
		Success:     err == nil,
		RequestBody: serializeRequest(req),
	}

	if resp != nil {
		data.InputTokens = resp.Usage.InputTokens
		data.OutputTokens = resp.Usage.OutputTokens
		if resp.Model != "" {
			data.Model = resp.Model
		}
		data.ResponseBody = resp.Text
	}

	if err != nil {
		data.ErrorMessage = err.Error()
	}

	endSpan(span, data, err)
	record(ctx, l.eventRepo, l.log, data)
	return resp, err
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}

// LoggingImageProvider records image requests. Image bytes are summarised,
// never stored.
type LoggingImageProvider struct {
	inner     ImageProvider
	provider  string
	eventRepo store.EventRepo
	log       *zap.Logger
}

// WithImageLogging wraps an ImageProvider with event logging.
func WithImageLogging(p ImageProvider, provider string, repo store.EventRepo, log *zap.Logger) ImageProvider {
	return &LoggingImageProvider{inner: p, provider: provider, eventRepo: repo, log: nopIfNil(log)}
}

func (l *LoggingImageProvider) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResponse, error) {
	start := time.Now()

	ctx, span := startSpan(ctx, "llm.generate_image", store.KindImage, l.provider, l.inner.ModelID(), PurposeFrom(ctx))
	defer span.End()

	resp, err := l.inner.GenerateImage(ctx, req)

	data := store.LLMRequestEventData{
		Kind:        store.KindImage,
		Provider:    l.provider,
		Model:       l.inner.ModelID(),
		Purpose:     PurposeFrom(ctx),
		LatencyMs:   time.Since(start).Milliseconds(),
		Success:     err == nil,
		RequestBody: req.Prompt,
	}
	if resp != nil {
		if resp.Model != "" {
			data.Model = resp.Model
		}
		data.ResponseBody = summarizeImage(resp)
	}
	if err != nil {
		data.ErrorMessage = err.Error()
	}

	endSpan(span, data, err)
	record(ctx, l.eventRepo, l.log, data)
	return resp, err
}

func (l *LoggingImageProvider) ModelID() string {
	return l.inner.ModelID()
}

func startSpan(ctx context.Context, name, kind, provider, model, purpose string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.kind", kind),
			attribute.String("llm.provider", provider),
			attribute.String("llm.model", model),
			attribute.String("llm.purpose", purpose),
		),
	)
}

func endSpan(span trace.Span, data store.LLMRequestEventData, err error) {
	span.SetAttributes(
		attribute.String("llm.model", data.Model),
		attribute.Int("llm.input_tokens", data.InputTokens),
		attribute.Int("llm.output_tokens", data.OutputTokens),
		attribute.Int64("llm.latency_ms", data.LatencyMs),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// record appends the event and logs it. A failed append never fails the
// request.
func record(ctx context.Context, repo store.EventRepo, log *zap.Logger, data store.LLMRequestEventData) {
	fields := []zap.Field{
		zap.String("kind", data.Kind),
		zap.String("purpose", data.Purpose),
		zap.String("provider", data.Provider),
		zap.String("model", data.Model),
		zap.Int64("latency_ms", data.LatencyMs),
		zap.Int("input_tokens", data.InputTokens),
		zap.Int("output_tokens", data.OutputTokens),
	}
	if id := tracer.TraceID(ctx); id != "" {
		fields = append(fields, zap.String("trace_id", id))
	}
	if data.Success {
		log.Info("generation request", fields...)
	} else {
		log.Warn("generation request failed", append(fields, zap.String("error", data.ErrorMessage))...)
	}

	if err := repo.AppendLLMRequest(context.WithoutCancel(ctx), data); err != nil {
		log.Warn("failed to record generation event", zap.Error(err))
	}
}

// serializeRequest builds a readable representation of the text request.
func serializeRequest(req Request) string {
	var b strings.Builder

	if req.System != "" {
		b.WriteString("[system]\n")
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}

	for _, m := range req.Messages {
		fmt.Fprintf(&b, "[%s]\n", m.Role)
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}

	return b.String()
}

func summarizeImage(resp *ImageResponse) string {
	if len(resp.Data) > 0 {
		return fmt.Sprintf("[image %s, %d bytes]", resp.MIMEType, len(resp.Data))
	}
	return fmt.Sprintf("[image %s, url %s]", resp.MIMEType, resp.URL)
}

func nopIfNil(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}
