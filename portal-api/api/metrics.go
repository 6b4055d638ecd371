package api

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	boardTracerName   = "portal-api"
	boardSpanName     = "portal.board.request"
	boardEventName    = "board.request"
	boardEventDomain  = "portal"
	boardAttrPrefix   = "portal.board."
	observabilityName = "observability.event"
)

// boardRequestMetrics records one board request as a span plus a structured
// observability event in the log.
type boardRequestMetrics struct {
	logger *log.Logger
	span   trace.Span
	start  time.Time
	route  string
	op     string

	loadDuration    time.Duration
	applyDuration   time.Duration
	persistDuration time.Duration
	tasksReturned   int
	changed         bool
	persistMode     string
	errorStage      string
}

func newBoardRequestMetrics(ctx context.Context, logger *log.Logger, route, op string) (*boardRequestMetrics, context.Context) {
	spanCtx, span := otel.Tracer(boardTracerName).Start(ctx, boardSpanName, trace.WithSpanKind(trace.SpanKindServer))
	return &boardRequestMetrics{
		logger: logger,
		span:   span,
		start:  time.Now(),
		route:  route,
		op:     op,
	}, spanCtx
}

func (m *boardRequestMetrics) ObserveLoad(d time.Duration) {
	if d > 0 {
		m.loadDuration = d
	}
}

func (m *boardRequestMetrics) ObserveApply(d time.Duration) {
	if d > 0 {
		m.applyDuration = d
	}
}

func (m *boardRequestMetrics) ObservePersist(d time.Duration, mode string) {
	if d > 0 {
		m.persistDuration = d
	}
	m.persistMode = mode
}

func (m *boardRequestMetrics) SetTasksReturned(n int) {
	if n < 0 {
		n = 0
	}
	m.tasksReturned = n
}

func (m *boardRequestMetrics) SetChanged(changed bool) {
	m.changed = changed
}

func (m *boardRequestMetrics) SetErrorStage(stage string) {
	if stage != "" {
		m.errorStage = stage
	}
}

// Log ends the span and writes the observability event.
func (m *boardRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("http.route", m.route),
		attribute.Int("http.status_code", status),
		attribute.String(boardAttrPrefix+"operation", m.op),
		attribute.Float64(boardAttrPrefix+"total_ms", durationToMillis(time.Since(m.start))),
		attribute.Int(boardAttrPrefix+"tasks_returned", m.tasksReturned),
		attribute.Bool(boardAttrPrefix+"changed", m.changed),
	}
	if m.loadDuration > 0 {
		attrs = append(attrs, attribute.Float64(boardAttrPrefix+"load_ms", durationToMillis(m.loadDuration)))
	}
	if m.applyDuration > 0 {
		attrs = append(attrs, attribute.Float64(boardAttrPrefix+"apply_ms", durationToMillis(m.applyDuration)))
	}
	if m.persistMode != "" {
		attrs = append(attrs,
			attribute.String(boardAttrPrefix+"persist_mode", m.persistMode),
			attribute.Float64(boardAttrPrefix+"persist_ms", durationToMillis(m.persistDuration)),
		)
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String(boardAttrPrefix+"error_stage", m.errorStage))
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.message", err.Error()))
	}

	sevText, sevNum := severityForStatus(status, err)
	eventAttrs := append([]attribute.KeyValue{
		attribute.String("event.name", boardEventName),
		attribute.String("event.domain", boardEventDomain),
		attribute.String("severity_text", sevText),
		attribute.Int("severity_number", sevNum),
	}, attrs...)

	m.span.SetAttributes(attrs...)
	m.span.AddEvent(observabilityName, trace.WithAttributes(eventAttrs...))
	if sevNum >= 17 {
		desc := http.StatusText(status)
		if err != nil {
			desc = err.Error()
		}
		m.span.SetStatus(codes.Error, desc)
	} else {
		m.span.SetStatus(codes.Ok, "")
	}
	m.span.End()

	if m.logger == nil {
		return
	}
	attrMap := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		attrMap[string(kv.Key)] = kv.Value.AsInterface()
	}
	fields := log.Fields{
		"event.name":      boardEventName,
		"event.domain":    boardEventDomain,
		"attributes":      attrMap,
		"severity_text":   sevText,
		"severity_number": sevNum,
	}
	if sc := m.span.SpanContext(); sc.IsValid() {
		fields["trace_id"] = sc.TraceID().String()
		fields["span_id"] = sc.SpanID().String()
	}

	entry := m.logger.WithFields(fields)
	switch sevText {
	case "ERROR":
		entry.Error(observabilityName)
	case "WARN":
		entry.Warn(observabilityName)
	default:
		entry.Info(observabilityName)
	}
}

// severityForStatus maps a response onto OpenTelemetry log severities.
func severityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil || status >= http.StatusInternalServerError:
		return "ERROR", 17
	case status >= http.StatusBadRequest:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
