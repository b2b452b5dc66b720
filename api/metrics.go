package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName            = "taskzen-api"
	objectivesEventName   = "objectives.fetch"
	objectivesEventDomain = "taskzen"
	objectivesRoute       = "/api/objectives"
)

type objectivesRequestMetrics struct {
	logger             *log.Logger
	span               trace.Span
	start              time.Time
	authDuration       time.Duration
	fetchDuration      time.Duration
	objectivesReturned int
	errorStage         string
}

// newObjectivesRequestMetrics starts a span for the objectives read path and
// returns the context carrying it.
func newObjectivesRequestMetrics(ctx context.Context, logger *log.Logger) (*objectivesRequestMetrics, context.Context) {
	m := &objectivesRequestMetrics{
		logger: logger,
		start:  time.Now(),
	}
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, "GET "+objectivesRoute)
	m.span = span
	return m, spanCtx
}

func (m *objectivesRequestMetrics) ObserveAuth(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.authDuration = duration
}

func (m *objectivesRequestMetrics) ObserveFetch(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.fetchDuration = duration
}

func (m *objectivesRequestMetrics) SetObjectivesReturned(count int) {
	if count < 0 {
		count = 0
	}
	m.objectivesReturned = count
}

func (m *objectivesRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// Log ends the span and emits a single structured observability event.
func (m *objectivesRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}

	attrs := map[string]any{
		"http.route":                  objectivesRoute,
		"http.status_code":            status,
		"taskzen.objectives.total_ms": durationToMillis(time.Since(m.start)),
		"taskzen.objectives.returned": m.objectivesReturned,
	}
	if m.authDuration > 0 {
		attrs["taskzen.objectives.auth_ms"] = durationToMillis(m.authDuration)
	}
	if m.fetchDuration > 0 {
		attrs["taskzen.objectives.fetch_ms"] = durationToMillis(m.fetchDuration)
	}
	if m.errorStage != "" {
		attrs["taskzen.objectives.error_stage"] = m.errorStage
	}
	if err != nil {
		attrs["error"] = err.Error()
	}

	if m.span != nil {
		for k, v := range attrs {
			switch val := v.(type) {
			case string:
				m.span.SetAttributes(attribute.String(k, val))
			case int:
				m.span.SetAttributes(attribute.Int(k, val))
			case float64:
				m.span.SetAttributes(attribute.Float64(k, val))
			}
		}
		if err != nil || m.errorStage != "" {
			m.span.SetStatus(codes.Error, m.errorStage)
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}
	severity := "INFO"
	if err != nil || m.errorStage != "" {
		severity = "ERROR"
	}
	m.logger.WithFields(log.Fields{
		"event.name":    objectivesEventName,
		"event.domain":  objectivesEventDomain,
		"severity_text": severity,
		"attributes":    attrs,
	}).Info("observability.event")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
