package audit

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"flowbit.dev/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request id from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit event to the structured log. It is the fallback
// when an event cannot be persisted, so nothing is lost silently.
func LogEvent(e Event, outcome string, err error) {
	var entry *zerolog.Event
	if err != nil {
		entry = obs.Logger().Warn().Err(err)
	} else {
		entry = obs.Logger().Info()
	}
	entry.
		Str("type", "audit").
		Str("outcome", outcome).
		Str("event_id", e.ID).
		Str("tenant_id", e.TenantID).
		Str("user_id", e.UserID).
		Str("action", string(e.Action)).
		Str("resource_type", e.ResourceType).
		Str("resource_id", e.ResourceID).
		Str("request_id", e.RequestID).
		Str("ip", e.IPAddress).
		Time("occurred_at", e.Timestamp).
		Interface("details", e.Details).
		Msg("audit_event")
}

// LogSink records events to the structured log only. It backs deployments
// and tools that run without an audit store.
type LogSink struct{}

func (LogSink) Record(ctx context.Context, e Event) {
	if e.RequestID == "" {
		e.RequestID = RequestIDFromContext(ctx)
	}
	if err := e.normalize(time.Now()); err != nil {
		LogEvent(e, "invalid", err)
		return
	}
	LogEvent(e, "logged", nil)
}
