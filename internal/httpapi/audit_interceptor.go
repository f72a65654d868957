package httpapi

import (
	"bytes"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"flowbit.dev/internal/audit"
	"flowbit.dev/internal/auth"
)

// AuditRule declares what the interceptor records for a route.
type AuditRule struct {
	Action       audit.Action
	ResourceType string
	// System attributes events to the system actor when no principal is
	// present, as for webhook callbacks.
	System bool
}

// Audit records one event after the wrapped handler answers with a status
// below 400. The event is handed to sink without waiting for storage.
func Audit(sink audit.Sink, rule AuditRule) Stage {
	return Stage{Name: "audit:" + string(rule.Action), Wrap: func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyID := peekBodyID(r)
			sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(sw, r)
			if sw.code >= http.StatusBadRequest {
				return
			}

			tenantID, userID := audit.SystemActor, audit.SystemActor
			if p, ok := auth.PrincipalFromContext(r.Context()); ok {
				tenantID, userID = p.TenantID, p.UserID
			} else if !rule.System {
				return
			}

			resourceID := r.PathValue("id")
			if resourceID == "" {
				resourceID = bodyID
			}
			ip, ua := clientIP(r), r.UserAgent()
			sink.Record(r.Context(), audit.Event{
				TenantID:     tenantID,
				UserID:       userID,
				Action:       rule.Action,
				ResourceType: rule.ResourceType,
				ResourceID:   resourceID,
				Details: map[string]any{
					"method":     r.Method,
					"url":        r.URL.RequestURI(),
					"statusCode": sw.code,
					"userAgent":  ua,
					"ipAddress":  ip,
				},
				IPAddress: ip,
				UserAgent: ua,
			})
		})
	}}
}

// peekBodyID reads an "id" field from a JSON body and restores the body for
// the handler.
func peekBodyID(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if json.Unmarshal(raw, &probe) != nil || len(probe.ID) == 0 {
		return ""
	}
	var id string
	if json.Unmarshal(probe.ID, &id) == nil {
		return id
	}
	var n json.Number
	if json.Unmarshal(probe.ID, &n) == nil {
		return n.String()
	}
	return ""
}
