package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"flowbit.dev/internal/audit"
	"flowbit.dev/internal/auth"
)

func TestAuditRecordsSuccessfulMutation(t *testing.T) {
	sink := &captureSink{}
	mux := http.NewServeMux()
	mux.Handle("PUT /api/tickets/{id}", Pipeline{
		Audit(sink, AuditRule{Action: audit.ActionTicketUpdate, ResourceType: "Ticket"}),
	}.ThenFunc(okHandler))

	req := httptest.NewRequest(http.MethodPut, "/api/tickets/t-42?x=1", strings.NewReader(`{"status":"Closed"}`))
	req.Header.Set("User-Agent", "tests/1.0")
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	req = withPrincipal(req, auth.Principal{UserID: "u-1", TenantID: "T1", Role: auth.RoleUser})
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	events := sink.snapshot()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.TenantID != "T1" || e.UserID != "u-1" || e.ResourceID != "t-42" || e.ResourceType != "Ticket" {
		t.Fatalf("unexpected event: %+v", e)
	}
	if e.IPAddress != "192.0.2.1" || e.UserAgent != "tests/1.0" {
		t.Fatalf("unexpected request metadata: %+v", e)
	}
	if e.Details["method"] != http.MethodPut || e.Details["url"] != "/api/tickets/t-42?x=1" || e.Details["statusCode"] != http.StatusOK {
		t.Fatalf("unexpected details: %v", e.Details)
	}
}

func TestAuditSkipsFailuresAndAnonymous(t *testing.T) {
	sink := &captureSink{}
	failing := Pipeline{Audit(sink, AuditRule{Action: audit.ActionTicketCreate})}.ThenFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusBadRequest, "Validation failed")
	})
	req := withPrincipal(httptest.NewRequest(http.MethodPost, "/api/tickets", nil), auth.Principal{UserID: "u", TenantID: "T"})
	failing.ServeHTTP(httptest.NewRecorder(), req)

	anonymous := Pipeline{Audit(sink, AuditRule{Action: audit.ActionTicketCreate})}.ThenFunc(okHandler)
	anonymous.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/tickets", nil))

	if n := len(sink.snapshot()); n != 0 {
		t.Fatalf("expected no events, got %d", n)
	}
}

func TestAuditSystemRuleAndBodyID(t *testing.T) {
	sink := &captureSink{}
	var body string
	h := Pipeline{Audit(sink, AuditRule{Action: audit.ActionWebhookReceived, ResourceType: "Webhook", System: true})}.
		ThenFunc(func(w http.ResponseWriter, r *http.Request) {
			var sb strings.Builder
			buf := make([]byte, 64)
			for {
				n, err := r.Body.Read(buf)
				sb.Write(buf[:n])
				if err != nil {
					break
				}
			}
			body = sb.String()
			w.WriteHeader(http.StatusAccepted)
		})

	payload := `{"id":1234,"status":"done"}`
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/webhook/ticket-done", strings.NewReader(payload)))

	if body != payload {
		t.Fatalf("handler saw %q, want the original body", body)
	}
	events := sink.snapshot()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.UserID != audit.SystemActor || e.TenantID != audit.SystemActor || e.ResourceID != "1234" {
		t.Fatalf("unexpected system event: %+v", e)
	}
	if e.Details["statusCode"] != http.StatusAccepted {
		t.Fatalf("expected recorded status 202, got %v", e.Details["statusCode"])
	}
}
