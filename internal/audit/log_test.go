package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"flowbit.dev/internal/obs"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	orig := *obs.Logger()
	var buf bytes.Buffer
	obs.SetLogger(zerolog.New(&buf))
	t.Cleanup(func() { obs.SetLogger(orig) })
	return &buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	return entry
}

func TestLogEventLevels(t *testing.T) {
	buf := captureLog(t)
	e := Event{TenantID: "T1", UserID: "u-1", Action: ActionLogin, ResourceType: "User"}

	LogEvent(e, "persisted", nil)
	entry := lastEntry(t, buf)
	if entry["level"] != "info" || entry["outcome"] != "persisted" || entry["action"] != "LOGIN" || entry["type"] != "audit" {
		t.Fatalf("unexpected entry: %v", entry)
	}

	LogEvent(e, "store_failed", errors.New("disk full"))
	entry = lastEntry(t, buf)
	if entry["level"] != "warn" || entry["error"] != "disk full" {
		t.Fatalf("unexpected failure entry: %v", entry)
	}
}

func TestLogSinkNormalizesEvents(t *testing.T) {
	buf := captureLog(t)
	ctx := WithRequestID(context.Background(), "req-9")

	LogSink{}.Record(ctx, Event{TenantID: "T1", UserID: "u-1", Action: ActionTicketCreate, ResourceType: "Ticket"})
	entry := lastEntry(t, buf)
	if entry["outcome"] != "logged" || entry["request_id"] != "req-9" || entry["event_id"] == "" {
		t.Fatalf("unexpected entry: %v", entry)
	}

	LogSink{}.Record(ctx, Event{TenantID: "T1", UserID: "u-1", Action: "NOPE", ResourceType: "Ticket"})
	entry = lastEntry(t, buf)
	if entry["outcome"] != "invalid" || entry["level"] != "warn" {
		t.Fatalf("expected invalid event to be logged as such: %v", entry)
	}
}
