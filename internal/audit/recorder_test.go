package audit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"
)

type fakeStore struct {
	mu      sync.Mutex
	events  []Event
	delay   time.Duration
	failErr error
	cutoff  time.Time
	deleted int64
}

func (s *fakeStore) Append(ctx context.Context, e *Event) error {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.failErr != nil {
		return s.failErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *e)
	return nil
}

func (s *fakeStore) List(context.Context, Filter) ([]Event, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]Event(nil), s.events...)
	return out, len(out), nil
}

func (s *fakeStore) Summary(context.Context, string, time.Time, time.Time) ([]ActionSummary, error) {
	return nil, nil
}

func (s *fakeStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	if s.failErr != nil {
		return 0, s.failErr
	}
	s.cutoff = cutoff
	return s.deleted, nil
}

func (s *fakeStore) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func validEvent() Event {
	return Event{
		TenantID:     "LogisticsCo",
		UserID:       "01HZX0000000000000000000AA",
		Action:       ActionTicketCreate,
		ResourceType: "Ticket",
		ResourceID:   "01HZX0000000000000000000BB",
	}
}

func TestRecorderDoesNotBlockCaller(t *testing.T) {
	store := &fakeStore{delay: 200 * time.Millisecond}
	rec := NewRecorder(store, 1)

	start := time.Now()
	rec.Record(context.Background(), validEvent())
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("Record blocked for %v", elapsed)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rec.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	events := store.snapshot()
	if len(events) != 1 {
		t.Fatalf("expected exactly one stored event, got %d", len(events))
	}
	got := events[0]
	if got.ID == "" || got.Timestamp.IsZero() {
		t.Fatalf("expected id and timestamp to be filled: %+v", got)
	}
	if got.IPAddress != "Unknown" || got.UserAgent != "Unknown" {
		t.Fatalf("expected Unknown defaults, got ip=%q ua=%q", got.IPAddress, got.UserAgent)
	}
}

func TestRecorderCopiesRequestID(t *testing.T) {
	store := &fakeStore{}
	rec := NewRecorder(store, 1)
	rec.Record(WithRequestID(context.Background(), "req-42"), validEvent())
	if err := rec.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	events := store.snapshot()
	if len(events) != 1 || events[0].RequestID != "req-42" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestRecorderDropsInvalidEvents(t *testing.T) {
	store := &fakeStore{}
	rec := NewRecorder(store, 1)

	noTenant := validEvent()
	noTenant.TenantID = ""
	badAction := validEvent()
	badAction.Action = "EXPLODE"
	longType := validEvent()
	longType.ResourceType = strings.Repeat("T", maxResourceType+1)

	for _, e := range []Event{noTenant, badAction, longType} {
		rec.Record(context.Background(), e)
	}
	if err := rec.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if n := len(store.snapshot()); n != 0 {
		t.Fatalf("expected invalid events to be dropped, stored %d", n)
	}
}

func TestRecorderTruncatesLongFields(t *testing.T) {
	store := &fakeStore{}
	rec := NewRecorder(store, 1)
	e := validEvent()
	e.ResourceID = strings.Repeat("x", 300)
	e.UserAgent = strings.Repeat("a", 900)
	rec.Record(context.Background(), e)
	_ = rec.Close(context.Background())

	events := store.snapshot()
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	if len(events[0].ResourceID) != maxResourceID {
		t.Fatalf("resource id length = %d", len(events[0].ResourceID))
	}
	if len(events[0].UserAgent) != maxUserAgent {
		t.Fatalf("user agent length = %d", len(events[0].UserAgent))
	}
}

func TestRecorderTruncatesOnCharacterBoundary(t *testing.T) {
	store := &fakeStore{}
	rec := NewRecorder(store, 1)
	e := validEvent()
	e.ResourceID = "x" + strings.Repeat("é", 300)
	e.UserAgent = "a" + strings.Repeat("é", 900)
	rec.Record(context.Background(), e)
	_ = rec.Close(context.Background())

	events := store.snapshot()
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	got := events[0]
	if !utf8.ValidString(got.ResourceID) || !utf8.ValidString(got.UserAgent) {
		t.Fatalf("truncation produced invalid UTF-8: %q / %q", got.ResourceID, got.UserAgent)
	}
	if n := utf8.RuneCountInString(got.ResourceID); n != maxResourceID {
		t.Fatalf("resource id has %d characters, want %d", n, maxResourceID)
	}
	if n := utf8.RuneCountInString(got.UserAgent); n != maxUserAgent {
		t.Fatalf("user agent has %d characters, want %d", n, maxUserAgent)
	}
}

func TestTruncateShortMultibyteUnchanged(t *testing.T) {
	s := strings.Repeat("é", maxResourceID)
	if got := truncate(s, maxResourceID); got != s {
		t.Fatalf("string at the limit was modified: %q", got)
	}
}

func TestRecorderSurvivesStoreFailure(t *testing.T) {
	store := &fakeStore{failErr: errors.New("disk on fire")}
	rec := NewRecorder(store, 2)
	for range 5 {
		rec.Record(context.Background(), validEvent())
	}
	if err := rec.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestRecorderDropsWhenQueueFull(t *testing.T) {
	store := &fakeStore{delay: 100 * time.Millisecond}
	rec := NewRecorder(store, 1, WithQueueSize(1))
	for range 10 {
		rec.Record(context.Background(), validEvent())
	}
	_ = rec.Close(context.Background())
	if n := len(store.snapshot()); n >= 10 {
		t.Fatalf("expected some events to be dropped, stored %d", n)
	}
}

func TestRecorderIgnoresRecordAfterClose(t *testing.T) {
	store := &fakeStore{}
	rec := NewRecorder(store, 1)
	if err := rec.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	rec.Record(context.Background(), validEvent())
	if err := rec.Close(context.Background()); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if n := len(store.snapshot()); n != 0 {
		t.Fatalf("expected no events after close, got %d", n)
	}
}
