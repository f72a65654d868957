package audit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPurgerRunOnceUsesRetentionCutoff(t *testing.T) {
	store := &fakeStore{deleted: 7}
	p, err := NewPurger(store, 30*24*time.Hour, "")
	if err != nil {
		t.Fatalf("new purger: %v", err)
	}
	now := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	n, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if n != 7 {
		t.Fatalf("deleted = %d, want 7", n)
	}
	want := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	if !store.cutoff.Equal(want) {
		t.Fatalf("cutoff = %v, want %v", store.cutoff, want)
	}
}

func TestPurgerPropagatesStoreError(t *testing.T) {
	store := &fakeStore{failErr: errors.New("boom")}
	p, err := NewPurger(store, time.Hour, "@hourly")
	if err != nil {
		t.Fatalf("new purger: %v", err)
	}
	if _, err := p.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewPurgerRejectsBadSchedule(t *testing.T) {
	if _, err := NewPurger(&fakeStore{}, time.Hour, "every tuesday"); err == nil {
		t.Fatal("expected schedule parse error")
	}
	if _, err := NewPurger(nil, time.Hour, ""); err == nil {
		t.Fatal("expected error for nil store")
	}
}

func TestPurgerStartStop(t *testing.T) {
	p, err := NewPurger(&fakeStore{}, time.Hour, "@every 1h")
	if err != nil {
		t.Fatalf("new purger: %v", err)
	}
	if err := p.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p.Stop(ctx)
}
