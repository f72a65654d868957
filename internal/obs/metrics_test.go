package obs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"flowbit.dev/internal/ids"
)

func TestCanonicalPath(t *testing.T) {
	id := ids.New()
	cases := map[string]string{
		"":                                     "/",
		"/metrics":                             "/metrics",
		"/api/tickets/" + id:                   "/api/tickets/:id",
		"/api/admin/users/" + id + "/activate": "/api/admin/users/:id/activate",
		"/api/tickets?page=2":                  "/api/tickets",
		"/api/tickets/not-an-id":               "/api/tickets/not-an-id",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestInstrumentPassesThroughStatus(t *testing.T) {
	Init()
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", rr.Code)
	}
}
