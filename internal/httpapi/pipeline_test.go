package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func traceStage(name string, trace *[]string, stop bool) Stage {
	return Stage{Name: name, Wrap: func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*trace = append(*trace, name)
			if stop {
				w.WriteHeader(http.StatusTeapot)
				return
			}
			next.ServeHTTP(w, r)
		})
	}}
}

func TestPipelineRunsStagesInOrder(t *testing.T) {
	var trace []string
	p := Pipeline{traceStage("a", &trace, false), traceStage("b", &trace, false)}
	h := p.With(traceStage("c", &trace, false)).ThenFunc(func(w http.ResponseWriter, r *http.Request) {
		trace = append(trace, "handler")
	})
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got := strings.Join(trace, ","); got != "a,b,c,handler" {
		t.Fatalf("unexpected order: %s", got)
	}
	if len(p) != 2 {
		t.Fatalf("With must not modify the receiver, len=%d", len(p))
	}
}

func TestPipelineShortCircuits(t *testing.T) {
	var trace []string
	h := Pipeline{traceStage("a", &trace, true), traceStage("b", &trace, false)}.ThenFunc(okHandler)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusTeapot || strings.Join(trace, ",") != "a" {
		t.Fatalf("expected short circuit at a, got %d %v", rr.Code, trace)
	}
}

func TestAPIStageNames(t *testing.T) {
	env := newTestEnv(t)
	got := Pipeline(env.api.Stages()).String()
	want := "request-id -> client-ip -> recover -> logging -> metrics -> security-headers -> cors -> rate-limit -> body-limit"
	if got != want {
		t.Fatalf("unexpected global pipeline:\n got %s\nwant %s", got, want)
	}
}
