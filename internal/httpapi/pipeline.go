package httpapi

import (
	"net/http"
	"strings"
)

// Stage is one named step of a request pipeline. Wrap returns a handler that
// either short-circuits with a response or calls next.
type Stage struct {
	Name string
	Wrap func(next http.Handler) http.Handler
}

// Pipeline is an ordered list of stages. The first stage sees the request
// first.
type Pipeline []Stage

// Then builds the handler chain around h.
func (p Pipeline) Then(h http.Handler) http.Handler {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i].Wrap != nil {
			h = p[i].Wrap(h)
		}
	}
	return h
}

// ThenFunc is Then for a handler function.
func (p Pipeline) ThenFunc(fn http.HandlerFunc) http.Handler {
	return p.Then(fn)
}

// With returns a copy of p extended with more stages.
func (p Pipeline) With(stages ...Stage) Pipeline {
	out := make(Pipeline, 0, len(p)+len(stages))
	out = append(out, p...)
	return append(out, stages...)
}

// Names lists stage names in execution order.
func (p Pipeline) Names() []string {
	names := make([]string, len(p))
	for i, s := range p {
		names[i] = s.Name
	}
	return names
}

func (p Pipeline) String() string {
	return strings.Join(p.Names(), " -> ")
}
