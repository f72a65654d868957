package httpapi

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"flowbit.dev/internal/auth"
	"flowbit.dev/internal/obs"
)

const readyTimeout = 2 * time.Second

func (a *API) uptime() float64 {
	return a.now().Sub(a.started).Seconds()
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"service":     serviceName,
		"timestamp":   a.now().UTC().Format(time.RFC3339),
		"uptime":      a.uptime(),
		"environment": a.deps.Environment,
		"version":     a.deps.Version,
	}, "")
}

func (a *API) checkReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	err := a.deps.Ready.Check(ctx)
	obs.SetReady(err == nil)
	return err
}

// healthDetailed reports component state. Component details are only shown
// to authenticated admins; everyone else gets the overall status.
func (a *API) healthDetailed(w http.ResponseWriter, r *http.Request) {
	status, db := "healthy", map[string]any{"status": "healthy", "store": a.deps.StoreKind}
	if err := a.checkReady(r.Context()); err != nil {
		status = "unhealthy"
		db["status"] = "unhealthy"
		db["error"] = err.Error()
	}
	data := map[string]any{
		"status":      status,
		"timestamp":   a.now().UTC().Format(time.RFC3339),
		"uptime":      a.uptime(),
		"environment": a.deps.Environment,
		"version":     a.deps.Version,
	}
	if p, ok := auth.PrincipalFromContext(r.Context()); ok && auth.IsAdmin(p.Role) {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		data["database"] = db
		data["memory"] = map[string]uint64{
			"used":  ms.HeapAlloc,
			"total": ms.HeapSys,
			"sys":   ms.Sys,
		}
		data["goroutines"] = runtime.NumGoroutine()
		if a.deps.QueueDepth != nil {
			data["auditQueueDepth"] = a.deps.QueueDepth()
		}
		if a.deps.Workflow != nil {
			data["workflowBreaker"] = a.deps.Workflow.State()
		}
	}
	writeData(w, http.StatusOK, data, "")
}

func (a *API) ready(w http.ResponseWriter, r *http.Request) {
	if err := a.checkReady(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, envelope{
			Error:     "Service not ready",
			Details:   err.Error(),
			RequestID: RequestIDFromContext(r.Context()),
		})
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": "ready"}, "")
}

func (a *API) live(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]any{
		"status":    "alive",
		"timestamp": a.now().UTC().Format(time.RFC3339),
	}, "")
}
