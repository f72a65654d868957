package httpapi

import (
	"context"
	"net/http"
	"net/netip"
	"time"

	"flowbit.dev/internal/audit"
	"flowbit.dev/internal/auth"
	"flowbit.dev/internal/obs"
	"flowbit.dev/internal/ticket"
	"flowbit.dev/internal/workflow"
)

const serviceName = "flowbit-api"

// Checker reports whether a dependency is ready to serve.
type Checker interface {
	Check(ctx context.Context) error
}

// Pinger is implemented by the PostgreSQL store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe pings the database when one is configured.
type ReadyProbe struct {
	DB Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.Ping(ctx)
}

// WorkflowTrigger starts workflows in the external engine.
type WorkflowTrigger interface {
	TicketCreated(ctx context.Context, p workflow.TicketCreated) error
	State() string
}

// Deps are the collaborators the HTTP layer is built from.
type Deps struct {
	Auth       *auth.Service
	Users      auth.UserStore
	Tickets    ticket.Store
	AuditStore audit.Store
	Audit      audit.Sink
	Workflow   WorkflowTrigger
	Ready      Checker

	WebhookSecret string
	Version       string
	Environment   string
	StoreKind     string

	CORSOrigins    []string
	TrustedProxies []netip.Prefix
	RateWindow     time.Duration
	RateMax        int
	AuthRateMax    int
	BodyLimitBytes int64
	Now            func() time.Time
	QueueDepth     func() int
}

// API is the HTTP layer of the helpdesk service.
type API struct {
	mux     *http.ServeMux
	deps    Deps
	limiter *RateLimiter
	started time.Time
	now     func() time.Time
}

// New wires routes and pipelines. Deps.Auth, Users, Tickets and AuditStore
// are required.
func New(d Deps) *API {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Audit == nil {
		d.Audit = audit.LogSink{}
	}
	if d.Ready == nil {
		d.Ready = ReadyProbe{}
	}
	if d.RateMax <= 0 {
		d.RateMax = 100
	}
	if d.AuthRateMax <= 0 {
		d.AuthRateMax = 20
	}
	if d.RateWindow <= 0 {
		d.RateWindow = 15 * time.Minute
	}
	if d.BodyLimitBytes <= 0 {
		d.BodyLimitBytes = maxRequestBody
	}
	if d.Environment == "" {
		d.Environment = "development"
	}
	a := &API{
		mux:     http.NewServeMux(),
		deps:    d,
		limiter: NewRateLimiter(d.RateMax, d.RateWindow),
		started: d.Now(),
		now:     d.Now,
	}
	a.routes()
	return a
}

func (a *API) routes() {
	d := a.deps
	sink := d.Audit

	public := Pipeline{}
	authRate := Pipeline{{Name: "auth-rate-limit", Wrap: AuthRateLimit(d.AuthRateMax, d.RateWindow)}}
	authed := Pipeline{Authenticate(d.Auth), TenantIsolation()}
	admin := Pipeline{Authenticate(d.Auth), RequireAdmin(), TenantIsolation()}
	webhook := Pipeline{a.webhookSecret()}

	// health
	a.mux.Handle("GET /api/health", public.ThenFunc(a.health))
	a.mux.Handle("GET /api/health/detailed", public.With(OptionalAuth(d.Auth)).ThenFunc(a.healthDetailed))
	a.mux.Handle("GET /api/health/ready", public.ThenFunc(a.ready))
	a.mux.Handle("GET /api/health/live", public.ThenFunc(a.live))
	a.mux.Handle("GET /metrics", obs.Handler())

	// auth
	a.mux.Handle("POST /api/auth/login", authRate.ThenFunc(a.login))
	a.mux.Handle("POST /api/auth/refresh", authRate.ThenFunc(a.refresh))
	a.mux.Handle("POST /api/auth/logout", public.ThenFunc(a.logout))

	// tickets
	a.mux.Handle("GET /api/tickets", authed.ThenFunc(a.listTickets))
	a.mux.Handle("POST /api/tickets", authed.With(Audit(sink, AuditRule{Action: audit.ActionTicketCreate, ResourceType: "Ticket"})).ThenFunc(a.createTicket))
	a.mux.Handle("GET /api/tickets/{id}", authed.ThenFunc(a.getTicket))
	a.mux.Handle("PUT /api/tickets/{id}", authed.With(Audit(sink, AuditRule{Action: audit.ActionTicketUpdate, ResourceType: "Ticket"})).ThenFunc(a.updateTicket))
	a.mux.Handle("DELETE /api/tickets/{id}", authed.With(Audit(sink, AuditRule{Action: audit.ActionTicketDelete, ResourceType: "Ticket"})).ThenFunc(a.deleteTicket))

	// current user
	me := Pipeline{Authenticate(d.Auth)}
	a.mux.Handle("GET /api/me/profile", me.ThenFunc(a.getProfile))
	a.mux.Handle("PUT /api/me/profile", me.With(Audit(sink, AuditRule{Action: audit.ActionUserUpdate, ResourceType: "User"})).ThenFunc(a.updateProfile))
	a.mux.Handle("GET /api/me/screens", me.ThenFunc(a.screens))
	a.mux.Handle("GET /api/me/audit-logs", me.ThenFunc(a.myAuditLogs))

	// admin
	userUpdate := Audit(sink, AuditRule{Action: audit.ActionUserUpdate, ResourceType: "User"})
	a.mux.Handle("GET /api/admin/users", admin.ThenFunc(a.listUsers))
	a.mux.Handle("POST /api/admin/users", admin.With(Audit(sink, AuditRule{Action: audit.ActionUserCreate, ResourceType: "User"})).ThenFunc(a.createUser))
	a.mux.Handle("POST /api/admin/users/{id}/activate", admin.With(userUpdate).ThenFunc(a.activateUser))
	a.mux.Handle("POST /api/admin/users/{id}/deactivate", admin.With(userUpdate).ThenFunc(a.deactivateUser))
	a.mux.Handle("GET /api/admin/audit-logs", admin.ThenFunc(a.adminAuditLogs))
	a.mux.Handle("GET /api/admin/analytics", admin.With(Audit(sink, AuditRule{Action: audit.ActionAdminAccess, ResourceType: "Analytics"})).ThenFunc(a.analytics))

	// webhooks
	a.mux.Handle("POST /api/webhook/ticket-done", webhook.With(Audit(sink, AuditRule{Action: audit.ActionWebhookReceived, ResourceType: "Webhook", System: true})).ThenFunc(a.ticketDone))
	a.mux.Handle("POST /api/webhook/n8n-status", webhook.ThenFunc(a.workflowStatus))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "Route not found")
	})
}

// Stages are the outer pipeline shared by every route.
func (a *API) Stages() Pipeline {
	return Pipeline{
		{Name: "request-id", Wrap: RequestID},
		{Name: "client-ip", Wrap: ClientIP(a.deps.TrustedProxies)},
		{Name: "recover", Wrap: Recover},
		{Name: "logging", Wrap: Logging},
		{Name: "metrics", Wrap: obs.Instrument},
		{Name: "security-headers", Wrap: SecurityHeaders},
		{Name: "cors", Wrap: CORS(a.deps.CORSOrigins)},
		{Name: "rate-limit", Wrap: a.limiter.Middleware},
		{Name: "body-limit", Wrap: MaxBodyBytes(a.deps.BodyLimitBytes)},
	}
}

// Handler returns the root http.Handler.
func (a *API) Handler() http.Handler {
	return a.Stages().Then(a.mux)
}

// RateLimiter exposes the global limiter so the caller can run its cleanup loop.
func (a *API) RateLimiter() *RateLimiter { return a.limiter }

func (a *API) record(r *http.Request, e audit.Event) {
	e.IPAddress = clientIP(r)
	if e.UserAgent == "" {
		e.UserAgent = r.UserAgent()
	}
	a.deps.Audit.Record(r.Context(), e)
}

func requestMeta(r *http.Request) auth.RequestMeta {
	return auth.RequestMeta{IPAddress: clientIP(r), UserAgent: r.UserAgent()}
}
