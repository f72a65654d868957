package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"flowbit.dev/internal/audit"
	"flowbit.dev/internal/auth"
	"flowbit.dev/internal/config"
	"flowbit.dev/internal/httpapi"
	"flowbit.dev/internal/obs"
	"flowbit.dev/internal/store/memory"
	"flowbit.dev/internal/store/pg"
	"flowbit.dev/internal/ticket"
	"flowbit.dev/internal/workflow"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

type stores struct {
	kind    string
	users   auth.UserStore
	tickets ticket.Store
	audit   audit.Store
	ready   httpapi.Checker
	close   func() error
}

func openStores(cfg *config.Config) (*stores, error) {
	if cfg.Database.DSN == "" {
		if !cfg.Development() {
			return nil, errors.New("database.dsn is required outside development")
		}
		return &stores{
			kind:    "memory",
			users:   memory.NewUsers(),
			tickets: memory.NewTickets(),
			audit:   memory.NewAudit(),
			ready:   httpapi.ReadyProbe{},
			close:   func() error { return nil },
		}, nil
	}
	db, err := pg.Open(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	return &stores{
		kind:    "postgres",
		users:   db.Users(),
		tickets: db.Tickets(),
		audit:   db.Audit(),
		ready:   httpapi.ReadyProbe{DB: db},
		close:   db.Close,
	}, nil
}

func bootstrapAdmin(ctx context.Context, svc *auth.Service, b config.BootstrapConfig) error {
	if b.Email == "" {
		return nil
	}
	role, err := auth.ParseRole(b.Role)
	if err != nil {
		return err
	}
	u, err := svc.CreateUser(ctx, auth.NewUser{
		TenantID: b.Tenant,
		Email:    b.Email,
		Password: b.Password,
		Role:     role,
	})
	switch {
	case errors.Is(err, auth.ErrAlreadyExists):
		obs.Logger().Info().Str("email", b.Email).Msg("bootstrap account already present")
		return nil
	case err != nil:
		return err
	}
	obs.Logger().Info().Str("user_id", u.ID).Str("tenant", u.TenantID).Str("role", string(u.Role)).Msg("bootstrap account created")
	return nil
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	obs.InitLogger(obs.LogConfig{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	obs.Init()
	obs.InitBuildInfo(version, commit)
	logger := obs.Logger()
	for _, w := range cfg.Warnings {
		logger.Warn().Msg(w)
	}

	st, err := openStores(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.close(); err != nil {
			logger.Warn().Err(err).Msg("close store")
		}
	}()

	recorder := audit.NewRecorder(st.audit, cfg.Audit.Workers, audit.WithQueueSize(cfg.Audit.QueueSize))
	purger, err := audit.NewPurger(st.audit, cfg.AuditRetention(), cfg.Audit.PurgeSchedule)
	if err != nil {
		return fmt.Errorf("audit purger: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.JWT.Secret, cfg.JWT.RefreshSecret,
		auth.WithIssuer(cfg.JWT.Issuer),
		auth.WithAudience(cfg.JWT.Audience),
		auth.WithAccessTTL(cfg.AccessTTL()),
		auth.WithRefreshTTL(cfg.RefreshTTL()),
	)
	if err != nil {
		return fmt.Errorf("token service: %w", err)
	}
	svc, err := auth.NewService(st.users, tokens,
		auth.WithAuditSink(recorder),
		auth.WithBcryptCost(cfg.Security.BcryptRounds),
	)
	if err != nil {
		return fmt.Errorf("auth service: %w", err)
	}

	flow, err := workflow.New(cfg.Workflow.BaseURL, cfg.Workflow.WebhookSecret)
	if err != nil {
		return fmt.Errorf("workflow client: %w", err)
	}

	var proxies []netip.Prefix
	for _, p := range cfg.Server.TrustedProxies {
		prefix, err := config.ParseProxy(p)
		if err != nil {
			return err
		}
		proxies = append(proxies, prefix)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bootstrapAdmin(ctx, svc, cfg.Bootstrap); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	api := httpapi.New(httpapi.Deps{
		Auth:           svc,
		Users:          st.users,
		Tickets:        st.tickets,
		AuditStore:     st.audit,
		Audit:          recorder,
		Workflow:       flow,
		Ready:          st.ready,
		WebhookSecret:  cfg.Workflow.WebhookSecret,
		Version:        version,
		Environment:    cfg.Server.Environment,
		StoreKind:      st.kind,
		CORSOrigins:    cfg.CORS.Origins,
		TrustedProxies: proxies,
		RateWindow:     cfg.RateWindow(),
		RateMax:        cfg.RateLimit.MaxRequests,
		AuthRateMax:    cfg.RateLimit.AuthMaxRequests,
		BodyLimitBytes: cfg.Server.BodyLimitBytes,
		QueueDepth:     recorder.QueueDepth,
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	healthSrv := httpapi.NewHealthServer(st.ready, 10*time.Second)
	grpcSrv := grpc.NewServer()
	healthSrv.Register(grpcSrv)

	if err := purger.Start(); err != nil {
		return fmt.Errorf("start purger: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Str("version", version).Str("store", st.kind).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if cfg.Server.GRPCPort > 0 {
		lis, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.Server.GRPCPort))
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		g.Go(func() error {
			logger.Info().Str("addr", lis.Addr().String()).Msg("grpc health listening")
			if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		healthSrv.Run(gctx)
		return nil
	})
	g.Go(func() error {
		api.RateLimiter().Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		grpcSrv.GracefulStop()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	purger.Stop(drainCtx)
	if cerr := recorder.Close(drainCtx); cerr != nil {
		logger.Warn().Err(cerr).Msg("audit queue not fully drained")
	}
	logger.Info().Msg("stopped")
	return err
}

func main() {
	if err := run(); err != nil {
		obs.Logger().Fatal().Err(err).Msg("flowbit-api failed")
	}
}
