package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"flowbit.dev/internal/audit"
	"flowbit.dev/internal/auth"
	"flowbit.dev/internal/config"
	"flowbit.dev/internal/obs"
	"flowbit.dev/internal/store/pg"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	obs.InitLogger(obs.LogConfig{Level: "info", Format: "console", Output: os.Stderr})

	var err error
	switch os.Args[1] {
	case "useradd":
		err = runUserAdd(os.Args[2:])
	case "purge-audit":
		err = runPurgeAudit(os.Args[2:])
	case "token":
		err = runToken(os.Args[2:])
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func openStore(cfg *config.Config) (*pg.Store, error) {
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	return pg.Open(cfg.Database.DSN)
}

func runUserAdd(args []string) error {
	fs := flag.NewFlagSet("useradd", flag.ExitOnError)
	var (
		tenant   = fs.String("tenant", "", "Tenant (customer) id")
		email    = fs.String("email", "", "Account email")
		password = fs.String("password", "", "Initial password (min 8 characters)")
		role     = fs.String("role", "User", "User, Admin or SuperAdmin")
		first    = fs.String("first", "", "First name")
		last     = fs.String("last", "", "Last name")
	)
	_ = fs.Parse(args)
	if len(*password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	r, err := auth.ParseRole(*role)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	tokens, err := auth.NewTokenService(cfg.JWT.Secret, cfg.JWT.RefreshSecret)
	if err != nil {
		return err
	}
	svc, err := auth.NewService(store.Users(), tokens, auth.WithBcryptCost(cfg.Security.BcryptRounds))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	u, err := svc.CreateUser(ctx, auth.NewUser{
		TenantID: *tenant, Email: *email, Password: *password, Role: r, FirstName: *first, LastName: *last,
	})
	if err != nil {
		return err
	}
	fmt.Printf("created %s %s in %s (%s)\n", u.Role, u.Email, u.TenantID, u.ID)
	return nil
}

func runPurgeAudit(args []string) error {
	fs := flag.NewFlagSet("purge-audit", flag.ExitOnError)
	days := fs.Int("days", 0, "Retention in days (default: audit.retention_days)")
	_ = fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	retention := cfg.AuditRetention()
	if *days > 0 {
		retention = time.Duration(*days) * 24 * time.Hour
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	purger, err := audit.NewPurger(store.Audit(), retention, cfg.Audit.PurgeSchedule)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	n, err := purger.RunOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("purged %d audit events older than %s\n", n, retention)
	return nil
}

// runToken verifies a token with the configured secrets and prints its claims.
func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	refresh := fs.Bool("refresh", false, "Verify as a refresh token")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: token [-refresh] <jwt>")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenService(cfg.JWT.Secret, cfg.JWT.RefreshSecret,
		auth.WithIssuer(cfg.JWT.Issuer), auth.WithAudience(cfg.JWT.Audience))
	if err != nil {
		return err
	}
	verify := tokens.VerifyAccessToken
	if *refresh {
		verify = tokens.VerifyRefreshToken
	}
	claims, err := verify(fs.Arg(0))
	if err != nil {
		if c := auth.DecodeUnsafe(fs.Arg(0)); c != nil {
			fmt.Printf("unverified: tenant=%s user=%s role=%s\n", c.TenantID, c.UserID, c.Role)
		}
		return err
	}
	fmt.Printf("tenant=%s user=%s email=%s role=%s expires=%s\n",
		claims.TenantID, claims.UserID, claims.Email, claims.Role, claims.ExpiresAt.Time.Format(time.RFC3339))
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <useradd|purge-audit|token> [flags]\n", os.Args[0])
	os.Exit(1)
}
