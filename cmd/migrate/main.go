package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"flowbit.dev/internal/migrate"
	"flowbit.dev/internal/obs"
)

func defaultDSN() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	return os.Getenv("PG_DSN")
}

func main() {
	var (
		dsn     = flag.String("dsn", defaultDSN(), "PostgreSQL DSN")
		dir     = flag.String("migrations", "", "Directory of SQL migrations (default: embedded)")
		timeout = flag.Duration("timeout", 30*time.Second, "Overall timeout")
	)
	flag.Parse()

	obs.InitLogger(obs.LogConfig{Level: "info", Format: "console"})
	logger := obs.Logger().With().Str("component", "migrate").Logger()

	if *dsn == "" {
		logger.Fatal().Msg("missing DSN: provide via -dsn, DATABASE_URL or PG_DSN")
	}
	if len(flag.Args()) == 0 {
		logger.Fatal().Msg("usage: migrate [up|down|status]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()

	var files = migrate.Embedded()
	if *dir != "" {
		files = os.DirFS(*dir)
	}
	mgr := migrate.NewManager(db, files)

	switch flag.Arg(0) {
	case "up":
		var applied []string
		applied, err = mgr.Up(ctx)
		for _, name := range applied {
			logger.Info().Str("migration", name).Msg("applied")
		}
		if err == nil && len(applied) == 0 {
			logger.Info().Msg("schema up to date")
		}
	case "down":
		var name string
		name, err = mgr.Down(ctx)
		if err == nil {
			logger.Info().Str("migration", name).Msg("rolled back")
		}
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		if err == nil {
			for _, item := range history {
				fmt.Println(item)
			}
		}
	default:
		logger.Fatal().Msgf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		logger.Fatal().Err(err).Msgf("migrate %s", flag.Arg(0))
	}
}
