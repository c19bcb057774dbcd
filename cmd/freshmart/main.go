package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"freshmart/internal/api"
	"freshmart/internal/config"
	"freshmart/internal/domain"
	"freshmart/internal/handlers/expiry"
	"freshmart/internal/handlers/report"
	"freshmart/internal/handlers/repricing"
	"freshmart/internal/runner"
	"freshmart/internal/store"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config path (optional)")
		addr       = flag.String("addr", "", "HTTP bind address (overrides config)")
		dbPath     = flag.String("db", "", "SQLite DB path (overrides config)")
		seed       = flag.Bool("seed", false, "insert demo catalog data and default tasks on startup")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=journal_mode(WAL)", cfg.Database.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()
	db.SetMaxOpenConns(1) // SQLite single writer

	if err := store.EnsureSchema(db); err != nil {
		log.Fatal().Err(err).Msg("ensure schema")
	}

	st := store.New(db)
	if n, err := st.ReleaseExpiredClaims(context.Background(), time.Now()); err == nil && n > 0 {
		log.Info().Int("released", n).Msg("released expired task claims")
	}
	if *seed {
		if err := seedDemoData(context.Background(), st); err != nil {
			log.Fatal().Err(err).Msg("seed demo data")
		}
	}

	registry := runner.NewRegistry(
		repricing.New(st),
		expiry.New(st, st),
		report.New(st, st),
	)
	run := runner.New(st, st, registry,
		time.Duration(cfg.Runner.TaskTimeout)*time.Second,
		time.Duration(cfg.Runner.ClaimLease)*time.Second)

	// Periodic invoker: the engine owns no timer loop, this cron entry
	// is the external trigger calling the same invocation contract the
	// HTTP surface exposes.
	trigger := cron.New()
	if cfg.Runner.TriggerEvery != "" {
		_, err := trigger.AddFunc("@every "+cfg.Runner.TriggerEvery, func() {
			results, err := run.Run(context.Background(), domain.RunFilter{})
			if err != nil {
				log.Error().Err(err).Msg("periodic invocation failed")
				return
			}
			if len(results) > 0 {
				log.Info().Int("tasks", len(results)).Msg("periodic invocation finished")
			}
		})
		if err != nil {
			log.Fatal().Err(err).Str("every", cfg.Runner.TriggerEvery).Msg("invalid trigger cadence")
		}
		trigger.Start()
		defer trigger.Stop()
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewServerWithDebug(st, st, run, registry, cfg.Runner.EnableDebug),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	log.Info().Msg("shutting down")
	ctxTimeout, cancelTimeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelTimeout()
	_ = srv.Shutdown(ctxTimeout)
}
