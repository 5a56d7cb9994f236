package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/artist"
	artistrepo "github.com/ovaphlow/pitchfork/service-fanscore-go/internal/artist/repo"
	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/cohort"
	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/fan"
	fanrepo "github.com/ovaphlow/pitchfork/service-fanscore-go/internal/fan/repo"
	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/memstore"
	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/router"
	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/snapshot"
	snaprepo "github.com/ovaphlow/pitchfork/service-fanscore-go/internal/snapshot/repo"
	"github.com/ovaphlow/pitchfork/service-fanscore-go/internal/verification"
	tokenrepo "github.com/ovaphlow/pitchfork/service-fanscore-go/internal/verification/repo"
	"github.com/ovaphlow/pitchfork/service-fanscore-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-fanscore-go/pkg/utilities"
)

func main() {
	// best effort: without a .env file the real environment is used
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()
	sugar := lg.Sugar()

	root := &cli.Command{
		Name:  "fanscore",
		Usage: "Fan scoring and verification service",
		Commands: []*cli.Command{
			serveCommand(sugar),
			snapshotCommand(sugar),
			migrateCommand(sugar),
		},
	}
	args := os.Args
	if len(args) == 1 {
		args = append(args, "serve")
	}
	if err := root.Run(context.Background(), args); err != nil {
		sugar.Fatalw("command failed", "err", err)
	}
}

func storeFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "store",
		Value:   "postgres",
		Usage:   "storage backend: postgres or memory",
		Sources: cli.EnvVars("FANSCORE_STORE"),
	}
}

func serveCommand(sugar *zap.SugaredLogger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			storeFlag(),
			&cli.StringFlag{Name: "addr", Value: "0.0.0.0:8431", Usage: "HTTP listen address", Sources: cli.EnvVars("HTTP_ADDR")},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := build(ctx, c.String("store"), true, sugar)
			if err != nil {
				return err
			}
			defer a.close()
			return serve(ctx, c.String("addr"), a, sugar)
		},
	}
}

func snapshotCommand(sugar *zap.SugaredLogger) *cli.Command {
	return &cli.Command{
		Name:  "snapshot",
		Usage: "Write today's fan snapshots and tenant metrics",
		Flags: []cli.Flag{
			storeFlag(),
			&cli.StringFlag{Name: "artist", Usage: "only this artist; all artists when empty"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := build(ctx, c.String("store"), false, sugar)
			if err != nil {
				return err
			}
			defer a.close()

			if id := c.String("artist"); id != "" {
				rep, err := a.scheduler.RunTenant(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(rep)
			}
			reps, runErr := a.scheduler.RunAll(ctx)
			if err := printJSON(reps); err != nil {
				return err
			}
			return runErr
		},
	}
}

func migrateCommand(sugar *zap.SugaredLogger) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database migrations",
		Action: func(ctx context.Context, c *cli.Command) error {
			db, err := database.Connect(database.ConfigFromEnv())
			if err != nil {
				return fmt.Errorf("db connect: %w", err)
			}
			defer db.Close()
			if err := database.RunMigrations(ctx, db.DB); err != nil {
				return err
			}
			sugar.Info("migrations applied")
			return nil
		},
	}
}

type fanBackend interface {
	fan.FanStore
	fan.MetricStore
	fan.EventLog
	cohort.Source
}

type snapshotBackend interface {
	snapshot.Store
	cohort.History
}

type artistBackend interface {
	artist.Store
	snapshot.ArtistLister
}

type app struct {
	handlers  router.Handlers
	scheduler *snapshot.Scheduler
	close     func()
}

// build wires every service on top of the chosen storage backend. The token
// service, and with it VERIFICATION_SECRET, is only required when withTokens is set.
func build(ctx context.Context, kind string, withTokens bool, sugar *zap.SugaredLogger) (*app, error) {
	vcfg := verification.ConfigFromEnv()
	var key verification.SigningKey
	if withTokens {
		k, err := verification.DeriveSigningKey(vcfg.Secret, vcfg.Salt)
		if err != nil {
			return nil, err
		}
		key = k
	}

	var (
		fans    fanBackend
		snaps   snapshotBackend
		artists artistBackend
		tokens  verification.Registry
		closeFn = func() {}
	)
	switch kind {
	case "memory":
		m := memstore.New()
		fans, snaps, artists, tokens = m, m, m, m
		sugar.Warn("using in-memory store; data is lost on exit")
	case "postgres":
		db, err := database.Connect(database.ConfigFromEnv())
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		if err := database.RunMigrations(ctx, db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
		fans = fanrepo.NewStore(db)
		snaps = snaprepo.NewSnapshotRepo(db)
		artists = artistrepo.NewRepo(db)
		tokens = tokenrepo.NewTokenRepo(db)
		closeFn = func() { _ = db.Close() }
	default:
		return nil, fmt.Errorf("unknown store %q", kind)
	}

	fanSvc := fan.NewService(fans, fans, fans, sugar)
	cohortSvc := cohort.NewService(fans, snaps, sugar)
	sched := snapshot.NewScheduler(snaps, cohortSvc, artists, sugar)
	a := &app{
		handlers: router.Handlers{
			Fan:      fan.NewHandler(fanSvc, sugar),
			Cohort:   cohort.NewHandler(cohortSvc, sugar),
			Snapshot: snapshot.NewHandler(sched, sugar),
			Artist:   artist.NewHandler(artist.NewService(artists), sugar),
		},
		scheduler: sched,
		close:     closeFn,
	}
	if withTokens {
		tokenSvc := verification.NewService(key, fans, tokens, sugar).Configure(vcfg)
		a.handlers.Verification = verification.NewHandler(tokenSvc, sugar)
	}
	return a, nil
}

func serve(ctx context.Context, addr string, a *app, sugar *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           router.RegisterRoutes(sugar, a.handlers),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		sugar.Infow("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		sugar.Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("http server shutdown failed", "err", err)
	}
	sugar.Info("goodbye")
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
