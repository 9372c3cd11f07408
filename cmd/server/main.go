package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"choreboard/internal/chore"
	"choreboard/internal/config"
	"choreboard/internal/engine"
	"choreboard/internal/history"
	"choreboard/internal/instance"
	"choreboard/internal/kid"
	"choreboard/internal/notify"
	"choreboard/internal/points"
	"choreboard/internal/server"
	"choreboard/internal/store"
)

func main() {
	logger := log.Default()

	cfgPath := os.Getenv("CHOREBOARD_CONFIG")
	if cfgPath == "" {
		cfgPath = "choreboard.yml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	var (
		chores    chore.Repo
		kids      kid.Repo
		instances instance.Repo
		ledgers   points.Repo
	)
	switch cfg.Storage.Backend {
	case "sqlite":
		st, err := store.Open(cfg.Storage.DataDir)
		if err != nil {
			logger.Fatalf("open store: %v", err)
		}
		defer st.Close()
		chores, kids, instances, ledgers = st.Chores(), st.Kids(), st.Instances(), st.Ledgers()
	case "memory":
		chores, kids, instances, ledgers =
			chore.NewMemoryRepo(), kid.NewMemoryRepo(), instance.NewMemoryRepo(), points.NewMemoryRepo()
	default:
		logger.Fatalf("unknown storage backend %q", cfg.Storage.Backend)
	}

	hist := history.NewMemoryRepo()
	eng := engine.New(chores, kids, instances,
		points.NewEvaluator(ledgers),
		notify.MultiDispatcher{
			notify.LogDispatcher{Logger: logger},
			history.Dispatcher{Repo: hist},
		},
		engine.RealClock{}, logger,
		engine.Options{
			DueSoonWindow: cfg.Scheduler.DueSoonWindow,
			ReminderLead:  cfg.Scheduler.ReminderLead,
		})

	handler := server.NewHandler(&server.App{Engine: eng, History: hist}, logger)
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := &engine.Runner{Engine: eng, TickInterval: cfg.Scheduler.TickInterval}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Printf("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return runner.Run(ctx)
	})
	g.Go(func() error {
		err := config.Watch(ctx, cfgPath, logger, func(c *config.Config) {
			eng.SetWindows(c.Scheduler.DueSoonWindow, c.Scheduler.ReminderLead)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		return srv.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("server: %v", err)
	}
}
