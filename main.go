package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/openboard/modkit/internal/config"
	"github.com/openboard/modkit/internal/db/sqlite"
	"github.com/openboard/modkit/internal/event"
	"github.com/openboard/modkit/internal/infra"
	"github.com/openboard/modkit/internal/lifecycle"
	"github.com/openboard/modkit/internal/observability"
	"github.com/openboard/modkit/internal/scheduler"
)

func main() {
	cfg := config.Get()
	log.SetFormatter(&config.MkFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.Level(cfg.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := observability.Init(ctx, cfg.MetricsAddr); err != nil {
		log.WithError(err).Fatalln("cant init observability")
	}

	store, err := sqlite.NewSQLiteClient(ctx, infra.GetWorkDir(), cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatalln("cant open store")
	}
	defer store.Close()

	defer event.RunWorker()()

	runtime := lifecycle.NewRuntime()
	if cfg.Scheduler.Enabled {
		worker := scheduler.NewWorker(store, store, scheduler.WorkerOptions{
			PollInterval: cfg.Scheduler.PollInterval,
			ClaimTTL:     cfg.Scheduler.ClaimTTL,
			MaxFailures:  cfg.Scheduler.MaxFailures,
		})
		runtime.Register(worker)
	} else {
		log.Warnln("durable scheduling disabled, deferred jobs will not run")
	}

	if err := runtime.Start(ctx); err != nil {
		log.WithError(err).Fatalln("cant start runtime")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		return runtime.Stop(stopCtx)
	})
	if err := g.Wait(); err != nil {
		log.WithError(err).Errorln("shutdown error")
	}
}
