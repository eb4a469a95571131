// Command server runs the task registry HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tasking/internal/api"
	"tasking/internal/auth"
	"tasking/internal/config"
	"tasking/internal/db"
	"tasking/internal/host"
	"tasking/pkg/chain"
	"tasking/pkg/eventgraph"
	"tasking/pkg/task"
)

var configPath = flag.String("config", "", "path to YAML config file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := db.Open(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}
	defer stores.Close()
	if err := stores.EnsureTables(ctx); err != nil {
		log.Fatalf("%v", err)
	}

	counter, err := chain.Resume(ctx, stores.Tasks, cfg.Chain.GenesisHeight)
	if err != nil {
		log.Fatalf("%v", err)
	}
	go chain.NewProducer(counter, cfg.Chain.BlockInterval, stores.Tasks, logger).Run(ctx)

	bus := eventgraph.NewBus(stores.Events)
	registry := task.NewRegistry(stores.Tasks, counter)
	disp := host.NewDispatcher(registry, stores.Actors, bus, logger)

	if cfg.Auth.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set; tokens will not survive a restart")
	}
	handler := api.New(api.Options{
		Dispatcher: disp,
		Tasks:      stores.Tasks,
		Actors:     stores.Actors,
		Bus:        bus,
		Clock:      counter,
		Tokens:     auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		AdminKey:   cfg.Auth.AdminKey,
		Logger:     logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", slog.Any("err", err))
		}
	}()

	logger.Info("tasking listening",
		slog.String("addr", cfg.Server.Addr),
		slog.String("driver", cfg.Storage.Driver),
		slog.Uint64("height", counter.Height()),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("listen: %v", err)
	}
	if err := stores.Tasks.RecordHeight(context.Background(), counter.Height()); err != nil {
		logger.Error("record height", slog.Any("err", err))
	}
	logger.Info("shutdown complete", slog.Uint64("height", counter.Height()))
}
