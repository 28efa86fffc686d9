package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/papaburgs/fluffy-miner/internal/api"
	"github.com/papaburgs/fluffy-miner/internal/app"
	"github.com/papaburgs/fluffy-miner/internal/cache"
	"github.com/papaburgs/fluffy-miner/internal/clock"
	"github.com/papaburgs/fluffy-miner/internal/collector"
	"github.com/papaburgs/fluffy-miner/internal/config"
	"github.com/papaburgs/fluffy-miner/internal/db"
	"github.com/papaburgs/fluffy-miner/internal/events"
	"github.com/papaburgs/fluffy-miner/internal/fleet"
	"github.com/papaburgs/fluffy-miner/internal/game"
	"github.com/papaburgs/fluffy-miner/internal/gate"
	"github.com/papaburgs/fluffy-miner/internal/logging"
	"github.com/papaburgs/fluffy-miner/internal/systems"
	"github.com/papaburgs/fluffy-miner/internal/telemetry"
	"github.com/papaburgs/fluffy-miner/internal/workflow"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "path to a yaml config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logging.InitLogger(cfg.Log.Level, cfg.Log.Format)

	shutdownTracing, err := telemetry.Init("fluffy-miner", version, cfg.Telemetry.Exporter)
	if err != nil {
		slog.Error("failed to init telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()

	database, err := db.Connect(cfg.DB.URL, cfg.DB.AuthToken)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	store, err := db.NewStore(database)
	if err != nil {
		slog.Error("failed to initialize schema", "error", err)
		os.Exit(1)
	}

	g := gate.New(cfg.API.RatePerSecond, cfg.API.Burst)
	defer g.Stop()
	client := api.NewHTTPClient(cfg.API.BaseURL, cfg.API.Token, cfg.API.Timeout, g)

	c := cache.New(cache.WithTTL(cache.Status, cfg.Cache.StatusTTL))
	clk := clock.RealClock{}
	fl := fleet.New(client, c, clk)
	sys := systems.New(client, c)
	gs := game.New(client, c, fl, sys, store)
	engine := workflow.New(gs, sys, fl, clk, store, workflow.Config{
		ShipType:  cfg.Workflow.ShipType,
		SaleDelay: cfg.Workflow.SaleDelay,
	})
	publisher := events.NewPublisher(gs, fl, cfg.Events.Interval)
	a := app.NewApp(gs, fl, engine, publisher, store)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Collector.Interval > 0 {
		go collector.New(client, store).Run(ctx, cfg.Collector.Interval)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           a.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("server shutdown", "error", err)
		}
	}()

	slog.Info("starting fluffy miner", "version", version, "addr", cfg.Server.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server done")
}
