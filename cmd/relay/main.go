// main.go
// Wires the relay together: load config, build the registry, cache and
// broadcast engine, start the dispatch loop with its heartbeat, and serve
// websocket clients until SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"realtime-relay/internal/config"
	"realtime-relay/internal/logger"
	"realtime-relay/internal/metrics"
	"realtime-relay/internal/relay"
	"realtime-relay/internal/server"
	"realtime-relay/internal/sidewrite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("relay stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	promReg := metrics.NewRegistry()
	relayMetrics := metrics.NewRelay(promReg)

	registry := relay.NewRegistry()
	cache := relay.NewCache()
	engineOpts := []relay.EngineOption{relay.WithLogger(log), relay.WithMetrics(relayMetrics)}

	var checks []server.HealthCheck
	if cfg.RedisURL != "" {
		sink, err := sidewrite.NewRedisSink(cfg.RedisURL, cfg.SideWriteKey)
		if err != nil {
			return fmt.Errorf("side-write: %w", err)
		}
		defer sink.Close()

		writer := sidewrite.NewAsync(sink, cfg.SideWriteQueue, log.WithField("component", "sidewrite"), metrics.NewSideWrite(promReg))
		defer writer.Close()

		engineOpts = append(engineOpts, relay.WithPacketWriter(writer))
		checks = append(checks, server.HealthCheck{Name: "redis", Check: sink.Ping})
		log.WithField("key", cfg.SideWriteKey).Info("side-write to redis enabled")
	}

	engine := relay.NewEngine(registry, cache, cfg.Scope(), engineOpts...)
	heartbeat := relay.NewHeartbeat(registry, cfg.HeartbeatInterval, log, relayMetrics)
	manager := relay.NewManager(registry, engine, heartbeat, clockwork.NewRealClock(), log, relayMetrics)

	managerCtx, stopManager := context.WithCancel(ctx)
	defer stopManager()
	go manager.Run(managerCtx)

	srv := server.New(server.Options{
		Addr:         cfg.Addr(),
		Dispatcher:   manager,
		Registry:     registry,
		Cache:        cache,
		Client:       cfg.Client(),
		Log:          log,
		Metrics:      metrics.Handler(promReg),
		HealthChecks: checks,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		stopManager()
		<-manager.Done()
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	stopManager()
	<-manager.Done()
	return nil
}
