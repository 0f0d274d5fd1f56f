package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calionestevar/orionai/internal/alert"
	"github.com/calionestevar/orionai/internal/config"
	"github.com/calionestevar/orionai/internal/policy"
	"github.com/calionestevar/orionai/internal/server"
	"github.com/calionestevar/orionai/internal/telemetry"
)

func main() {
	addrFlag := flag.String("addr", "", "HTTP listen address (overrides config)")
	configPath := flag.String("config", "orionai.yaml", "Path to OrionAI config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	addr := cfg.Server.Addr
	if *addrFlag != "" {
		addr = *addrFlag
	}

	sinks, err := buildSinks(cfg.Alerts.Sinks)
	if err != nil {
		log.Fatalf("failed to build alert sinks: %v", err)
	}
	emitter := alert.NewEmitter(alert.EmitterConfig{
		QueueSize: cfg.Alerts.QueueSize,
		Workers:   cfg.Alerts.Workers,
	}, sinks)

	tel, err := telemetry.NewProvider(context.Background(), cfg.Telemetry)
	if err != nil {
		log.Fatalf("failed to init telemetry: %v", err)
	}

	engine := policy.New(
		policy.WithAlertEmitter(emitter),
		policy.WithTelemetry(tel),
	)
	if err := engine.Initialize(cfg); err != nil {
		log.Fatalf("failed to initialize validation engine: %v", err)
	}

	srv := server.New(cfg, engine, tel)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting OrionAI on %s...", addr)
		errCh <- srv.Start(addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("server error: %v", err)
	case sig := <-sigCh:
		log.Printf("received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	emitter.Close(shutdownCtx)
	alertMetrics := emitter.MetricsSnapshot()
	tel.RecordAlertsDropped(int(alertMetrics.Dropped()))
	tel.Shutdown(shutdownCtx)
}

func buildSinks(cfgs []config.SinkConfig) ([]alert.Sink, error) {
	var sinks []alert.Sink
	for _, sc := range cfgs {
		var s alert.Sink
		var err error
		switch sc.Type {
		case "file_jsonl":
			s, err = alert.NewFileSink(sc.Path)
			if err != nil {
				return nil, fmt.Errorf("file sink %q: %w", sc.Path, err)
			}
		case "webhook":
			timeout := time.Duration(sc.TimeoutMS) * time.Millisecond
			s, err = alert.NewWebhookSink(sc.URL, sc.Headers, timeout)
			if err != nil {
				return nil, fmt.Errorf("webhook sink %q: %w", sc.URL, err)
			}
		default:
			return nil, fmt.Errorf("unknown sink type %q", sc.Type)
		}
		kinds := make([]alert.Kind, 0, len(sc.Kinds))
		for _, k := range sc.Kinds {
			kinds = append(kinds, alert.Kind(k))
		}
		sinks = append(sinks, alert.RouteKinds(s, kinds...))
	}
	return sinks, nil
}
