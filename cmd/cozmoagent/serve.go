package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nadzzz/cozmoagent/internal/config"
	"github.com/nadzzz/cozmoagent/internal/dispatch"
	"github.com/nadzzz/cozmoagent/internal/health"
	"github.com/nadzzz/cozmoagent/internal/journal"
	"github.com/nadzzz/cozmoagent/internal/transport"
	grpctransport "github.com/nadzzz/cozmoagent/internal/transport/grpc"
	httptransport "github.com/nadzzz/cozmoagent/internal/transport/http"
	mqtttransport "github.com/nadzzz/cozmoagent/internal/transport/mqtt"
)

func newServeCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the interpretation daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			slog.Info("cozmoagent starting", "version", version)

			// Create root context with signal handling for graceful shutdown.
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	p, err := newPlanner(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	st, err := newStage(cfg, p)
	if err != nil {
		return err
	}
	defer st.Reset()

	var jr *journal.Journal
	var recorder dispatch.Recorder
	if cfg.Journal.Enabled {
		jr, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer jr.Close()
		recorder = jr
		slog.Info("command journal enabled", "path", cfg.Journal.Path)
	}

	// Build every transport that listens or that a target routes through.
	targets := cfg.TargetList()
	needs := map[string]bool{}
	for _, t := range targets {
		needs[t.Protocol] = true
	}

	var all, listening []transport.Transport
	if cfg.Transports.HTTP.Enabled || needs["http"] {
		var lister httptransport.CommandLister
		if jr != nil {
			lister = jr
		}
		t := httptransport.New(cfg.Transports.HTTP.Port, lister)
		all = append(all, t)
		if cfg.Transports.HTTP.Enabled {
			listening = append(listening, t)
		}
	}
	if cfg.Transports.GRPC.Enabled || needs["grpc"] {
		t := grpctransport.New(cfg.Transports.GRPC.Port)
		all = append(all, t)
		if cfg.Transports.GRPC.Enabled {
			listening = append(listening, t)
		}
	}
	if cfg.Transports.MQTT.Enabled || needs["mqtt"] {
		t := mqtttransport.New(cfg.Transports.MQTT.Broker, cfg.Transports.MQTT.Topic, cfg.Transports.MQTT.ClientID)
		all = append(all, t)
		if cfg.Transports.MQTT.Enabled {
			listening = append(listening, t)
		}
	}

	if len(listening) == 0 {
		return errors.New("no transports enabled: enable at least one in config")
	}

	dispatcher := dispatch.New(st, all, targets, recorder)

	healthServer := health.New(cfg.Server.HealthPort, func() any { return st.Stats() })

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return healthServer.ListenAndServe(gctx)
	})
	for _, t := range listening {
		g.Go(func() error {
			slog.Info("starting transport", "name", t.Name())
			if err := t.Listen(gctx, dispatcher.Handle); err != nil {
				slog.Error("transport failed", "name", t.Name(), "error", err)
				return err
			}
			return nil
		})
	}

	// Mark as ready once all transports are started.
	healthServer.SetReady(true)
	slog.Info("cozmoagent ready",
		"transports", len(listening),
		"targets", len(targets),
		"overlap", cfg.Stage.Overlap,
		"health_port", cfg.Server.HealthPort)

	<-gctx.Done()
	healthServer.SetReady(false)
	slog.Info("shutting down, draining...")

	for _, t := range all {
		if err := t.Close(); err != nil {
			slog.Error("transport close error", "name", t.Name(), "error", err)
		}
	}

	err = g.Wait()
	slog.Info("cozmoagent stopped")
	return err
}
