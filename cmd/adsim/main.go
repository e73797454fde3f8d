// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command adsim replays an ad scenario against the schedule controller with
// an in-memory host player and logs every scheduling decision.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/adscheduler/internal/config"
	"github.com/ManuGH/adscheduler/internal/domain/ads/handler"
	"github.com/ManuGH/adscheduler/internal/domain/ads/model"
	"github.com/ManuGH/adscheduler/internal/domain/ads/scenario"
	"github.com/ManuGH/adscheduler/internal/domain/ads/schedule"
	xglog "github.com/ManuGH/adscheduler/internal/log"
	"github.com/ManuGH/adscheduler/internal/telemetry"
	"github.com/ManuGH/adscheduler/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "adsim: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("adsim", flag.ContinueOnError)
	fs.SetOutput(stdout)
	showVersion := fs.Bool("version", false, "print version and exit")
	configPath := fs.String("config", "", "path to config file (YAML)")
	scenarioPath := fs.String("scenario", "", "path to scenario file (YAML)")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
	hold := fs.Bool("hold", false, "keep running after the scenario finished until interrupted")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Fprintln(stdout, version.String())
		return nil
	}
	if strings.TrimSpace(*scenarioPath) == "" {
		return errors.New("-scenario is required")
	}

	loader := config.NewLoader(strings.TrimSpace(*configPath))
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	xglog.Reconfigure(xglog.Config{
		Level:   cfg.Log.Level,
		Output:  stdout,
		Service: "adsim",
		Version: version.Version,
	})
	logger := xglog.WithComponent("adsim")

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "adsim",
		ServiceVersion: version.Version,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	doc, err := scenario.Load(*scenarioPath)
	if err != nil {
		return err
	}
	ads, err := doc.Advertisements()
	if err != nil {
		return err
	}

	h := handler.New(handler.Config{
		Companions:   scenario.LogCompanions{Doc: doc, Logger: logger},
		Icons:        scenario.LogIcons{Logger: logger},
		StartTimeout: cfg.StartTimeout,
	})
	h.Register(scenario.SourceType, scenario.Factory())
	defer h.Reset()

	host := doc.NewHost()
	c, err := schedule.New(schedule.Config{Host: host, Handler: h, Options: cfg.Options()})
	if err != nil {
		return err
	}
	if err := c.Update(ads); err != nil {
		return err
	}
	if err := c.Initialize(); err != nil {
		return err
	}
	defer func() { _ = c.Close() }()
	c.Subscribe(logHooks(logger))

	holder := config.NewHolder(cfg, loader)
	holder.OnReload(func(s config.Settings) {
		if err := c.SetOptions(s.Options()); err != nil {
			logger.Warn().Err(err).Msg("reloaded schedule options rejected")
		}
	})
	if err := holder.StartWatcher(ctx); err != nil {
		return err
	}
	defer holder.Stop()

	g, gctx := errgroup.WithContext(ctx)
	if *metricsAddr != "" {
		srv := &http.Server{
			Addr:              *metricsAddr,
			Handler:           otelhttp.NewHandler(promhttp.Handler(), "metrics"),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info().Str("addr", *metricsAddr).Msg("serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		r := &scenario.Runner{Controller: c, Host: host, Logger: logger}
		if err := r.Run(gctx, doc.Steps); err != nil {
			return err
		}
		logger.Info().
			Str(xglog.FieldEvent, "sim.finished").
			Strs("handled", c.HandledIDs()).
			Msg("scenario finished")
		if *hold {
			<-gctx.Done()
		}
		return errScenarioDone
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errScenarioDone) && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// errScenarioDone ends the group so the metrics server shuts down.
var errScenarioDone = errors.New("scenario done")

func logHooks(logger zerolog.Logger) schedule.Hooks {
	return schedule.Hooks{
		OnAdStarting: func(ad *model.Advertisement) {
			logger.Info().
				Str(xglog.FieldEvent, "sim.ad_starting").
				Str(xglog.FieldAdID, ad.ID).
				Str(xglog.FieldAdKind, string(ad.Kind)).
				Msg("ad starting")
		},
		OnAdProgress: func(ad *model.Advertisement, p model.AdProgress) {
			logger.Debug().
				Str(xglog.FieldEvent, "sim.ad_progress").
				Str(xglog.FieldAdID, ad.ID).
				Str("progress", string(p)).
				Msg("ad progress")
		},
		OnAdCompleted: func(ev schedule.AdCompleted) {
			e := logger.Info()
			if ev.Err != nil {
				e = logger.Warn().Err(ev.Err)
			}
			e.Str(xglog.FieldEvent, "sim.ad_completed").
				Str(xglog.FieldAdID, ev.Ad.ID).
				Bool("canceled", ev.Canceled).
				Dur("elapsed", ev.Elapsed).
				Msg("ad completed")
		},
	}
}
