package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"whaleflow-lab/internal/api"
	"whaleflow-lab/internal/composite"
	"whaleflow-lab/internal/observability"
)

// serveCmd runs the HTTP API and the composite scoring job together
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and run the composite scoring job",
	Long: `Serve POST /api/backtest, the composite signal endpoints and the
/ws/signals stream, and score the configured tokens on a fixed cadence.`,
	RunE: runServe,
}

var serveNoJob bool

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.String("addr", ":8080", "HTTP listen address")
	flags.String("metrics-addr", ":9090", "Separate Prometheus listen address (empty serves /metrics on --addr only)")
	flags.Duration("interval", composite.DefaultInterval, "Composite scoring interval")
	flags.BoolVar(&serveNoJob, "no-job", false, "Serve the API without the scoring job")

	mustBind(flags, map[string]string{
		"server.addr":        "addr",
		"metrics.addr":       "metrics-addr",
		"composite.interval": "interval",
	})
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, appConfig, rootLogger)
	if err != nil {
		return err
	}
	defer a.Close()

	runner, err := a.runner(appConfig.Price.Source, false)
	if err != nil {
		return err
	}

	hub := api.NewHub(rootLogger)
	server := api.NewServer(api.Options{
		Addr:     appConfig.Server.Addr,
		Runner:   runner,
		Signals:  a.signals,
		Hub:      hub,
		Defaults: a.defaults(),
		Logger:   rootLogger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(gctx)
	})

	if !serveNoJob {
		job := composite.NewJob(composite.JobOptions{
			Scorer:      a.scorer(),
			Store:       a.signals,
			Broadcaster: hub,
			Tokens:      appConfig.Composite.Tokens,
			Interval:    appConfig.Composite.Interval,
			Logger:      rootLogger,
		})
		g.Go(func() error {
			return job.Run(gctx)
		})
	}

	if addr := appConfig.Metrics.Addr; addr != "" && addr != appConfig.Server.Addr {
		g.Go(func() error {
			return serveMetrics(gctx, addr)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		rootLogger.Info("shutdown complete")
		return nil
	}
	return err
}

// serveMetrics exposes /metrics on its own listener until ctx is done.
func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	rootLogger.Info("metrics server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}
