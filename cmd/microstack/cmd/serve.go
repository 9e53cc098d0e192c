package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/oriys/microstack/internal/config"
	"github.com/oriys/microstack/internal/logs"
	"github.com/oriys/microstack/internal/metrics"
	"github.com/oriys/microstack/internal/objects"
	"github.com/oriys/microstack/internal/registry"
	"github.com/oriys/microstack/internal/runtime"
	"github.com/oriys/microstack/internal/server"
	"github.com/oriys/microstack/internal/stacks"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the microstack HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.RunE = runServe
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logrus.New()
	switch cfg.Logging.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	ledger := logs.New(logs.Config{Metrics: m})
	store := objects.New(objects.Config{Metrics: m})
	functionRegistry := registry.New()

	rt, err := runtime.New(runtime.Config{
		ScratchDir: cfg.DataDir + "/runtime",
		Registry:   functionRegistry,
		Sink: func(group, stream, message string, ts time.Time) {
			_ = ledger.AppendEvent(group, stream, message, ts)
		},
		Metrics: m,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("init runtime: %w", err)
	}

	orchestrator := stacks.New(stacks.Config{
		Functions: functionRegistry,
		LogGroups: ledger,
		Buckets:   store,
		Metrics:   m,
		Logger:    logger,
	})

	srv := server.New(cfg.Server.Addr(), server.Config{
		Registry:     functionRegistry,
		Runtime:      rt,
		Ledger:       ledger,
		Store:        store,
		Orchestrator: orchestrator,
		Metrics:      m,
		Logger:       logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go logMetricsSummary(ctx, logger, m)

	if err := srv.ListenAndServe(ctx); err != nil {
		logger.WithError(err).Error("server stopped with error")
		return err
	}
	return nil
}

// logMetricsSummary periodically writes a debug-level snapshot of the
// internal counters, since none of this is served over HTTP in
// Prometheus exposition format.
func logMetricsSummary(ctx context.Context, logger *logrus.Logger, m *metrics.Metrics) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := m.Snapshot()
			logger.WithFields(logrus.Fields{
				"invocations":       s.Invocations,
				"invocation_errors": s.InvocationErrors,
				"stack_transitions": s.StackTransitions,
				"ledger_appends":    s.LedgerAppends,
				"object_ops":        s.ObjectOps,
			}).Debug("metrics summary")
		}
	}
}
