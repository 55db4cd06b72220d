package cli

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/advect/internal/cluster"
)

// WorkerOptions holds flags for the worker command.
type WorkerOptions struct {
	*RootOptions
	Rank        int
	Peers       []string
	Database    string
	MetricsAddr string
	RunID       string
}

// NewWorkerCommand creates the worker command.
func NewWorkerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WorkerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "worker <config>",
		Short: "Run one rank of a multi-process run",
		Long: `Run one rank of a multi-process advection over TCP.

Every worker loads the same configuration and lists the same peers, one
listen address per rank in rank order. The worker listens on its own
address and dials every other rank.

Example:
  advect worker ./line.yaml --rank 0 --peers 127.0.0.1:7000,127.0.0.1:7001
  advect worker ./line.yaml --rank 1 --peers 127.0.0.1:7000,127.0.0.1:7001 --metrics-addr :9101`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Rank, "rank", -1, "rank of this worker (required)")
	cmd.Flags().StringSliceVar(&opts.Peers, "peers", nil, "listen address of every rank, in rank order (required)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for this rank's results")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "run id shared by all workers (default: derived from the config)")
	_ = cmd.MarkFlagRequired("rank")
	_ = cmd.MarkFlagRequired("peers")

	return cmd
}

func runWorker(opts *WorkerOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, formatter.GetErrWriter()).With("rank", opts.Rank)

	cfg, err := loadConfig(formatter, path)
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(formatter, opts.Database, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, stop := signalContext(cmd.Context(), logger)
	defer stop()

	clusterOpts := []cluster.Option{cluster.WithLogger(logger)}
	if opts.RunID != "" {
		clusterOpts = append(clusterOpts, cluster.WithRunID(opts.RunID))
	}
	if opts.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		_, shutdown, err := serveMetrics(opts.MetricsAddr, reg, logger)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to serve metrics", err)
		}
		defer shutdown()
		clusterOpts = append(clusterOpts, cluster.WithRegisterer(reg))
	}

	logger.Info("connecting to peers", "peers", opts.Peers)
	w, err := cluster.DialWorker(ctx, cfg, opts.Rank, opts.Peers, clusterOpts...)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to start worker", err)
	}

	logger.Info("worker starting", "run_id", w.RunID())
	result, err := w.Run(ctx)
	if err != nil {
		return runFailure(formatter, err)
	}
	logger.Info("results ready", "terminated", result.Terminated())

	return finish(ctx, formatter, result, st, opts.Database)
}

// serveMetrics exposes reg on addr until the returned function is called.
// It returns the bound address.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (string, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	return ln.Addr().String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("metrics server shutdown", "error", err)
		}
	}, nil
}
