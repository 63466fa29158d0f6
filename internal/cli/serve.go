package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/siherrmann/factual/observability"
	"github.com/siherrmann/factual/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the verifier over HTTP",
	Long: `Serve loads the corpus once and answers claims over HTTP:

  POST /predict  {"text": "..."}  verification result
  GET  /         service status
  GET  /metrics  Prometheus metrics

Example:
  factual serve --addr 0.0.0.0:5000 --corpus facts.json`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "0.0.0.0:5000", "listen address")
	serveCmd.Flags().Duration("timeout", 0, "verification timeout per request (default 60s)")
}

func runServe(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	logger := settings.logger(cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	verifier, err := settings.buildVerifier(ctx, logger, metrics)
	if err != nil {
		return err
	}
	defer verifier.Close()

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithMetrics(metrics, reg),
	}
	if settings.Server.Timeout > 0 {
		opts = append(opts, server.WithTimeout(settings.Server.Timeout))
	}

	return server.NewServer(verifier, opts...).Run(ctx, settings.Server.Addr)
}
