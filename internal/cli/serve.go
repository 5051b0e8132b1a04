package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/rescale/bucketdesk/internal/constants"
	"github.com/rescale/bucketdesk/internal/events"
	"github.com/rescale/bucketdesk/internal/ipc"
	"github.com/rescale/bucketdesk/internal/logging"
	"github.com/rescale/bucketdesk/internal/metrics"
	"github.com/rescale/bucketdesk/internal/version"
)

// newServeCmd creates the 'serve' command.
func newServeCmd() *cobra.Command {
	var metricsAddr string
	var trace bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the long-lived process that answers requests",
		Long: `Run the long-lived process. It loads the storage profiles, registers a
handler for every request channel and listens on a local socket for
other bucketdesk commands.

Examples:
  # Serve on the default socket
  bucketdesk serve

  # Serve with Prometheus metrics
  bucketdesk serve --metrics-addr 127.0.0.1:9464

  # Log every request and response channel at debug level
  bucketdesk serve --trace -v`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(GetContext(), metricsAddr, trace)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address for the /metrics endpoint (overrides config, empty = disabled)")
	cmd.Flags().BoolVar(&trace, "trace", false, "Log every message on the bus (needs --verbose)")
	return cmd
}

func runServe(ctx context.Context, metricsAddr string, trace bool) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	log := logging.NewLogger(logging.ModeDaemon)

	b, err := startBackend(ctx, cfg, path, log)
	if err != nil {
		return err
	}
	defer func() {
		reportBus(b.bus, log)
		b.Close()
	}()

	if trace {
		all := b.bus.SubscribeAll()
		go traceBus(all, log)
		defer b.bus.UnsubscribeAll(all)
	}
	go watchBus(ctx, b.bus, constants.EventBusReportInterval, log)

	sock := effectiveSocket(cfg)
	if err := os.MkdirAll(filepath.Dir(sock), 0700); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}
	server := ipc.NewServer(b.bus, sock, effectiveTimeout(cfg), log)
	if err := server.Start(); err != nil {
		return err
	}
	defer server.Stop()

	if metricsAddr == "" {
		metricsAddr = cfg.MetricsAddr
	}
	var metricsServer *http.Server
	if metricsAddr != "" {
		metricsServer = startMetricsServer(metricsAddr, log)
	}

	log.Info().
		Str("version", version.String()).
		Str("config", path).
		Int("apps", len(cfg.Profiles)).
		Strs("channels", b.registry.Channels()).
		Msg("bucketdesk serving")

	<-ctx.Done()

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Metrics server shutdown failed")
		}
	}
	return nil
}

func startMetricsServer(addr string, log *logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", addr).Msg("Metrics endpoint listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("Metrics server failed")
		}
	}()
	return srv
}

// watchBus reports the bus state every interval until ctx ends.
func watchBus(ctx context.Context, bus *events.EventBus, interval time.Duration, log *logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reportBus(bus, log)
		}
	}
}

// reportBus publishes the bus channel count and the messages dropped since
// the last report to metrics, and warns when anything was dropped. It
// returns the dropped count.
func reportBus(bus *events.EventBus, log *logging.Logger) int64 {
	channels := bus.ChannelCount()
	dropped := bus.ResetDroppedEventCount()
	metrics.RecordBusState(channels, dropped)
	if dropped > 0 {
		log.Warn().Int64("dropped", dropped).Int("channels", channels).Msg("Messages were dropped on full subscriber buffers")
	}
	return dropped
}

// traceBus logs every message on the bus until the subscription closes.
func traceBus(all <-chan events.Message, log *logging.Logger) {
	for msg := range all {
		log.Debug().Str("channel", msg.Channel).Time("at", msg.Time).Msg("bus message")
	}
}
