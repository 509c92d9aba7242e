// Package main is the entry point for the fetchguard binary: a CLI that
// performs a single guarded fetch against the allowed domain family.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fetchguard/fetchguard/pkg/config"
	"github.com/fetchguard/fetchguard/pkg/domain"
	"github.com/fetchguard/fetchguard/pkg/fetcher"
	"github.com/fetchguard/fetchguard/pkg/guard"
	"github.com/fetchguard/fetchguard/pkg/logging"
	"github.com/fetchguard/fetchguard/pkg/telemetry"
)

const (
	serviceName              = "fetchguard"
	telemetryShutdownTimeout = 5 * time.Second

	exitTransportFailure = 1
	exitSecurityBlock    = 2
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if domain.IsSecurityError(err) {
			os.Exit(exitSecurityBlock)
		}
		os.Exit(exitTransportFailure)
	}
}

// newRootCmd creates the root command for fetchguard.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fetchguard [flags] URL",
		Short: "Guarded outbound fetch with a validated curl fallback",
		Long: `Performs an HTTP request against the allowed domain family. The URL and
headers pass a validation gate before any I/O; if the native HTTP client
fails, a shell-quoted curl command is assembled, re-validated, and executed
as the fallback path.

Example:
  fetchguard -H "Authorization: Bearer $FIGMA_TOKEN" https://api.figma.com/v1/me`,
		Args:          cobra.ExactArgs(1),
		RunE:          runFetch,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.Flags().StringP("config", "c", "", "Path to configuration file (YAML)")
	rootCmd.Flags().StringP("log-level", "l", "", "Log level (debug, info, warn, error)")
	rootCmd.Flags().StringArrayP("header", "H", nil, "Request header in 'Key: Value' form (repeatable)")
	rootCmd.Flags().StringP("method", "X", "", "HTTP method (default GET)")
	rootCmd.Flags().StringP("data", "d", "", "Request body")
	rootCmd.Flags().String("metrics-listen", "", "Listen address for Prometheus metrics")
	rootCmd.Flags().String("otel-endpoint", "", "OTLP endpoint for trace export")

	return rootCmd
}

func runFetch(cmd *cobra.Command, args []string) error {
	// Load .env file if present
	_ = godotenv.Load()

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if v, _ := cmd.Flags().GetString("metrics-listen"); v != "" {
		cfg.Telemetry.MetricsAddress = v
	}
	if v, _ := cmd.Flags().GetString("otel-endpoint"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}

	logging.SetupLogger(logging.Config{Level: cfg.Logging.Level, Pretty: cfg.Logging.Pretty})
	logger := newComponentLogger(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryShutdown, err := telemetry.SetupProvider(ctx, telemetry.Config{
		ServiceName: serviceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("telemetry setup: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := telemetryShutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	metrics := telemetry.NewMetrics()
	if cfg.Telemetry.MetricsAddress != "" {
		startMetricsServer(cfg.Telemetry.MetricsAddress, metrics)
	}

	rawHeaders, _ := cmd.Flags().GetStringArray("header")
	headers, err := parseHeaders(rawHeaders)
	if err != nil {
		return err
	}
	method, _ := cmd.Flags().GetString("method")
	body, _ := cmd.Flags().GetString("data")

	g := guard.New(cfg.Security, logger)
	f := fetcher.New(
		g,
		fetcher.NewHTTPFetcher(cfg.HTTP.Timeout, cfg.HTTP.MaxBodyBytes),
		fetcher.NewLocalShellRunner(cfg.HTTP.Timeout, logger),
		cfg.Retry,
		logger,
		metrics,
	)

	resp, err := f.FetchWithRetry(ctx, args[0], &domain.RequestOptions{
		Method:  method,
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		return err
	}

	log.Info().Int("status", resp.StatusCode).Bool("fallback", resp.FromFallback).Msg("fetch complete")
	_, err = os.Stdout.Write(resp.Body)
	return err
}

// newComponentLogger builds the slog logger handed to the guard and fetcher.
func newComponentLogger(levelName string) *slog.Logger {
	var level slog.Level
	switch levelName {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// parseHeaders converts repeated "Key: Value" flags into a header map.
func parseHeaders(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		key, value, found := strings.Cut(h, ":")
		if !found {
			return nil, fmt.Errorf("invalid header %q: expected 'Key: Value'", h)
		}
		headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return headers, nil
}

func startMetricsServer(addr string, metrics *telemetry.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn().Err(err).Msg("metrics server stopped")
		}
	}()
}
