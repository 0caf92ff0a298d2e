// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

// fleep-mcp serves the Fleep messaging API as MCP tools over stdio. An
// MCP host (an AI assistant or automation client) spawns it and speaks
// newline-delimited JSON-RPC on stdin and stdout; logs go to stderr.
//
// Credentials come from FLEEP_EMAIL and FLEEP_PASSWORD (or
// FLEEP_PASSWORD_FILE), from a .env file, or from a YAML or JSONC config
// file named by --config. The process logs in lazily on the first tool
// call and logs out when stdin closes or it receives SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/fleepmcp/fleep-mcp/dispatch"
	"github.com/fleepmcp/fleep-mcp/fleep"
	"github.com/fleepmcp/fleep-mcp/lib/config"
	"github.com/fleepmcp/fleep-mcp/lib/logging"
	"github.com/fleepmcp/fleep-mcp/lib/mcp"
	"github.com/fleepmcp/fleep-mcp/lib/metrics"
	"github.com/fleepmcp/fleep-mcp/lib/version"
)

const binaryName = "fleep-mcp"

// shutdownTimeout bounds logout and the metrics listener shutdown.
const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", binaryName, err)
		os.Exit(1)
	}
}

// options are the command-line flags. Flags that are not set leave the
// configured value alone.
type options struct {
	configPath     string
	envFile        string
	logLevel       string
	logFormat      string
	metricsAddress string
	showVersion    bool

	changed func(name string) bool
}

func parseFlags(args []string) (*options, error) {
	var opts options
	flagSet := pflag.NewFlagSet(binaryName, pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "YAML or JSONC config file (default: $"+config.ConfigPathVariable+")")
	flagSet.StringVar(&opts.envFile, "env-file", "", "dotenv file with FLEEP_* variables (default: .env if present)")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn, or error")
	flagSet.StringVar(&opts.logFormat, "log-format", "", "auto, text, or json")
	flagSet.StringVar(&opts.metricsAddress, "metrics-address", "", "serve Prometheus /metrics on this host:port")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if flagSet.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", flagSet.Args())
	}
	opts.changed = func(name string) bool { return flagSet.Changed(name) }
	return &opts, nil
}

// loadConfig reads configuration and applies flag overrides.
func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{ConfigPath: opts.configPath, EnvFile: opts.envFile})
	if err != nil {
		return nil, err
	}
	if opts.changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.changed("log-format") {
		cfg.Logging.Format = opts.logFormat
	}
	if opts.changed("metrics-address") {
		cfg.Metrics.Address = opts.metricsAddress
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.showVersion {
		version.Print(binaryName)
		return nil
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	instruments := metrics.New(registry)
	if cfg.Metrics.Address != "" {
		stopMetrics, err := serveMetrics(cfg.Metrics.Address, registry, logger)
		if err != nil {
			return err
		}
		defer stopMetrics()
	}

	client, err := fleep.NewClient(fleep.ClientConfig{
		BaseURL: cfg.Fleep.BaseURL,
		Timeout: time.Duration(cfg.Fleep.Timeout),
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	defer client.CloseIdleConnections()

	password, err := cfg.Fleep.PasswordBuffer()
	if err != nil {
		return err
	}
	session, err := fleep.NewSession(client, fleep.SessionConfig{
		Email:    cfg.Fleep.Email,
		Password: password,
		Observer: instruments,
		Logger:   logger,
	})
	if err != nil {
		password.Close()
		return err
	}
	defer closeSession(session, logger)

	tools, err := dispatch.New(session, logger)
	if err != nil {
		return err
	}

	server := mcp.NewServer(tools, mcp.ServerConfig{
		Name:         binaryName,
		Version:      version.Short(),
		Instructions: dispatch.Instructions,
		Logger:       logger,
		Metrics:      instruments,
	})

	logger.Info("fleep-mcp serving on stdio",
		"version", version.Info(),
		"base_url", cfg.Fleep.BaseURL,
		"tools", len(tools.Tools()),
	)
	err = server.Run(ctx, os.Stdin, os.Stdout)
	if errors.Is(err, context.Canceled) {
		logger.Info("shutting down on signal")
		return nil
	}
	return err
}

// closeSession logs out best-effort and releases the session's secrets.
func closeSession(session *fleep.Session, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := session.Logout(ctx); err != nil {
		logger.Warn("fleep logout failed", "error", err)
	}
	if err := session.Close(); err != nil {
		logger.Warn("releasing session secrets", "error", err)
	}
}

// serveMetrics listens on address and serves registry at /metrics. The
// returned function stops the listener.
func serveMetrics(address string, registry *prometheus.Registry, logger *slog.Logger) (func(), error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	httpServer := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "address", listener.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		httpServer.Shutdown(ctx)
	}, nil
}
