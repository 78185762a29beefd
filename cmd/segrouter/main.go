// Package main is the entry point of the segrouter HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	router "github.com/pedia/segrouter"
	"github.com/pedia/segrouter/internal/config"
	"github.com/pedia/segrouter/internal/logging"
	"github.com/pedia/segrouter/server"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	if err := run(flags); err != nil {
		fmt.Fprintf(os.Stderr, "segrouter: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("SEGROUTER_CONFIG_PATH", ""),
		"Path to configuration file (built-in defaults when empty)")
	logLevel := flag.String("log-level", getEnvOrDefault("SEGROUTER_LOG_LEVEL", ""),
		"Log level (debug, info, warn, error), overrides the configuration")
	logFormat := flag.String("log-format", getEnvOrDefault("SEGROUTER_LOG_FORMAT", ""),
		"Log format (json, console), overrides the configuration")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("segrouter version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

func run(flags cliFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting segrouter",
		zap.String("version", version),
		zap.String("config", flags.configPath),
		zap.Int("routes", len(cfg.Routes)),
	)

	app, err := newApplication(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.Server.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Address, err)
	}

	var metricsLn net.Listener
	if app.metricsServer != nil {
		metricsLn, err = net.Listen("tcp", cfg.Metrics.Address)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("failed to listen on %s: %w", cfg.Metrics.Address, err)
		}
	}

	return app.serve(ctx, ln, metricsLn)
}

// loadConfig loads, overrides and validates the configuration.
func loadConfig(flags cliFlags) (*config.Config, error) {
	cfg := config.Default()
	if flags.configPath != "" {
		loaded, err := config.Load(flags.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded
	}

	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Logging.Format = flags.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// application holds all application components.
type application struct {
	cfg           *config.Config
	logger        *zap.Logger
	router        *router.Router
	server        *server.Server
	registry      *prometheus.Registry
	metricsServer *fasthttp.Server
}

// newApplication registers the configured routes and builds the servers.
func newApplication(cfg *config.Config, logger *zap.Logger) (*application, error) {
	r := router.New()
	if err := registerRoutes(r, cfg.Routes, logger); err != nil {
		return nil, err
	}

	app := &application{
		cfg:    cfg,
		logger: logger,
		router: r,
	}

	var opts []server.Option
	if cfg.Metrics.Enabled {
		app.registry = prometheus.NewRegistry()
		app.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts = append(opts, server.WithMetrics(server.NewMetrics("segrouter", app.registry)))

		app.metricsServer = &fasthttp.Server{
			Handler: server.MetricsHandler(cfg.Metrics.Path, app.registry),
			Name:    cfg.Server.Name,
		}
	}

	app.server = server.New(server.Config{
		Name:               cfg.Server.Name,
		Address:            cfg.Server.Address,
		Workers:            cfg.Server.Workers,
		ReadTimeout:        cfg.Server.ReadTimeout.Duration(),
		WriteTimeout:       cfg.Server.WriteTimeout.Duration(),
		MaxRequestBodySize: cfg.Server.MaxRequestBodySize,
	}, r, logger, opts...)

	return app, nil
}

// serve runs the server on ln, and the metrics server on metricsLn when
// metrics are enabled, until ctx is done. It then shuts everything down.
func (app *application) serve(ctx context.Context, ln, metricsLn net.Listener) error {
	errCh := make(chan error, 2)

	go func() {
		errCh <- app.server.Serve(ln)
	}()

	if app.metricsServer != nil && metricsLn != nil {
		go func() {
			app.logger.Info("metrics server listening",
				zap.String("address", metricsLn.Addr().String()),
				zap.String("path", app.cfg.Metrics.Path),
			)
			if err := app.metricsServer.Serve(metricsLn); err != nil {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		app.logger.Info("received shutdown signal")
	case serveErr = <-errCh:
		app.logger.Error("server stopped unexpectedly", zap.Error(serveErr))
	}

	return errors.Join(serveErr, app.shutdown(metricsLn))
}

// shutdown stops the servers within the configured shutdown timeout.
func (app *application) shutdown(metricsLn net.Listener) error {
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	var errs []error

	if app.metricsServer != nil {
		app.logger.Info("stopping metrics server")
		if err := app.metricsServer.Shutdown(); err != nil {
			app.logger.Error("failed to stop metrics server gracefully", zap.Error(err))
			errs = append(errs, err)
		}
		// Serve may not have registered the listener yet.
		if metricsLn != nil {
			_ = metricsLn.Close()
		}
	}

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("failed to stop server gracefully", zap.Error(err))
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
