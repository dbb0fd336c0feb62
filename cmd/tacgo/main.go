// Tacgo daemon -- TACACS+ (RFC 8907) client-side health prober and metrics
// exporter.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/tacplus-go/tacgo/internal/config"
	tacmetrics "github.com/tacplus-go/tacgo/internal/metrics"
	"github.com/tacplus-go/tacgo/internal/tacacs"
	appversion "github.com/tacplus-go/tacgo/internal/version"
)

// shutdownTimeout is the maximum time to wait for the metrics HTTP server to
// drain active connections during graceful shutdown.
const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// 1. Parse flags.
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	flag.Parse()

	// 2. Load config.
	cfg, err := loadConfig(*configPath)
	if err != nil {
		// Logger is not set up yet; use a temporary stderr logger.
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()),
		)
		return 1
	}

	// 3. Set up logger with dynamic level support for SIGHUP reload.
	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLoggerWithLevel(cfg.Log, logLevel)

	build := appversion.Get("tacgo")
	logger.Info("tacgo starting",
		slog.String("version", build.Version),
		slog.String("commit", build.GitCommit),
		slog.String("server_addr", cfg.Server.Addr),
		slog.String("metrics_addr", cfg.Metrics.Addr),
		slog.Bool("probe_enabled", cfg.Probe.Enabled),
	)

	// 4. Create Prometheus metrics collector.
	reg := prometheus.NewRegistry()
	collector := tacmetrics.NewCollector(reg)

	// 5. Run the metrics server and probe loop.
	if err := runDaemon(cfg, reg, collector, logger, *configPath, logLevel); err != nil {
		logger.Error("tacgo exited with error",
			slog.String("error", err.Error()),
		)
		return 1
	}

	logger.Info("tacgo stopped")
	return 0
}

// runDaemon sets up and runs the metrics HTTP server and the probe loop
// using an errgroup with signal-aware context for graceful shutdown.
func runDaemon(
	cfg *config.Config,
	reg *prometheus.Registry,
	collector *tacmetrics.Collector,
	logger *slog.Logger,
	configPath string,
	logLevel *slog.LevelVar,
) error {
	metricsSrv := newMetricsServer(cfg.Metrics, reg)

	// errgroup with signal-aware context.
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	lc := net.ListenConfig{}
	g.Go(func() error {
		logger.Info("metrics server listening",
			slog.String("addr", cfg.Metrics.Addr),
			slog.String("path", cfg.Metrics.Path),
		)
		return listenAndServe(gCtx, &lc, metricsSrv, cfg.Metrics.Addr)
	})

	if cfg.Probe.Enabled {
		g.Go(func() error {
			return runProbeLoop(gCtx, cfg, collector, logger)
		})
	}

	startSIGHUPReload(gCtx, g, configPath, logLevel, logger)

	// Shutdown goroutine: waits for context cancellation.
	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(gCtx, logger, metricsSrv)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run daemon: %w", err)
	}
	return nil
}

// startSIGHUPReload registers the SIGHUP goroutine that reloads the
// configuration file and applies the new log level via the shared LevelVar.
func startSIGHUPReload(
	ctx context.Context,
	g *errgroup.Group,
	configPath string,
	logLevel *slog.LevelVar,
	logger *slog.Logger,
) {
	sigHUP := make(chan os.Signal, 1)
	signal.Notify(sigHUP, syscall.SIGHUP)

	g.Go(func() error {
		defer signal.Stop(sigHUP)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-sigHUP:
				logger.Info("received SIGHUP, reloading configuration")
				reloadLogLevel(configPath, logLevel, logger)
			}
		}
	})
}

// reloadLogLevel loads a fresh configuration from the given path and updates
// the dynamic log level. Errors during reload are logged but do not stop the
// daemon -- the previous configuration remains in effect.
func reloadLogLevel(configPath string, logLevel *slog.LevelVar, logger *slog.Logger) {
	newCfg, err := loadConfig(configPath)
	if err != nil {
		logger.Error("failed to reload configuration, keeping current settings",
			slog.String("error", err.Error()),
		)
		return
	}

	oldLevel := logLevel.Level()
	newLevel := config.ParseLogLevel(newCfg.Log.Level)
	logLevel.Set(newLevel)

	logger.Info("configuration reloaded",
		slog.String("old_log_level", oldLevel.String()),
		slog.String("new_log_level", newLevel.String()),
	)
}

// -------------------------------------------------------------------------
// Probe Loop -- periodic accounting WATCHDOG against the configured server
// -------------------------------------------------------------------------

// runProbeLoop sends an accounting WATCHDOG record to the configured server
// on every tick and records the result through the metrics collector wired
// into each probe Connection.
func runProbeLoop(
	ctx context.Context,
	cfg *config.Config,
	collector *tacmetrics.Collector,
	logger *slog.Logger,
) error {
	interval, err := time.ParseDuration(cfg.Probe.Interval)
	if err != nil {
		return fmt.Errorf("parse probe interval: %w", err)
	}

	logger.Info("probe loop started",
		slog.Duration("interval", interval),
		slog.String("user", cfg.Probe.User),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			probeOnce(ctx, cfg, collector, logger)
		}
	}
}

// probeOnce dials the server, runs one accounting WATCHDOG exchange on a
// fresh connection, and closes it. Failures are logged; the loop continues
// on the next tick.
func probeOnce(
	ctx context.Context,
	cfg *config.Config,
	collector *tacmetrics.Collector,
	logger *slog.Logger,
) {
	dialTimeout, err := time.ParseDuration(cfg.Server.DialTimeout)
	if err != nil {
		dialTimeout = 10 * time.Second
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	var d net.Dialer
	stream, err := d.DialContext(dialCtx, "tcp", cfg.Server.Addr)
	if err != nil {
		logger.Warn("probe dial failed",
			slog.String("addr", cfg.Server.Addr),
			slog.String("error", err.Error()),
		)
		return
	}

	conn, err := tacacs.Dial(ctx, stream,
		tacacs.WithSecret([]byte(cfg.TACACS.Secret)),
		tacacs.WithAllowClearTextReplies(cfg.TACACS.AllowClearTextReplies),
		tacacs.WithPreferSingleConnection(cfg.TACACS.PreferSingleConnection),
		tacacs.WithLogger(logger),
		tacacs.WithMetrics(collector),
	)
	if err != nil {
		_ = stream.Close()
		logger.Warn("probe connection setup failed", slog.String("error", err.Error()))
		return
	}
	defer func() { _ = conn.Close() }()

	sess, err := conn.OpenSession(tacacs.PacketAccounting)
	if err != nil {
		logger.Warn("probe open session failed", slog.String("error", err.Error()))
		return
	}

	outcome, err := sess.Account(ctx, tacacs.AcctRequest{
		Flags:        tacacs.AcctFlagWatchdog,
		AuthenMethod: tacacs.AuthenMethodTACACSPlus,
		PrivLvl:      cfg.TACACS.DefaultPrivLvl,
		AuthenType:   tacacs.AuthenTypeASCII,
		Service:      tacacs.ServiceLogin,
		User:         []byte(cfg.Probe.User),
		Port:         []byte(cfg.Probe.Port),
		RemAddr:      []byte(cfg.Probe.RemAddr),
		Args: tacacs.Args{
			{Name: "service", Value: "tacgo-probe"},
		},
	})
	if err != nil {
		logger.Warn("probe accounting exchange failed", slog.String("error", err.Error()))
		return
	}

	logger.Debug("probe completed",
		slog.String("status", outcome.Status.String()),
		slog.String("server_msg", string(outcome.ServerMsg)),
	)
}

// -------------------------------------------------------------------------
// Graceful Shutdown
// -------------------------------------------------------------------------

// gracefulShutdown stops the metrics HTTP server within shutdownTimeout.
//
// The parent context is already cancelled when this function is called.
// context.WithoutCancel detaches from the parent's cancellation so we can
// enforce our own drain timeout.
func gracefulShutdown(ctx context.Context, logger *slog.Logger, servers ...*http.Server) error {
	logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown server: %w", err))
		}
	}
	return shutdownErr
}

// -------------------------------------------------------------------------
// Server Setup
// -------------------------------------------------------------------------

// listenAndServe creates a TCP listener using the ListenConfig (for noctx
// compliance) and serves HTTP requests until the server is shut down.
func listenAndServe(ctx context.Context, lc *net.ListenConfig, srv *http.Server, addr string) error {
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

// newMetricsServer creates an HTTP server for the Prometheus metrics endpoint.
func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// loadConfig loads configuration from a file path or returns defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}

// newLoggerWithLevel creates a structured logger using a shared LevelVar
// for dynamic log level changes via SIGHUP reload.
func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
