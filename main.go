package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/smazurov/pdfnode/cmd"
	"github.com/smazurov/pdfnode/internal/api"
	"github.com/smazurov/pdfnode/internal/config"
	"github.com/smazurov/pdfnode/internal/converter"
	"github.com/smazurov/pdfnode/internal/events"
	"github.com/smazurov/pdfnode/internal/logging"
	"github.com/smazurov/pdfnode/internal/metrics"
	"github.com/smazurov/pdfnode/internal/metrics/exporters"
	"github.com/smazurov/pdfnode/internal/process"
	"github.com/smazurov/pdfnode/internal/systemd"
	"github.com/smazurov/pdfnode/internal/version"
)

// probeTimeout bounds the converter version check at startup.
const probeTimeout = 5 * time.Second

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port               string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	ServerRateLimit    int    `help:"Max /api/generate requests per minute (0 disables)" default:"0" toml:"server.rate_limit" env:"SERVER_RATE_LIMIT"`
	ServerRateBurst    int    `help:"Requests allowed above the rate limit at once" default:"8" toml:"server.rate_burst" env:"SERVER_RATE_BURST"`
	ServerMaxBodyBytes int    `help:"Max HTML upload size in bytes (0 disables)" default:"52428800" toml:"server.max_body_bytes" env:"SERVER_MAX_BODY_BYTES"`

	// Pool settings
	PoolBinary            string `help:"wkhtmltopdf executable" default:"wkhtmltopdf" toml:"pool.binary" env:"POOL_BINARY"`
	PoolMaxIdle           int    `help:"Pre-warmed workers, clamped to 0-32 (-1 for one per CPU)" default:"-1" toml:"pool.max_idle" env:"POOL_MAX_IDLE"`
	PoolMonitorIntervalMs int    `help:"Pool monitor period in milliseconds, clamped to 100-60000" default:"5000" toml:"pool.monitor_interval_ms" env:"POOL_MONITOR_INTERVAL_MS"`

	// Converter settings
	ConverterTimeout string `help:"Per-conversion timeout (0 disables)" default:"2m" toml:"converter.timeout" env:"CONVERTER_TIMEOUT"`

	// Metrics settings
	MetricsPrometheusEnabled bool `help:"Expose Prometheus metrics on /metrics" default:"true" toml:"metrics.prometheus_enabled" env:"METRICS_PROMETHEUS_ENABLED"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel     string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat    string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingPool      string `help:"Pool logging level" default:"info" toml:"logging.pool" env:"LOGGING_POOL"`
	LoggingConverter string `help:"Converter logging level" default:"info" toml:"logging.converter" env:"LOGGING_CONVERTER"`
	LoggingAPI       string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP      string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
	LoggingConfig    string `help:"Config logging level" default:"info" toml:"logging.config" env:"LOGGING_CONFIG"`
}

// service owns everything the server command starts. start and stop may
// race when a signal arrives during startup.
type service struct {
	opts     *Options
	bus      *events.Bus
	notifier *systemd.Notifier
	logger   *slog.Logger

	mu         sync.Mutex
	stopped    bool
	pool       *process.Pool
	server     *api.Server
	watcher    *config.Watcher[config.PoolSettings]
	logWatcher *config.Watcher[logging.Config]
	cancel     context.CancelFunc
}

func (s *service) start() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}

	timeout, err := parseTimeout(s.opts.ConverterTimeout)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	converterVersion := s.probeConverter()

	onStateChange, publishStats := converter.PoolHooks(s.bus)
	s.pool = process.NewPool(&process.PoolOptions{
		Binary:          s.opts.PoolBinary,
		MaxIdle:         process.ResolveMaxIdle(s.opts.PoolMaxIdle),
		MonitorInterval: time.Duration(s.opts.PoolMonitorIntervalMs) * time.Millisecond,
		ConvertTimeout:  timeout,
		OnStateChange:   onStateChange,
		OnStats: func(stats process.Stats) {
			publishStats(stats)
			s.notifier.Status("%d idle, %d running workers", stats.Idle, stats.Running)
		},
		Logger: logging.GetLogger("pool"),
	})
	pool := s.pool
	metrics.RegisterPool(func() metrics.PoolSnapshot {
		stats := pool.Stats()
		return metrics.PoolSnapshot{Idle: stats.Idle, Running: stats.Running, MaxIdle: stats.MaxIdle}
	})

	s.watchConfig()

	apiOpts := &api.Options{
		AuthUsername: s.opts.AuthUsername,
		AuthPassword: s.opts.AuthPassword,
		Converter:    converter.NewService(pool, s.bus),
		Pool:         pool,
		EventBus:     s.bus,
		RateLimit:    float64(s.opts.ServerRateLimit) / 60,
		RateBurst:    s.opts.ServerRateBurst,
		MaxBodyBytes: int64(s.opts.ServerMaxBodyBytes),

		ConverterVersion: converterVersion,
		OnListening: func(addr net.Addr) {
			s.logger.Info("pdfnode ready", "addr", addr.String(), "version", version.String())
			s.notifier.Ready()
		},
	}
	if s.opts.MetricsPrometheusEnabled {
		apiOpts.PrometheusHandler = exporters.HTTPHandler()
	}
	s.server = api.NewServer(apiOpts)
	server := s.server

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.notifier.Watchdog(ctx, func() bool { return !pool.Stats().Closed })
	s.mu.Unlock()

	return server.Start(s.opts.Port)
}

// probeConverter logs the converter version. A missing or broken binary
// is only a warning: the pool keeps retrying and /api/health stays up.
func (s *service) probeConverter() string {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	v, err := process.ConverterVersion(ctx, s.opts.PoolBinary)
	if err != nil {
		s.logger.Warn("Converter not usable, conversions will fail until it is", "binary", s.opts.PoolBinary, "error", err)
		return ""
	}
	s.logger.Info("Found converter", "binary", s.opts.PoolBinary, "version", v)
	return v
}

// watchConfig applies pool limit and log level changes from the config
// file without a restart. Called with s.mu held.
func (s *service) watchConfig() {
	if _, err := os.Stat(s.opts.Config); err != nil {
		return
	}

	logger := logging.GetLogger("config")

	s.watcher = config.NewConfigWatcher(s.opts.Config, config.LoadPoolSettings, logger)
	pool := s.pool
	s.watcher.OnReload(func(settings config.PoolSettings) {
		maxIdle := process.ResolveMaxIdle(settings.MaxIdle)
		logger.Info("Applying pool settings", "max_idle", maxIdle, "monitor_interval", settings.MonitorInterval)
		pool.SetLimits(maxIdle, settings.MonitorInterval)
	})
	if err := s.watcher.Start(); err != nil {
		logger.Warn("Failed to start config watcher, hot-reload disabled", "error", err)
		s.watcher = nil
		return
	}

	s.logWatcher = config.NewConfigWatcher(s.opts.Config, func(path string) (logging.Config, error) {
		return config.LoadLoggingConfig(path), nil
	}, logger)
	s.logWatcher.OnReload(func(cfg logging.Config) {
		logger.Info("Applying log levels", "level", cfg.Level, "modules", cfg.Modules)
		logging.SetLevels(cfg)
	})
	if err := s.logWatcher.Start(); err != nil {
		logger.Warn("Failed to start log level watcher", "error", err)
		s.logWatcher = nil
	}
}

// stop tears down in dependency order: no new requests, then no workers.
func (s *service) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true

	s.logger.Info("Shutting down server")
	s.notifier.Stopping()
	if s.cancel != nil {
		s.cancel()
	}

	if s.server != nil {
		if stopErr := s.server.Stop(); stopErr != nil {
			s.logger.Error("Error stopping HTTP server", "error", stopErr)
		}
	}

	if s.pool != nil {
		s.logger.Info("Stopping converter pool")
		s.pool.Shutdown()
	}

	if s.watcher != nil {
		if stopErr := s.watcher.Stop(); stopErr != nil {
			s.logger.Warn("Error stopping config watcher", "error", stopErr)
		}
	}
	if s.logWatcher != nil {
		if stopErr := s.logWatcher.Stop(); stopErr != nil {
			s.logger.Warn("Error stopping log level watcher", "error", stopErr)
		}
	}
}

func parseTimeout(raw string) (time.Duration, error) {
	if raw == "" || raw == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid converter timeout %q: %w", raw, err)
	}
	return d, nil
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system
		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"pool":      opts.LoggingPool,
				"converter": opts.LoggingConverter,
				"api":       opts.LoggingAPI,
				"http":      opts.LoggingHTTP,
				"config":    opts.LoggingConfig,
			},
		})

		logger := logging.GetLogger("main")

		// Respect container CPU quotas before sizing the pool
		_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...))
		}))

		// Create event bus for in-process event handling
		eventBus := events.New()

		// Mirror log entries to /api/logs/stream subscribers
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{
				Seq:        entry.Seq,
				Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		svc := &service{
			opts:     opts,
			bus:      eventBus,
			notifier: systemd.NewNotifier(logging.GetLogger("systemd")),
			logger:   logger,
		}

		hooks.OnStart(func() {
			if startErr := svc.start(); startErr != nil {
				logger.Error("Failed to start server", "error", startErr)
				svc.stop()
				os.Exit(1)
			}
		})

		hooks.OnStop(svc.stop)
	})

	cli.Root().Use = "pdfnode"
	cli.Root().Version = version.String()

	// Add convert command
	cli.Root().AddCommand(cmd.CreateConvertCmd())

	// Run the CLI
	cli.Run()
}
