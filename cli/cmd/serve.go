package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/reel/adapter"
	"github.com/pithecene-io/reel/adapter/redis"
	"github.com/pithecene-io/reel/adapter/webhook"
	"github.com/pithecene-io/reel/cli/config"
	"github.com/pithecene-io/reel/ledger"
	"github.com/pithecene-io/reel/log"
	"github.com/pithecene-io/reel/metrics"
	"github.com/pithecene-io/reel/server"
	"github.com/pithecene-io/reel/session"
	"github.com/pithecene-io/reel/storage"
	"github.com/pithecene-io/reel/transform"
)

// Directory defaults, relative to the working directory.
const (
	defaultUploadDir = "uploads"
	defaultOutputDir = "output"
)

// ServeCommand returns the serve command.
// This is the only command that accepts work.
func ServeCommand() *cli.Command {
	flags := []cli.Flag{
		ConfigFlag,
		// Listener flags
		&cli.StringFlag{
			Name:    "addr",
			Usage:   "TCP bind address (default " + server.DefaultAddress + ")",
			EnvVars: []string{"REEL_ADDR"},
		},
		&cli.Int64Flag{
			Name:  "max-sessions",
			Usage: "Maximum concurrent sessions (0 = unbounded)",
		},
		&cli.DurationFlag{
			Name:  "shutdown-grace",
			Usage: "How long in-flight sessions may run after a shutdown signal",
		},
		// Session flags
		&cli.StringFlag{
			Name:  "upload-dir",
			Usage: "Directory uploads are stored in (default " + defaultUploadDir + ")",
		},
		&cli.StringFlag{
			Name:  "output-dir",
			Usage: "Directory transform outputs are written to (default " + defaultOutputDir + ")",
		},
		&cli.Int64Flag{
			Name:  "capacity",
			Usage: "Upload area ceiling in bytes (default 4 TiB)",
		},
		&cli.IntFlag{
			Name:  "chunk-size",
			Usage: "Streaming buffer size in bytes",
		},
		&cli.DurationFlag{
			Name:  "read-timeout",
			Usage: "Per-read peer silence limit (0 = none)",
		},
		&cli.DurationFlag{
			Name:  "write-timeout",
			Usage: "Per-write peer silence limit (0 = none)",
		},
		&cli.DurationFlag{
			Name:  "linger-timeout",
			Usage: "Drain window for unread request bytes after an early error",
		},
		// Transform flags
		&cli.StringFlag{
			Name:  "ffmpeg",
			Usage: "Path to the ffmpeg binary",
		},
		&cli.Int64Flag{
			Name:  "max-transforms",
			Usage: "Maximum concurrent transforms (0 = unbounded)",
		},
		// Logging flags
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "Log format: json or console",
		},
		// Adapter flags
		&cli.StringFlag{
			Name:  "adapter",
			Usage: "Completion notifications: webhook or redis",
		},
		&cli.StringFlag{
			Name:  "adapter-url",
			Usage: "Webhook endpoint or redis:// URL",
		},
		&cli.StringFlag{
			Name:  "adapter-channel",
			Usage: "Redis channel (default " + redis.DefaultChannel + ")",
		},
		&cli.DurationFlag{
			Name:  "adapter-timeout",
			Usage: "Per-publish timeout",
		},
		&cli.IntFlag{
			Name:  "adapter-retries",
			Usage: "Publish retry attempts",
		},
	}

	return &cli.Command{
		Name:   "serve",
		Usage:  "Accept transform jobs over TCP until interrupted",
		Flags:  append(flags, LedgerFlags()...),
		Action: serveAction,
	}
}

// serveConfig loads the config file, overlays explicitly set flags and
// fills defaults.
func serveConfig(c *cli.Context) (*config.Config, error) {
	cfg := &config.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	srv := &cfg.Server
	overrideString(c, "addr", &srv.Address)
	overrideInt64(c, "max-sessions", &srv.MaxSessions)
	overrideDuration(c, "shutdown-grace", &srv.ShutdownGrace)
	overrideString(c, "upload-dir", &srv.UploadDir)
	overrideString(c, "output-dir", &srv.OutputDir)
	overrideInt64(c, "capacity", &srv.CapacityBytes)
	if c.IsSet("chunk-size") {
		srv.ChunkSize = c.Int("chunk-size")
	}
	overrideDuration(c, "read-timeout", &srv.ReadTimeout)
	overrideDuration(c, "write-timeout", &srv.WriteTimeout)
	overrideDuration(c, "linger-timeout", &srv.LingerTimeout)
	overrideString(c, "ffmpeg", &cfg.Transform.FFmpegPath)
	overrideInt64(c, "max-transforms", &srv.MaxTransforms)
	overrideString(c, "log-level", &cfg.Log.Level)
	overrideString(c, "log-format", &cfg.Log.Format)

	overrideString(c, "adapter", &cfg.Adapter.Type)
	overrideString(c, "adapter-url", &cfg.Adapter.URL)
	overrideString(c, "adapter-channel", &cfg.Adapter.Channel)
	overrideDuration(c, "adapter-timeout", &cfg.Adapter.Timeout)
	if c.IsSet("adapter-retries") {
		n := c.Int("adapter-retries")
		cfg.Adapter.Retries = &n
	}

	applyLedgerFlags(c, &cfg.Ledger)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	applyServeDefaults(cfg)
	return cfg, nil
}

func applyServeDefaults(cfg *config.Config) {
	srv := &cfg.Server
	if srv.Address == "" {
		srv.Address = server.DefaultAddress
	}
	if srv.UploadDir == "" {
		srv.UploadDir = defaultUploadDir
	}
	if srv.OutputDir == "" {
		srv.OutputDir = defaultOutputDir
	}
	if srv.CapacityBytes == 0 {
		srv.CapacityBytes = storage.DefaultCapacity
	}
	if srv.ChunkSize == 0 {
		srv.ChunkSize = session.DefaultChunkSize
	}
	if srv.LingerTimeout.Duration == 0 {
		srv.LingerTimeout.Duration = session.DefaultLingerTimeout
	}
	if srv.ShutdownGrace.Duration == 0 {
		srv.ShutdownGrace.Duration = server.DefaultShutdownGrace
	}
	if cfg.Transform.FFmpegPath == "" {
		cfg.Transform.FFmpegPath = transform.DefaultFFmpegPath
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := serveConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	logger, err := log.New(cfg.Log)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to set up logging: %v", err), 1)
	}
	defer func() { _ = logger.Sync() }()

	for _, dir := range []string{cfg.Server.UploadDir, cfg.Server.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return cli.Exit(fmt.Sprintf("failed to create %s: %v", dir, err), 1)
		}
	}

	guard, err := storage.NewGuard(cfg.Server.UploadDir, cfg.Server.CapacityBytes)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	var transformer transform.Transformer = transform.NewFFmpeg(cfg.Transform.FFmpegPath)
	if cfg.Server.MaxTransforms > 0 {
		transformer = transform.Limit(transformer, cfg.Server.MaxTransforms)
	}

	// Set up context with signal handling
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var recorder ledger.Recorder = ledger.Nop{}
	storageBackend := "none"
	if cfg.Ledger.Backend != "" {
		l, err := openLedger(ctx, cfg.Ledger)
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to open ledger: %v", err), 1)
		}
		defer l.Close()
		recorder = l
		storageBackend = cfg.Ledger.Backend
	}

	notifier, err := buildAdapter(cfg.Adapter)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to set up adapter: %v", err), 1)
	}
	if notifier != nil {
		defer func() {
			if err := notifier.Close(); err != nil {
				logger.Warn("adapter close failed", map[string]any{"error": err.Error()})
			}
		}()
	}

	collector := metrics.NewCollector(cfg.Server.Address, storageBackend)

	ln, err := server.Listen(server.Config{
		Address:       cfg.Server.Address,
		MaxSessions:   cfg.Server.MaxSessions,
		ShutdownGrace: cfg.Server.ShutdownGrace.Duration,
		Logger:        logger,
		Session: session.Config{
			UploadDir:     cfg.Server.UploadDir,
			OutputDir:     cfg.Server.OutputDir,
			Guard:         guard,
			Transformer:   transformer,
			ChunkSize:     cfg.Server.ChunkSize,
			ReadTimeout:   cfg.Server.ReadTimeout.Duration,
			WriteTimeout:  cfg.Server.WriteTimeout.Duration,
			LingerTimeout: cfg.Server.LingerTimeout.Duration,
			Logger:        logger,
			Metrics:       collector,
			Recorder:      recorder,
			Adapter:       notifier,
		},
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	logger.Info("server starting", map[string]any{
		"address":        ln.Addr().String(),
		"upload_dir":     cfg.Server.UploadDir,
		"output_dir":     cfg.Server.OutputDir,
		"capacity_bytes": cfg.Server.CapacityBytes,
		"ffmpeg":         cfg.Transform.FFmpegPath,
		"ledger":         storageBackend,
		"adapter":        cfg.Adapter.Type,
	})

	serveErr := ln.Serve(ctx)
	logger.Info("server stopped", collector.Snapshot().Fields())
	if serveErr != nil {
		return cli.Exit(fmt.Sprintf("serve failed: %v", serveErr), 1)
	}
	return nil
}

// buildAdapter returns the configured completion publisher, or nil when none
// is configured.
func buildAdapter(cfg config.AdapterConfig) (adapter.Adapter, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "webhook":
		wcfg := webhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Secret:  cfg.Secret,
			Timeout: cfg.Timeout.Duration,
			Retries: webhook.DefaultRetries,
		}
		if cfg.Retries != nil {
			wcfg.Retries = *cfg.Retries
		}
		return webhook.New(wcfg)
	case "redis":
		rcfg := redis.Config{
			URL:          cfg.URL,
			Channel:      cfg.Channel,
			HistoryKey:   cfg.HistoryKey,
			HistoryLimit: cfg.HistoryLimit,
			Timeout:      cfg.Timeout.Duration,
			Retries:      redis.DefaultRetries,
		}
		if cfg.Retries != nil {
			rcfg.Retries = *cfg.Retries
		}
		return redis.New(rcfg)
	default:
		return nil, fmt.Errorf("unknown adapter type: %s (must be webhook or redis)", cfg.Type)
	}
}
