package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"screencap/internal/blob"
	"screencap/internal/capture"
	"screencap/internal/clock"
	"screencap/internal/config"
	"screencap/internal/daemon"
	"screencap/internal/deps"
	"screencap/internal/ipc"
	"screencap/internal/library"
	"screencap/internal/logging"
	"screencap/internal/logs"
	"screencap/internal/metrics"
	"screencap/internal/notifications"
	"screencap/internal/recording"
	"screencap/internal/session"
	"screencap/internal/transcode"
	"screencap/internal/webm"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the screencap daemon and blocks until a signal arrives or the
// daemon is asked to shut down.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("screencap-%s.log", runID))

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(signalCtx, logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update screencap.log link: %v\n", err)
	}
	pruneRunLogs(logger, cfg, logPath)
	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	var store *library.Store
	if cfg.Library.Enabled {
		store, err = library.Open(cfg)
		if err != nil {
			logging.ErrorWithContext(logger, "open recording library", "library_open_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check state_dir permissions or disable [library]"))
			return err
		}
	}

	components := buildComponents(signalCtx, cfg, store, logger)
	d, err := daemon.New(cfg, logger, components, logPath)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	metrics.InitializeMetrics()
	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	select {
	case <-signalCtx.Done():
	case <-d.Done():
	}
	logger.Info("screencap daemon shutting down",
		logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func buildComponents(ctx context.Context, cfg *config.Config, store *library.Store, logger *slog.Logger) daemon.Components {
	var pipeline *transcode.Pipeline
	notifier := notifications.NewService(cfg)
	durationClock := clock.New(logger)
	sessionDeps := session.Deps{
		Composer:  capture.NewComposer(capture.NewFFmpegHost(cfg, logger), capture.ConstraintsFromConfig(cfg), logger),
		Recorder:  recording.NewAdapter(recording.NewFFmpegEngine(cfg, logger), logger),
		Clock:     durationClock,
		Finalizer: webm.NewFinalizer(logger),
		Registry:  blob.NewRegistry(),
		Notifier:  notifier,
	}
	closers := []func() error{
		func() error { durationClock.Close(); return nil },
	}
	if cfg.Transcode.Enabled {
		engine := transcode.NewFFmpegEngine(cfg, logger)
		pipeline = transcode.NewPipeline(engine, logger)
		sessionDeps.Converter = pipeline
		closers = append(closers, engine.Close)
	}
	return daemon.Components{
		Session:  session.NewManager(ctx, sessionDeps, logger),
		Pipeline: pipeline,
		Store:    store,
		Exporter: library.NewExporter(cfg, store, logger),
		Notifier: notifier,
		Closers:  closers,
	}
}

// pruneRunLogs removes expired per-run logs, never the one this run writes.
func pruneRunLogs(logger *slog.Logger, cfg *config.Config, logPath string) int {
	return logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "screencap-*.log", Keep: []string{logPath}},
	)
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logs.PointerName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []any{logging.String(logging.FieldEventType, "dependency_snapshot")}
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		key := strings.ToLower(status.Name)
		attrs = append(attrs,
			logging.Bool(key+"_available", status.Available),
			logging.String(key+"_binary", status.Command))
	}
	encoders := deps.CheckEncoders(ctx, cfg.FFmpegBinary(), cfg.Recording.VideoCodec, cfg.Recording.AudioCodec)
	attrs = append(attrs,
		logging.Bool("encoders_available", encoders.Available),
		logging.String("encoders_detail", encoders.Detail),
		logging.Bool("transcode_enabled", cfg.Transcode.Enabled),
		logging.Bool("library_enabled", cfg.Library.Enabled),
	)
	logger.Info("dependency snapshot", attrs...)
}
