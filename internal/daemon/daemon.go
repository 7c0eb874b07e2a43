package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"screencap/internal/blob"
	"screencap/internal/config"
	"screencap/internal/deps"
	"screencap/internal/library"
	"screencap/internal/logging"
	"screencap/internal/notifications"
	"screencap/internal/preflight"
	"screencap/internal/services"
	"screencap/internal/session"
	"screencap/internal/transcode"
)

// Components are the collaborators the daemon serves. Pipeline is nil when
// conversion is disabled; Store is nil when the catalog is disabled.
type Components struct {
	Session  *session.Manager
	Pipeline *transcode.Pipeline
	Store    *library.Store
	Exporter *library.Exporter
	Notifier notifications.Service
	// Closers release process-wide resources (clock goroutine, transcode
	// working directory) after the session is closed.
	Closers []func() error
}

// Daemon owns the recording session for the lifetime of the process and
// enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	session  *session.Manager
	pipeline *transcode.Pipeline
	store    *library.Store
	exporter *library.Exporter
	notifier notifications.Service
	closers  []func() error
	logPath  string

	lockPath string
	lock     *flock.Flock

	api     *apiServer
	display *displayMonitor

	mu       sync.Mutex
	deps     []deps.Status
	running  atomic.Bool
	cancel   context.CancelFunc
	group    *errgroup.Group
	done     chan struct{}
	doneOnce sync.Once
}

// Status represents daemon runtime information.
type Status struct {
	Running          bool
	PID              int
	LockFilePath     string
	LibraryDBPath    string
	TranscodeEnabled bool
	TranscodeReady   bool
	DisplayMonitor   bool
	Session          session.Snapshot
	Dependencies     []deps.Status
}

// SaveRequest selects which blob of the stopped session to write to disk.
type SaveRequest struct {
	Converted  bool
	OutputPath string
	Name       string
}

// New constructs a daemon around an already wired session manager.
func New(cfg *config.Config, logger *slog.Logger, c Components, logPath string) (*Daemon, error) {
	if cfg == nil || c.Session == nil {
		return nil, errors.New("daemon requires config and session manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	exporter := c.Exporter
	if exporter == nil {
		exporter = library.NewExporter(cfg, c.Store, logger)
	}
	notifier := c.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		session:  c.Session,
		pipeline: c.Pipeline,
		store:    c.Store,
		exporter: exporter,
		notifier: notifier,
		closers:  c.Closers,
		logPath:  logPath,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
		done:     make(chan struct{}),
	}
	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	d.display = newDisplayMonitor(cfg, logger, d.endCaptureForDisplay)
	return d, nil
}

// Start acquires the daemon lock, checks capture support, warms the transcode
// engine and starts the HTTP API and display monitor.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another screencap daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)

	d.mu.Lock()
	d.deps = deps.CheckBinaries(deps.Requirements(d.cfg))
	d.cancel = cancel
	d.group = group
	d.mu.Unlock()

	for _, failed := range preflight.Failed(preflight.RunAll(d.cfg)) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String(logging.FieldErrorHint, failed.Detail),
			logging.String(logging.FieldImpact, "recordings may fail until this is fixed"),
		)
	}

	if err := d.session.CheckSupport(runCtx); err != nil {
		// Unsupported is a persistent session state, not a startup failure.
		d.logger.Debug("capture support check failed", logging.Error(err))
	}

	if d.pipeline != nil {
		group.Go(func() error {
			// Initialize logs its own failure; conversion retries the load.
			_ = d.pipeline.Initialize(groupCtx)
			return nil
		})
	}

	if err := d.api.start(groupCtx, group); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	if err := d.display.Start(groupCtx); err != nil {
		d.logger.Debug("display monitor unavailable", logging.Error(err))
	}

	d.running.Store(true)
	d.logger.Info("screencap daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
	)
	return nil
}

// Stop stops background services and releases the daemon lock. An active
// recording is stopped first so its output is not lost.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if snap := d.session.Snapshot(); snap.Active() {
		if _, err := d.session.Stop(context.Background()); err != nil {
			logging.WarnWithContext(d.logger, "failed to stop active recording during shutdown", "daemon_stop_recording_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "the in-progress recording may be incomplete"),
			)
		}
	}

	d.display.Stop()
	d.api.stop()

	d.mu.Lock()
	cancel, group := d.cancel, d.group
	d.cancel, d.group = nil, nil
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if group != nil {
		if err := group.Wait(); err != nil {
			d.logger.Warn("background service exited with error", logging.Error(err))
		}
	}

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.doneOnce.Do(func() { close(d.done) })
	d.logger.Info("screencap daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stopped"),
	)
}

// Done is closed once the daemon has been stopped.
func (d *Daemon) Done() <-chan struct{} {
	return d.done
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	d.session.Close()
	var errs []error
	for _, closeFn := range d.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	if d.store != nil {
		errs = append(errs, d.store.Close())
	}
	return errors.Join(errs...)
}

// Session exposes the session manager to the IPC and HTTP layers.
func (d *Daemon) Session() *session.Manager {
	return d.session
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(context.Context) Status {
	d.mu.Lock()
	depStatuses := append([]deps.Status(nil), d.deps...)
	d.mu.Unlock()

	status := Status{
		Running:          d.running.Load(),
		PID:              os.Getpid(),
		LockFilePath:     d.lockPath,
		TranscodeEnabled: d.pipeline != nil,
		DisplayMonitor:   d.display.Running(),
		Session:          d.session.Snapshot(),
		Dependencies:     depStatuses,
	}
	if d.pipeline != nil {
		status.TranscodeReady = d.pipeline.Ready()
	}
	if d.store != nil {
		status.LibraryDBPath = d.store.Path()
	}
	return status
}

// Save writes the stopped session's recording (or its MP4 conversion) to disk.
func (d *Daemon) Save(ctx context.Context, req SaveRequest) (*library.Recording, error) {
	var (
		b    blob.Blob
		snap session.Snapshot
		err  error
		kind = library.KindOriginal
	)
	if req.Converted {
		kind = library.KindConverted
		b, snap, err = d.session.Transcoded()
	} else {
		b, snap, err = d.session.Recorded()
	}
	if err != nil {
		return nil, err
	}
	ctx = services.WithSessionID(ctx, snap.ID)
	rec, err := d.exporter.Save(ctx, library.SaveRequest{
		SessionID:       snap.ID,
		Kind:            kind,
		Blob:            b,
		DurationSeconds: snap.DurationSeconds,
		Microphone:      snap.UseMicrophone,
		Name:            req.Name,
		OutputPath:      req.OutputPath,
	})
	if err != nil {
		return nil, err
	}
	if d.notifier == nil {
		return rec, nil
	}
	notifyCtx := context.WithoutCancel(ctx)
	payload := notifications.Payload{"path": rec.Path, "kind": string(rec.Kind)}
	go func() {
		if err := d.notifier.Publish(notifyCtx, notifications.EventRecordingSaved, payload); err != nil {
			logging.WarnWithContext(logging.WithContext(notifyCtx, d.logger), "save notification failed", "notification_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
				logging.String(logging.FieldImpact, "the recording was saved; only the push was lost"),
			)
		}
	}()
	return rec, nil
}

// TestNotification sends the test event through the configured notifier.
// It reports false when no ntfy topic is configured.
func (d *Daemon) TestNotification(ctx context.Context) (bool, error) {
	if d.cfg.Notifications.NtfyTopic == "" {
		return false, nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, services.Wrap(services.ErrExternalTool, "daemon", "test notification", "ntfy rejected the test notification", err)
	}
	return true, nil
}

// ListRecordings returns saved recordings, newest first.
func (d *Daemon) ListRecordings(ctx context.Context, limit int) ([]*library.Recording, error) {
	if d.store == nil {
		return nil, services.Wrap(services.ErrConfiguration, "daemon", "list recordings", "recording library is disabled", nil)
	}
	return d.store.List(ctx, limit)
}

// RemoveRecording drops a catalog entry and, unless keepFile is set, deletes
// the file it points at. A file that is already gone is not an error.
func (d *Daemon) RemoveRecording(ctx context.Context, id string, keepFile bool) (*library.Recording, error) {
	if d.store == nil {
		return nil, services.Wrap(services.ErrConfiguration, "daemon", "remove recording", "recording library is disabled", nil)
	}
	rec, err := d.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := d.store.Remove(ctx, id); err != nil {
		return nil, err
	}
	if !keepFile {
		if err := os.Remove(rec.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return rec, fmt.Errorf("delete %s: %w", rec.Path, err)
		}
	}
	d.logger.Info("recording removed",
		logging.String(logging.FieldEventType, "recording_removed"),
		logging.String("recording_id", rec.ID),
		logging.String("path", rec.Path),
		logging.Bool("kept_file", keepFile))
	return rec, nil
}

func (d *Daemon) endCaptureForDisplay(reason string) {
	if !d.session.Snapshot().Active() {
		return
	}
	if err := d.session.EndCapture(reason); err != nil {
		d.logger.Debug("display change did not end capture", logging.Error(err))
	}
}
