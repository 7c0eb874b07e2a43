package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"screencap/internal/config"
	"screencap/internal/logging"
	"screencap/internal/services"
)

var commandContext = exec.CommandContext

// FFmpegEngine runs ffmpeg inside a private working directory that plays the
// role of the engine's file area.
type FFmpegEngine struct {
	binary     string
	stagingDir string
	logger     *slog.Logger

	mu      sync.Mutex
	workDir string
}

// NewFFmpegEngine builds an engine from configuration.
func NewFFmpegEngine(cfg *config.Config, logger *slog.Logger) *FFmpegEngine {
	return &FFmpegEngine{
		binary:     cfg.FFmpegBinary(),
		stagingDir: cfg.Paths.StagingDir,
		logger:     logging.NewComponentLogger(logger, "ffmpeg-transcoder"),
	}
}

// Load verifies the binary runs and prepares the working directory.
func (e *FFmpegEngine) Load(ctx context.Context) error {
	cmd := commandContext(ctx, e.binary, "-hide_banner", "-version") //nolint:gosec
	out, err := cmd.Output()
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "transcode", "load", e.binary+" -version", err)
	}
	if err := os.MkdirAll(e.stagingDir, 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	dir, err := os.MkdirTemp(e.stagingDir, "transcode-")
	if err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	e.mu.Lock()
	e.workDir = dir
	e.mu.Unlock()

	version, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	e.logger.Debug("ffmpeg available", logging.String("version", version), logging.String("work_dir", dir))
	return nil
}

func (e *FFmpegEngine) path(name string) (string, error) {
	e.mu.Lock()
	dir := e.workDir
	e.mu.Unlock()
	if dir == "" {
		return "", errors.New("transcode engine not loaded")
	}
	if name != filepath.Base(name) {
		return "", fmt.Errorf("invalid engine file name %q", name)
	}
	return filepath.Join(dir, name), nil
}

// WriteFile stores data under name in the working directory.
func (e *FFmpegEngine) WriteFile(name string, data []byte) error {
	path, err := e.path(name)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// ReadFile returns the contents of name.
func (e *FFmpegEngine) ReadFile(name string) ([]byte, error) {
	path, err := e.path(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// DeleteFile removes name. Missing files are not an error.
func (e *FFmpegEngine) DeleteFile(name string) error {
	path, err := e.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Exec runs ffmpeg with args inside the working directory.
func (e *FFmpegEngine) Exec(ctx context.Context, args []string) error {
	e.mu.Lock()
	dir := e.workDir
	e.mu.Unlock()
	if dir == "" {
		return errors.New("transcode engine not loaded")
	}
	full := append([]string{"-hide_banner", "-loglevel", "error", "-nostdin", "-y"}, args...)
	cmd := commandContext(ctx, e.binary, full...) //nolint:gosec
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		return services.Wrap(services.ErrExternalTool, "transcode", "exec", strings.TrimSpace(string(out)), err)
	}
	return nil
}

// Close removes the working directory.
func (e *FFmpegEngine) Close() error {
	e.mu.Lock()
	dir := e.workDir
	e.workDir = ""
	e.mu.Unlock()
	if dir == "" {
		return nil
	}
	return os.RemoveAll(dir)
}
