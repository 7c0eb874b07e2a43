package recording

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"screencap/internal/blob"
	"screencap/internal/capture"
	"screencap/internal/config"
	"screencap/internal/logging"
)

var execCommand = exec.Command

// stderrTailLines bounds the ffmpeg diagnostics kept for error messages.
const stderrTailLines = 20

// FFmpegEngine records a composite stream with ffmpeg into a staged WebM file.
//
// Each active span is encoded by its own ffmpeg process into its own segment.
// Pause finishes the running segment and Resume starts the next one, so paused
// time never reaches the encoder. Stop joins the segments with a stream copy,
// which rebases every segment onto the end of the previous one.
type FFmpegEngine struct {
	binary      string
	stagingDir  string
	videoCodec  string
	audioCodec  string
	maxWidth    int
	maxHeight   int
	frameRate   int
	stopTimeout time.Duration
	logger      *slog.Logger

	mu       sync.Mutex
	id       string
	stream   *capture.Stream
	current  *segment
	segments []*segment
}

// segment is one ffmpeg process and the file it writes.
type segment struct {
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stderr    *tailBuffer
	output    string
	finishing bool
	exited    chan struct{}
	exitErr   error
}

// NewFFmpegEngine constructs an engine from configuration.
func NewFFmpegEngine(cfg *config.Config, logger *slog.Logger) *FFmpegEngine {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	timeout := time.Duration(cfg.Recording.StopTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FFmpegEngine{
		binary:      cfg.FFmpegBinary(),
		stagingDir:  cfg.Paths.StagingDir,
		videoCodec:  cfg.Recording.VideoCodec,
		audioCodec:  cfg.Recording.AudioCodec,
		maxWidth:    cfg.Capture.MaxWidth,
		maxHeight:   cfg.Capture.MaxHeight,
		frameRate:   cfg.Capture.FrameRate,
		stopTimeout: timeout,
		logger:      logging.NewComponentLogger(logger, "ffmpeg-recorder"),
	}
}

// Start launches ffmpeg for the first segment. The process is detached from
// ctx so it outlives the request that started it.
func (e *FFmpegEngine) Start(ctx context.Context, stream *capture.Stream) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream != nil {
		return errors.New("recorder already running")
	}
	if stream == nil || len(stream.VideoTracks()) == 0 {
		return errors.New("stream has no video track")
	}
	if err := os.MkdirAll(e.stagingDir, 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}

	e.id = uuid.NewString()
	e.stream = stream
	e.segments = nil
	if err := e.startSegmentLocked(ctx); err != nil {
		e.stream = nil
		return err
	}
	return nil
}

func (e *FFmpegEngine) startSegmentLocked(ctx context.Context) error {
	output := SegmentPath(e.stagingDir, e.id, len(e.segments))
	args := BuildArgs(e.stream, ArgsOptions{
		VideoCodec: e.videoCodec,
		AudioCodec: e.audioCodec,
		MaxWidth:   e.maxWidth,
		MaxHeight:  e.maxHeight,
		FrameRate:  e.frameRate,
	}, output)

	cmd := execCommand(e.binary, args...) //nolint:gosec
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stderr := newTailBuffer(stderrTailLines)
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", e.binary, err)
	}

	seg := &segment{
		cmd:    cmd,
		stdin:  stdin,
		stderr: stderr,
		output: output,
		exited: make(chan struct{}),
	}
	e.current = seg
	e.segments = append(e.segments, seg)

	logging.WithContext(ctx, e.logger).Info("ffmpeg recorder started",
		logging.String(logging.FieldEventType, "recorder_started"),
		logging.Int("pid", cmd.Process.Pid),
		logging.Int("segment", len(e.segments)-1),
		logging.String("output", output),
	)
	go e.wait(seg, e.stream)
	return nil
}

// SegmentPath names the file segment index of recording id is written to.
func SegmentPath(dir, id string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("recording-%s-%03d.webm", id, index))
}

func (e *FFmpegEngine) wait(seg *segment, stream *capture.Stream) {
	err := seg.cmd.Wait()

	e.mu.Lock()
	seg.exitErr = err
	finishing := seg.finishing
	if e.current == seg {
		e.current = nil
	}
	e.mu.Unlock()
	close(seg.exited)

	if finishing {
		return
	}
	// The encoder died on its own: the display went away or ffmpeg failed.
	// Ending the tracks routes this through the host-termination stop path.
	logging.WarnWithContext(e.logger, "ffmpeg recorder exited unexpectedly", "recorder_exited",
		logging.Error(err),
		logging.String("stderr", seg.stderr.String()),
		logging.String(logging.FieldErrorHint, "check the X display and audio sources"),
		logging.String(logging.FieldImpact, "recording stops with the content captured so far"),
	)
	if stream != nil {
		for _, t := range stream.Tracks() {
			t.End()
		}
	}
}

// Pause finishes the running segment so the paused interval is not encoded.
func (e *FFmpegEngine) Pause() error {
	e.mu.Lock()
	if e.stream == nil {
		e.mu.Unlock()
		return errors.New("recorder not running")
	}
	seg := e.current
	if seg == nil {
		e.mu.Unlock()
		return errors.New("recorder already paused")
	}
	seg.finishing = true
	e.current = nil
	e.mu.Unlock()

	e.finishSegment(context.Background(), seg)
	e.logger.Debug("ffmpeg segment closed for pause", logging.String("output", seg.output))
	return nil
}

// Resume starts the next segment.
func (e *FFmpegEngine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stream == nil {
		return errors.New("recorder not running")
	}
	if e.current != nil {
		return errors.New("recorder not paused")
	}
	return e.startSegmentLocked(context.Background())
}

// finishSegment asks ffmpeg to finish, escalating to SIGINT and then SIGKILL
// when it does not exit within the stop timeout.
func (e *FFmpegEngine) finishSegment(ctx context.Context, seg *segment) {
	select {
	case <-seg.exited:
		return
	default:
	}
	if _, err := io.WriteString(seg.stdin, "q"); err != nil {
		e.logger.Debug("write quit to ffmpeg failed", logging.Error(err))
	}
	_ = seg.stdin.Close()
	if waitExit(ctx, seg.exited, e.stopTimeout) {
		return
	}
	_ = interruptProcess(seg.cmd.Process)
	if waitExit(ctx, seg.exited, e.stopTimeout) {
		return
	}
	_ = seg.cmd.Process.Kill()
	<-seg.exited
}

// Stop finishes the running segment, joins every segment into one WebM and
// returns it.
func (e *FFmpegEngine) Stop(ctx context.Context) (blob.Blob, error) {
	e.mu.Lock()
	if e.stream == nil {
		e.mu.Unlock()
		return blob.Blob{}, errors.New("recorder not running")
	}
	seg := e.current
	if seg != nil {
		seg.finishing = true
		e.current = nil
	}
	id := e.id
	segments := append([]*segment(nil), e.segments...)
	e.mu.Unlock()

	defer e.reset()
	if seg != nil {
		e.finishSegment(ctx, seg)
	}
	defer removeSegments(segments)

	var parts []string
	var diag []string
	for _, s := range segments {
		e.mu.Lock()
		exitErr := s.exitErr
		e.mu.Unlock()
		if exitErr != nil {
			e.logger.Debug("ffmpeg exit status after stop", logging.Error(exitErr))
			diag = append(diag, fmt.Sprintf("%v %s", exitErr, s.stderr.String()))
		}
		if info, err := os.Stat(s.output); err == nil && info.Size() > 0 {
			parts = append(parts, s.output)
		}
	}
	if len(parts) == 0 {
		return blob.Blob{}, fmt.Errorf("ffmpeg produced an empty recording (ffmpeg: %s)", strings.Join(diag, "; "))
	}

	output := parts[0]
	if len(parts) > 1 {
		joined, err := e.concat(ctx, id, parts)
		if err != nil {
			return blob.Blob{}, err
		}
		defer os.Remove(joined)
		output = joined
	}

	data, err := os.ReadFile(output)
	if err != nil {
		return blob.Blob{}, fmt.Errorf("read recording: %w", err)
	}
	if len(data) == 0 {
		return blob.Blob{}, errors.New("ffmpeg produced an empty recording")
	}
	e.logger.Info("ffmpeg recorder stopped",
		logging.String(logging.FieldEventType, "recorder_stopped"),
		logging.Int("segments", len(parts)),
		logging.Int("bytes", len(data)),
	)
	return blob.New(data, blob.MimeWebM), nil
}

// concat joins parts with the concat demuxer and returns the joined file.
func (e *FFmpegEngine) concat(ctx context.Context, id string, parts []string) (string, error) {
	list := filepath.Join(e.stagingDir, "recording-"+id+".txt")
	if err := os.WriteFile(list, []byte(ConcatList(parts)), 0o644); err != nil {
		return "", fmt.Errorf("write segment list: %w", err)
	}
	defer os.Remove(list)

	output := filepath.Join(e.stagingDir, "recording-"+id+".webm")
	cmd := execCommand(e.binary, ConcatArgs(list, output)...) //nolint:gosec
	stderr := newTailBuffer(stderrTailLines)
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start %s: %w", e.binary, err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			_ = os.Remove(output)
			return "", fmt.Errorf("join %d segments: %w (ffmpeg: %s)", len(parts), err, stderr.String())
		}
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		_ = os.Remove(output)
		return "", ctx.Err()
	}
	logging.WithContext(ctx, e.logger).Debug("ffmpeg segments joined",
		logging.Int("segments", len(parts)),
		logging.String("output", output),
	)
	return output, nil
}

// ConcatList renders the concat demuxer script listing parts in order.
func ConcatList(parts []string) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(p, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

// ConcatArgs assembles the ffmpeg command line joining the segments named in
// list into output without re-encoding.
func ConcatArgs(list, output string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "concat", "-safe", "0", "-i", list,
		"-map", "0", "-c", "copy",
		"-f", "webm", output,
	}
}

func removeSegments(segments []*segment) {
	for _, s := range segments {
		_ = os.Remove(s.output)
	}
}

func (e *FFmpegEngine) reset() {
	e.mu.Lock()
	e.stream = nil
	e.current = nil
	e.segments = nil
	e.mu.Unlock()
}

func waitExit(ctx context.Context, exited <-chan struct{}, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-exited:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// ArgsOptions controls ffmpeg output encoding.
type ArgsOptions struct {
	VideoCodec string
	AudioCodec string
	MaxWidth   int
	MaxHeight  int
	FrameRate  int
}

// BuildArgs assembles the ffmpeg command line for recording stream into output.
// Every track becomes one input; all are mapped into a VP9/Opus WebM.
func BuildArgs(stream *capture.Stream, opts ArgsOptions, output string) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-y"}

	var videoIdx, audioIdx []int
	noiseSuppression := false
	for i, t := range stream.Tracks() {
		args = append(args, "-thread_queue_size", "1024")
		args = append(args, t.Source.Args...)
		if t.Source.Format != "" {
			args = append(args, "-f", t.Source.Format)
		}
		args = append(args, "-i", t.Source.Device)
		switch t.Kind {
		case capture.KindVideo:
			videoIdx = append(videoIdx, i)
		case capture.KindAudio:
			audioIdx = append(audioIdx, i)
			noiseSuppression = noiseSuppression || t.Settings.NoiseSuppression
		}
	}
	for _, i := range videoIdx {
		args = append(args, "-map", strconv.Itoa(i)+":v")
	}
	for _, i := range audioIdx {
		args = append(args, "-map", strconv.Itoa(i)+":a")
	}

	if opts.MaxWidth > 0 && opts.MaxHeight > 0 {
		args = append(args, "-filter:v", fmt.Sprintf(
			"scale='min(iw,%d)':'min(ih,%d)':force_original_aspect_ratio=decrease:force_divisible_by=2",
			opts.MaxWidth, opts.MaxHeight))
	}
	if opts.FrameRate > 0 {
		args = append(args, "-r", strconv.Itoa(opts.FrameRate))
	}
	videoCodec := strings.TrimSpace(opts.VideoCodec)
	if videoCodec == "" {
		videoCodec = "libvpx-vp9"
	}
	args = append(args, "-c:v", videoCodec)
	if videoCodec == "libvpx-vp9" {
		args = append(args, "-deadline", "realtime", "-cpu-used", "8", "-row-mt", "1", "-b:v", "0", "-crf", "33")
	}

	if len(audioIdx) > 0 {
		if noiseSuppression {
			args = append(args, "-filter:a", "afftdn")
		}
		audioCodec := strings.TrimSpace(opts.AudioCodec)
		if audioCodec == "" {
			audioCodec = "libopus"
		}
		args = append(args, "-c:a", audioCodec)
	}

	return append(args, "-f", "webm", output)
}

// tailBuffer keeps the last n lines written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	lines []string
	part  string
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	text := b.part + string(p)
	parts := strings.Split(text, "\n")
	b.part = parts[len(parts)-1]
	for _, line := range parts[:len(parts)-1] {
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		b.lines = append(b.lines, line)
		if len(b.lines) > b.limit {
			b.lines = b.lines[len(b.lines)-b.limit:]
		}
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	if b == nil {
		return ""
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	lines := append([]string(nil), b.lines...)
	if tail := strings.TrimSpace(b.part); tail != "" {
		lines = append(lines, tail)
	}
	return strings.Join(lines, "; ")
}
