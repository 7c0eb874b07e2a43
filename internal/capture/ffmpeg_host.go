package capture

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"screencap/internal/config"
	"screencap/internal/logging"
	"screencap/internal/services"
)

var (
	commandContext = exec.CommandContext
	lookPath       = exec.LookPath
	statPath       = os.Stat
)

// x11SocketDir holds the local X server sockets (X0, X1, ...).
const x11SocketDir = "/tmp/.X11-unix"

// FFmpegHost grants capture streams as ffmpeg input descriptors: the X11
// display through x11grab and audio through PulseAudio sources.
type FFmpegHost struct {
	ffmpeg  string
	pactl   string
	capture config.Capture
	logger  *slog.Logger
}

// NewFFmpegHost constructs a host from configuration.
func NewFFmpegHost(cfg *config.Config, logger *slog.Logger) *FFmpegHost {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	return &FFmpegHost{
		ffmpeg:  cfg.FFmpegBinary(),
		pactl:   cfg.PactlBinary(),
		capture: cfg.Capture,
		logger:  logging.NewComponentLogger(logger, "capture-host"),
	}
}

// Supported verifies ffmpeg is installed with the x11grab device compiled in.
func (h *FFmpegHost) Supported(ctx context.Context) error {
	if _, err := lookPath(h.ffmpeg); err != nil {
		return services.Wrap(services.ErrUnsupportedDevice, "capture", "support", fmt.Sprintf("%s not found", h.ffmpeg), err)
	}
	out, err := commandContext(ctx, h.ffmpeg, "-hide_banner", "-devices").CombinedOutput()
	if err != nil {
		return services.Wrap(services.ErrUnsupportedDevice, "capture", "support", "list ffmpeg devices", err)
	}
	if !hasDevice(out, "x11grab") {
		return services.Wrap(services.ErrUnsupportedDevice, "capture", "support", "ffmpeg lacks x11grab input", nil)
	}
	return nil
}

// RequestDisplay grants the configured X11 display plus the system audio
// monitor when one is configured and available.
func (h *FFmpegHost) RequestDisplay(ctx context.Context, constraints DisplayConstraints) (*Stream, error) {
	display := strings.TrimSpace(h.capture.Display)
	if err := displayReachable(display); err != nil {
		return nil, services.Wrap(services.ErrAcquisitionDenied, "capture", "display", display, err)
	}

	frameRate := constraints.Video.FrameRate
	if frameRate <= 0 {
		frameRate = 30
	}
	video := NewTrack(KindVideo, "screen "+display, Source{
		Format: "x11grab",
		Device: display,
		Args:   []string{"-framerate", strconv.Itoa(frameRate), "-draw_mouse", "1"},
	}, Settings{
		Width:     constraints.Video.MaxWidth,
		Height:    constraints.Video.MaxHeight,
		FrameRate: frameRate,
	})
	stream := NewStream(video)

	if source := strings.TrimSpace(h.capture.SystemAudioSource); source != "" {
		if err := h.pulseSourceAvailable(ctx, source); err != nil {
			h.logger.Info("system audio unavailable; display granted without audio",
				logging.String("source", source),
				logging.Error(err),
			)
		} else {
			stream.AddTrack(NewTrack(KindAudio, "system audio", pulseSource(source, constraints.Audio), audioSettings(constraints.Audio)))
		}
	}
	return stream, nil
}

// RequestMicrophone grants the configured PulseAudio microphone source.
func (h *FFmpegHost) RequestMicrophone(ctx context.Context, constraints AudioConstraints) (*Stream, error) {
	source := strings.TrimSpace(h.capture.MicrophoneSource)
	if source == "" {
		return nil, services.Wrap(services.ErrMicrophoneDenied, "capture", "microphone", "no microphone source configured", nil)
	}
	if err := h.pulseSourceAvailable(ctx, source); err != nil {
		return nil, services.Wrap(services.ErrMicrophoneDenied, "capture", "microphone", source, err)
	}
	return NewStream(NewTrack(KindAudio, "microphone", pulseSource(source, constraints), audioSettings(constraints))), nil
}

func (h *FFmpegHost) pulseSourceAvailable(ctx context.Context, source string) error {
	if _, err := lookPath(h.pactl); err != nil {
		return fmt.Errorf("%s not found: %w", h.pactl, err)
	}
	if strings.HasPrefix(source, "@") {
		// Symbolic defaults resolve whenever the server answers.
		if out, err := commandContext(ctx, h.pactl, "info").CombinedOutput(); err != nil {
			return fmt.Errorf("pulseaudio unreachable: %s: %w", strings.TrimSpace(string(out)), err)
		}
		return nil
	}
	out, err := commandContext(ctx, h.pactl, "list", "short", "sources").Output()
	if err != nil {
		return fmt.Errorf("list pulseaudio sources: %w", err)
	}
	for _, name := range parseSourceNames(out) {
		if name == source {
			return nil
		}
	}
	return fmt.Errorf("pulseaudio source %q not found", source)
}

func pulseSource(device string, constraints AudioConstraints) Source {
	args := []string{}
	if constraints.SampleRate > 0 {
		args = append(args, "-sample_rate", strconv.Itoa(constraints.SampleRate))
	}
	return Source{Format: "pulse", Device: device, Args: args}
}

func audioSettings(c AudioConstraints) Settings {
	return Settings{
		SampleRate:       c.SampleRate,
		EchoCancellation: c.EchoCancellation,
		NoiseSuppression: c.NoiseSuppression,
	}
}

// displayReachable accepts "[host]:N[.S]". Local displays must have a socket
// under /tmp/.X11-unix; remote displays are assumed reachable.
func displayReachable(display string) error {
	if display == "" {
		return fmt.Errorf("no display configured")
	}
	host, rest, ok := strings.Cut(display, ":")
	if !ok {
		return fmt.Errorf("malformed display %q", display)
	}
	number, _, _ := strings.Cut(rest, ".")
	if _, err := strconv.Atoi(number); err != nil {
		return fmt.Errorf("malformed display %q", display)
	}
	if host != "" && host != "unix" && host != "localhost" {
		return nil
	}
	if _, err := statPath(filepath.Join(x11SocketDir, "X"+number)); err != nil {
		return fmt.Errorf("display %s not running: %w", display, err)
	}
	return nil
}

func hasDevice(out []byte, name string) bool {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		// Device lines look like " D  x11grab  X11 screen capture".
		if len(fields) >= 2 && strings.Contains(fields[0], "D") && fields[1] == name {
			return true
		}
	}
	return false
}

func parseSourceNames(out []byte) []string {
	var names []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) >= 2 {
			names = append(names, strings.TrimSpace(fields[1]))
		}
	}
	return names
}
