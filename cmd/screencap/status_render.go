package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"screencap/internal/api"
	"screencap/internal/ipc"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func statusKindFromSeverity(severity string) statusKind {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case "ok":
		return statusOK
	case "warn", "warning":
		return statusWarn
	case "error":
		return statusError
	default:
		return statusInfo
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func daemonLines(status ipc.StatusResponse, reachable bool, colorize bool) []string {
	if !reachable {
		return []string{renderStatusLine("Daemon", statusWarn, "Not running (run `screencap daemon start`)", colorize)}
	}
	lines := []string{
		renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize),
	}
	switch {
	case !status.TranscodeEnabled:
		lines = append(lines, renderStatusLine("MP4 conversion", statusInfo, "Disabled", colorize))
	case status.TranscodeReady:
		lines = append(lines, renderStatusLine("MP4 conversion", statusOK, "Ready", colorize))
	default:
		lines = append(lines, renderStatusLine("MP4 conversion", statusWarn, "Engine not loaded", colorize))
	}
	if status.DisplayMonitor {
		lines = append(lines, renderStatusLine("Display monitor", statusOK, "Watching for display changes", colorize))
	}
	if status.LogPath != "" {
		lines = append(lines, renderStatusLine("Log", statusInfo, status.LogPath, colorize))
	}
	return lines
}

func sessionLines(s api.Session, colorize bool) []string {
	kind := statusInfo
	switch s.Status {
	case "recording":
		kind = statusOK
	case "paused", "acquiring_media":
		kind = statusWarn
	}
	detail := api.StatusLabel(s.Status)
	if s.Status != "idle" {
		detail = fmt.Sprintf("%s (%s)", detail, s.Elapsed)
	}
	lines := []string{renderStatusLine("Session", kind, detail, colorize)}
	if s.Unsupported {
		lines = append(lines, renderStatusLine("Capture", statusError, "Screen recording is not supported on this host", colorize))
	}
	if s.Status != "idle" {
		lines = append(lines, renderStatusLine("Microphone", statusInfo, yesNo(s.Microphone), colorize))
	}
	if s.Finalizing {
		lines = append(lines, renderStatusLine("Finalizing", statusWarn, "Writing the recording", colorize))
	}
	if s.RecordedURL != "" {
		detail := "Ready to save"
		if !s.CorrectionApplied {
			detail = "Ready to save (duration not corrected)"
		}
		lines = append(lines, renderStatusLine("Recording", statusOK, detail, colorize))
	}
	switch {
	case s.Converting:
		lines = append(lines, renderStatusLine("MP4", statusWarn, "Converting", colorize))
	case s.TranscodedURL != "":
		lines = append(lines, renderStatusLine("MP4", statusOK, "Ready to save", colorize))
	case s.TranscodeError != "":
		lines = append(lines, renderStatusLine("MP4", statusError, s.TranscodeError, colorize))
	}
	if s.RecordingError != "" {
		lines = append(lines, renderStatusLine("Recorder", statusError, s.RecordingError, colorize))
	}
	return lines
}

func dependencyLines(deps []ipc.DependencyStatus, summary api.DependencySummary, colorize bool) []string {
	lines := make([]string, 0, len(deps)+1)
	lines = append(lines, renderStatusLine("Summary", statusKindFromSeverity(summary.Severity), summary.Detail, colorize))
	for _, dep := range deps {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		lines = append(lines, renderStatusLine(dep.Name, statusKindFromSeverity(dep.Severity), detail, colorize))
	}
	return lines
}

func checkLines(checks []api.StatusLine, colorize bool) []string {
	lines := make([]string, 0, len(checks))
	for _, line := range checks {
		lines = append(lines, renderStatusLine(line.Label, statusKindFromSeverity(line.Severity), line.Detail, colorize))
	}
	return lines
}
