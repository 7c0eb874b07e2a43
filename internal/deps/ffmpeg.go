package deps

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

// CheckEncoders reports whether ffmpeg was built with each named encoder.
// The returned status is unavailable when any encoder is missing.
func CheckEncoders(ctx context.Context, ffmpegBinary string, encoders ...string) Status {
	result := Status{
		Name:        "FFmpeg encoders",
		Command:     ffmpegBinary,
		Description: "Encoders used for " + strings.Join(encoders, ", "),
	}
	if strings.TrimSpace(ffmpegBinary) == "" {
		result.Detail = "command not configured"
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	out, err := commandContext(ctx, ffmpegBinary, "-hide_banner", "-encoders").Output()
	if err != nil {
		result.Detail = fmt.Sprintf("list encoders: %v", err)
		return result
	}

	available := parseEncoders(string(out))
	var missing []string
	for _, name := range encoders {
		if _, ok := available[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		result.Detail = "missing encoders: " + strings.Join(missing, ", ")
		return result
	}
	result.Available = true
	return result
}

// parseEncoders reads `ffmpeg -encoders` output. Encoder lines look like
// " V....D libvpx-vp9  libvpx VP9".
func parseEncoders(output string) map[string]struct{} {
	found := make(map[string]struct{})
	scanner := bufio.NewScanner(strings.NewReader(output))
	past := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !past {
			past = strings.HasPrefix(line, "------")
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields[0]) != 6 {
			continue
		}
		found[fields[1]] = struct{}{}
	}
	return found
}
