package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"screencap/internal/api"
	"screencap/internal/ipc"
	"screencap/internal/services"
)

func newSessionCommands(ctx *commandContext) []*cobra.Command {
	var microphone bool
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Pick a display and start recording",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.sessionCall(cmd, func(c *ipc.Client) (*ipc.SessionResponse, error) {
				return c.Start(microphone)
			})
		},
	}
	startCmd.Flags().BoolVar(&microphone, "mic", false, "Mix the microphone into the recording")

	simple := func(use, short string, call func(*ipc.Client) (*ipc.SessionResponse, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				return ctx.sessionCall(cmd, call)
			},
		}
	}

	return []*cobra.Command{
		startCmd,
		simple("pause", "Pause the recording", (*ipc.Client).Pause),
		simple("resume", "Resume a paused recording", (*ipc.Client).Resume),
		simple("stop", "Stop recording and finalize the file", (*ipc.Client).Stop),
		simple("restart", "Discard the current recording and return to idle", (*ipc.Client).Restart),
		simple("convert", "Convert the stopped recording to MP4", (*ipc.Client).Convert),
	}
}

func (c *commandContext) sessionCall(cmd *cobra.Command, call func(*ipc.Client) (*ipc.SessionResponse, error)) error {
	return c.withClient(func(client *ipc.Client) error {
		resp, err := call(client)
		out := cmd.OutOrStdout()
		if errors.Is(err, services.ErrAcquisitionDenied) {
			fmt.Fprintln(out, "Screen selection was cancelled")
			return nil
		}
		if err != nil {
			return describeSessionError(err)
		}
		printSession(out, resp.Session)
		return nil
	})
}

func describeSessionError(err error) error {
	switch {
	case errors.Is(err, services.ErrUnsupportedDevice):
		return fmt.Errorf("screen recording is not supported on this host: %w", err)
	case errors.Is(err, services.ErrConversionInProgress):
		return errors.New("a conversion is already running")
	default:
		return err
	}
}

func printSession(out io.Writer, s api.Session) {
	field := func(label, value string) {
		fmt.Fprintf(out, "%-12s %s\n", label+":", value)
	}
	field("Status", api.StatusLabel(s.Status))
	if s.Status == "idle" && s.ID == "" {
		return
	}
	field("Elapsed", s.Elapsed)
	field("Microphone", yesNo(s.Microphone))
	if s.StopTrigger == "host" {
		field("Stopped by", "display sharing ended")
	}
	if s.RecordedURL != "" {
		field("Recording", s.RecordedURL)
	}
	if s.TranscodedURL != "" {
		field("MP4", s.TranscodedURL)
	}
	if s.Converting {
		field("Converting", "yes")
	}
	if s.RecordingError != "" {
		field("Recorder", s.RecordingError)
	}
	if s.TranscodeError != "" {
		field("Convert", s.TranscodeError)
	}
}

func newSaveCommand(ctx *commandContext) *cobra.Command {
	var converted bool
	var output string
	var name string
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Write the stopped recording to disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ipc.SaveRequest{Converted: converted, Name: strings.TrimSpace(name)}
			if target := strings.TrimSpace(output); target != "" {
				abs, err := filepath.Abs(target)
				if err != nil {
					return fmt.Errorf("resolve output path: %w", err)
				}
				req.Output = abs
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Save(req)
				if errors.Is(err, services.ErrNotFound) {
					if converted {
						return errors.New("no converted recording; run `screencap convert` first")
					}
					return errors.New("no finished recording; run `screencap stop` first")
				}
				if err != nil {
					return err
				}
				rec := resp.Recording
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s, %s)\n", rec.Path, api.FormatBytes(rec.SizeBytes), rec.Duration)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&converted, "converted", false, "Save the MP4 conversion instead of the original")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file or directory")
	cmd.Flags().StringVar(&name, "name", "", "Base file name without extension")
	return cmd
}
