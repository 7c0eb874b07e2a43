package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"screencap/internal/api"
	"screencap/internal/daemonctl"
	"screencap/internal/ipc"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved recordings",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := daemonctl.ListRecordings(cmd.Context(), ctx.configValue(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, api.RecordingListResponse{Items: items})
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No saved recordings")
				return nil
			}
			fmt.Fprint(out, renderTable(
				[]string{"ID", "Created", "Kind", "Duration", "Size", "Mic", "File"},
				recordingRows(items),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
			))
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of recordings to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func recordingRows(items []api.Recording) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			shortID(item.ID),
			displayTime(item.CreatedAt),
			item.Kind,
			item.Duration,
			api.FormatBytes(item.SizeBytes),
			yesNo(item.Microphone),
			filepath.Base(item.Path),
		})
	}
	return rows
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func displayTime(ts string) string {
	ts = strings.TrimSpace(ts)
	if len(ts) >= 19 {
		return strings.Replace(ts[:19], "T", " ", 1)
	}
	return ts
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	var keepFile bool
	cmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a saved recording from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveRecordingID(cmd, ctx, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Remove(id, keepFile)
				if err != nil {
					return err
				}
				verb := "Removed"
				if keepFile {
					verb = "Forgot"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, resp.Recording.Path)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&keepFile, "keep-file", false, "Keep the file on disk")
	return cmd
}

// resolveRecordingID expands the short IDs printed by list.
func resolveRecordingID(cmd *cobra.Command, ctx *commandContext, prefix string) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("recording id is required")
	}
	items, err := daemonctl.ListRecordings(cmd.Context(), ctx.configValue(), 0)
	if err != nil {
		return "", err
	}
	var matches []string
	for _, item := range items {
		if item.ID == prefix {
			return item.ID, nil
		}
		if strings.HasPrefix(item.ID, prefix) {
			matches = append(matches, item.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no recording matches %q", prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%q matches %d recordings; use more characters", prefix, len(matches))
	}
}
