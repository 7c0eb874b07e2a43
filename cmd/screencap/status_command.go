package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"screencap/internal/daemonctl"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, session and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.configValue(), 5)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, snap)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			section := func(title string, lines []string) {
				for _, line := range renderSectionHeader(title, colorize) {
					fmt.Fprintln(stdout, line)
				}
				for _, line := range lines {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout)
			}

			section("Daemon", daemonLines(snap.StatusResponse, snap.Reachable, colorize))
			if snap.Reachable {
				section("Session", sessionLines(snap.Session, colorize))
			}
			section("Dependencies", dependencyLines(snap.Dependencies, snap.DependencySummary, colorize))
			section("Paths", checkLines(snap.Checks, colorize))

			if len(snap.Recent) > 0 {
				for _, line := range renderSectionHeader("Recent Recordings", colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprint(stdout, renderTable(
					[]string{"ID", "Created", "Kind", "Duration", "File"},
					recentRows(snap),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				fmt.Fprintln(stdout)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func recentRows(snap *daemonctl.StatusSnapshot) [][]string {
	full := recordingRows(snap.Recent)
	rows := make([][]string, 0, len(full))
	for _, row := range full {
		rows = append(rows, []string{row[0], row[1], row[2], row[3], row[6]})
	}
	return rows
}
