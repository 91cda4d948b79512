package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"docflow/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, queue, and folder status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var status api.StatusResponse
			if err := ctx.getJSON("/api/status", &status); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Daemon running (pid %d) since %s\n", status.PID,
				status.StartedAt.Local().Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "Database: %s\n", status.DatabasePath)
			state := "idle"
			if status.QueueActive {
				state = "processing"
			}
			fmt.Fprintf(out, "Queue: %d waiting (%s)\n\n", status.QueueDepth, state)

			fmt.Fprintln(out, renderFileCounts(status.Files))
			fmt.Fprintln(out)
			fmt.Fprintln(out, renderFolders(status.Folders))
			return nil
		},
	}
}

func renderFileCounts(counts map[string]int) string {
	statuses := make([]string, 0, len(counts))
	for status := range counts {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)

	rows := make([][]string, 0, len(statuses))
	for _, status := range statuses {
		rows = append(rows, []string{status, strconv.Itoa(counts[status])})
	}
	return renderTable([]string{"Status", "Files"}, rows, []columnAlignment{alignLeft, alignRight})
}

func renderFolders(folders []api.FolderView) string {
	rows := make([][]string, 0, len(folders))
	for _, folder := range folders {
		location := folder.Path
		if folder.Type == "remote" {
			location = fmt.Sprintf("//%s/%s", folder.SMBHost, folder.SMBShare)
			if sub := strings.TrimSpace(folder.Path); sub != "" {
				location += "/" + strings.TrimPrefix(sub, "/")
			}
		}
		state := "inactive"
		switch {
		case folder.Watching:
			state = "watching"
		case folder.Active:
			state = "active"
		}
		note := folder.LastError
		if note == "" && folder.LastFile != "" {
			note = "last: " + folder.LastFile
		}
		rows = append(rows, []string{
			strconv.FormatInt(folder.ID, 10),
			folder.Alias,
			location,
			state,
			note,
		})
	}
	return renderTable(
		[]string{"ID", "Alias", "Location", "State", "Note"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
	)
}
