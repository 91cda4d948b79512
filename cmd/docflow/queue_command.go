package main

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"docflow/internal/api"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var limit int

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "List processed and waiting documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			for _, status := range statuses {
				query.Add("status", status)
			}
			if limit > 0 {
				query.Set("limit", strconv.Itoa(limit))
			}
			path := "/api/files"
			if encoded := query.Encode(); encoded != "" {
				path += "?" + encoded
			}

			var files []api.FileView
			if err := ctx.getJSON(path, &files); err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No documents recorded.")
				return nil
			}

			rows := make([][]string, 0, len(files))
			for _, file := range files {
				name := file.NewFilename
				if name == "" {
					name = file.OriginalFilename
				}
				note := file.ErrorMessage
				if note == "" && file.CompanyName != "" {
					note = file.CompanyName
				}
				rows = append(rows, []string{
					strconv.FormatInt(file.ID, 10),
					name,
					file.Status,
					file.CreatedAt.Local().Format(time.DateTime),
					note,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "File", "Status", "Added", "Note"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum rows to show")
	return cmd
}
