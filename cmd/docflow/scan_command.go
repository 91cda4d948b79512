package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"docflow/internal/api"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var processNew bool

	cmd := &cobra.Command{
		Use:   "scan <folder-id>",
		Short: "Scan a watch folder for documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid folder id %q", args[0])
			}
			path := fmt.Sprintf("/api/folders/%d/scan", id)
			if processNew {
				path += "?processNew=1"
			}

			var result api.ScanResponse
			if err := ctx.postJSON(path, nil, &result); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"Scanned %d document(s): %d registered, %d queued, %d already known\n",
				result.Total, result.Registered, result.Queued, result.Known)
			return nil
		},
	}

	cmd.Flags().BoolVar(&processNew, "process-new", false, "Queue unrecognized files for processing")
	return cmd
}
