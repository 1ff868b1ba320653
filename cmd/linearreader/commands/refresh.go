package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Force-refresh the local snapshot and print the resulting health",
	RunE:  runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	sys, err := loadSystem()
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer sys.Close(ctx)

	h := sys.Router.RefreshLocalCache(ctx)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "snapshot: degraded=%v reason=%q last_success=%s\n",
		h.Snapshot.Degraded, h.Snapshot.Reason, humanizeTime(h.Snapshot.LastSuccessAt))
	return nil
}
