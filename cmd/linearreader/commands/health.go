package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Print merged snapshot and remote session health",
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	sys, err := loadSystem()
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer sys.Close(ctx)

	h := sys.Router.GetHealth()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "snapshot: degraded=%v reason=%q failures=%d last_success=%s\n",
		h.Snapshot.Degraded, h.Snapshot.Reason, h.Snapshot.FailureCount, humanizeTime(h.Snapshot.LastSuccessAt))
	fmt.Fprintf(out, "remote: connected=%v failures=%d last_error=%q\n",
		h.Remote.Connected, h.Remote.FailureCount, h.Remote.LastError)
	if h.CoherenceDeadline.After(time.Now()) {
		fmt.Fprintf(out, "coherence_window: active, closes %s\n", humanize.Time(h.CoherenceDeadline))
	} else {
		fmt.Fprintf(out, "coherence_window: inactive\n")
	}
	return nil
}

func humanizeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}
