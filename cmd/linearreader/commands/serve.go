package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jra3/linear-reader/internal/record"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve <tool> [json-args]",
	Short: "Dispatch one tool call through the router and print the result",
	Long: `serve resolves a single tool call the way a host process would: it loads
config, builds the system, and routes the named tool through the router's
dispatch table (local snapshot, remote session, or both).`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	sys, err := loadSystem()
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer sys.Close(ctx)

	toolArgs := record.Map{}
	if len(args) == 2 {
		if err := json.Unmarshal([]byte(args[1]), &toolArgs); err != nil {
			return fmt.Errorf("parse json args: %w", err)
		}
	}

	result, err := sys.Router.CallRead(ctx, args[0], toolArgs)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
