// Package commands is the cobra command tree for the linearreader binary.
package commands

import (
	"fmt"

	"github.com/jra3/linear-reader/internal/config"
	"github.com/jra3/linear-reader/pkg/system"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "linearreader",
	Short: "Serve fast, read-only queries over a local Linear.app cache",
	Long: `linearreader answers entity-oriented queries (listings, lookups, counts,
text search) from an in-memory index built from Linear.app's local on-disk
cache, falling back to the official remote service for anything the local
cache can't answer correctly.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadSystem loads configuration from the environment and config file and
// constructs a system.System, the entry point every subcommand needs.
func loadSystem() (*system.System, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Store.DBPath == "" {
		return nil, fmt.Errorf("no database path configured; set LINEAR_READER_DB_PATH or store.db_path")
	}
	return system.New(cfg)
}
