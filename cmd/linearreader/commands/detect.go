package commands

import (
	"context"
	"fmt"

	"github.com/jra3/linear-reader/internal/classify"
	"github.com/jra3/linear-reader/internal/config"
	"github.com/jra3/linear-reader/internal/detect"
	"github.com/jra3/linear-reader/internal/diskstore"
	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run store detection against the configured database and print the store-name to entity-kind map",
	Long: `detect opens the on-disk store directly (bypassing the cache and router)
and runs the same classifier pass the snapshot loader uses, so a store
layout can be inspected without going through the full load/index path.`,
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Store.DBPath == "" {
		return fmt.Errorf("no database path configured; set LINEAR_READER_DB_PATH or store.db_path")
	}

	store, err := diskstore.Open(cfg.Store.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	found, err := detect.New().Detect(ctx, store)
	if err != nil {
		return fmt.Errorf("detect: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, entry := range classify.Order {
		if name, ok := found.SingletonStoreName(entry.Kind); ok {
			fmt.Fprintf(out, "%s\t%s\n", entry.Kind, name)
			continue
		}
		if names := found.MultiStoreNames(entry.Kind); len(names) > 0 {
			fmt.Fprintf(out, "%s\t%v\n", entry.Kind, names)
		}
	}
	return nil
}
