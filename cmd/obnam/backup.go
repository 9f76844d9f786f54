package main

import (
	"context"
	"fmt"
	"os"

	"obnam-go/internal/client"

	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Run one backup pass over the configured roots",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}

		result, err := engine.Backup(context.Background())
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}

		fmt.Printf("Generation: %s\n", result.GenerationID)
		fmt.Printf("Files discovered: %d, backed up: %d\n", result.Counters.FilesDiscovered, result.Counters.FilesBackedUp)
		fmt.Printf("Chunks uploaded: %d, reused: %d\n", result.Counters.ChunksUploaded, result.Counters.ChunksReused)

		for _, w := range result.Warnings {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w.Error())
		}

		// A newly discovered CACHEDIR.TAG doesn't fail the run, but it
		// does make `backup` exit non-zero once it has otherwise
		// completed.
		if len(result.NewCacheTags) > 0 {
			for _, tag := range result.NewCacheTags {
				fmt.Fprintf(os.Stderr, "new cache tag discovered: %s\n", tag)
			}
			return fmt.Errorf("backup completed with %d new cache tag(s) discovered", len(result.NewCacheTags))
		}
		return nil
	},
}
