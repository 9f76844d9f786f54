package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <gen> <dest>",
	Short: "Reconstruct a generation at a destination directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}

		result, err := engine.Restore(context.Background(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}

		fmt.Printf("Restored %d entries from generation %s\n", result.FilesRestored, result.GenerationID)
		for _, w := range result.Warnings {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w.Error())
		}
		return nil
	},
}
