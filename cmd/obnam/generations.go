package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"obnam-go/internal/index"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List generation ids",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}

		ids, err := engine.ListGenerations()
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Println("No generations yet.")
			return nil
		}

		for _, id := range ids {
			gen, err := engine.Inspect(id)
			if err != nil {
				return fmt.Errorf("inspecting %s: %w", id, err)
			}
			ended := "in progress"
			if gen.Ended != nil {
				ended = *gen.Ended
			}
			fmt.Printf("%s  %s\n", id, ended)
		}
		return nil
	},
}

var listFilesCmd = &cobra.Command{
	Use:   "list-files <gen>",
	Short: "List paths recorded in a generation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}

		entries, err := engine.ListFiles(context.Background(), args[0])
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Println(formatFileEntry(e))
		}
		return nil
	},
}

func formatFileEntry(e index.FileEntry) string {
	if e.Kind == index.KindSymlink {
		return fmt.Sprintf("%s -> %s", e.Path, e.SymlinkTarget)
	}
	return e.Path
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <alias>",
	Short: "Print the generation id an alias resolves to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}

		id, err := engine.Resolve(args[0])
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <gen>",
	Short: "Print a generation's schema version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}

		gen, err := engine.Inspect(args[0])
		if err != nil {
			return err
		}
		fmt.Println(gen.SchemaVersion.String())
		return nil
	},
}

type genInfo struct {
	SchemaVersion string            `json:"schema_version"`
	IndexParts    []string          `json:"index_parts"`
	Ended         *string           `json:"ended,omitempty"`
	Extras        map[string]string `json:"extras,omitempty"`
}

var genInfoCmd = &cobra.Command{
	Use:   "gen-info <gen>",
	Short: "Print machine-readable metadata about a generation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}

		gen, err := engine.Inspect(args[0])
		if err != nil {
			return err
		}

		info := genInfo{
			SchemaVersion: gen.SchemaVersion.String(),
			IndexParts:    gen.IndexParts,
			Ended:         gen.Ended,
			Extras:        gen.Extras,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	},
}

var listBackupVersionsCmd = &cobra.Command{
	Use:   "list-backup-versions",
	Short: "List schema versions this build understands",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaultOnly, _ := cmd.Flags().GetBool("default-only")
		fmt.Println(index.CurrentSchemaVersion.String())
		if defaultOnly {
			return nil
		}
		// This build only ever writes and reads CurrentSchemaVersion's
		// major line; IsCompatibleWith accepts any minor version up to
		// and including it, so there is nothing further to enumerate.
		return nil
	},
}
