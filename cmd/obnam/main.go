// Command obnam is the backup client: init, backup, list, restore, and
// a handful of diagnostic subcommands built on internal/client.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"obnam-go/internal/client"
	"obnam-go/internal/config"
	"obnam-go/internal/logging"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "obnam",
	Short: "Deduplicating, encrypted backups",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "path to client configuration file (default: $OBNAM_CONFIG_PATH or ~/.config/obnam.toml)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(listFilesCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(listBackupVersionsCmd)
	rootCmd.AddCommand(genInfoCmd)
	rootCmd.AddCommand(chunkifyCmd)
	rootCmd.AddCommand(encryptChunkCmd)
	rootCmd.AddCommand(decryptChunkCmd)
	rootCmd.AddCommand(getChunkCmd)
	rootCmd.AddCommand(configCmd)

	listBackupVersionsCmd.Flags().Bool("default-only", false, "print only the schema version this build writes by default")
	configExportRecoveryCmd.Flags().String("passphrase", "", "passphrase protecting the recovery file (prompted for if omitted)")
	configCmd.AddCommand(configExportRecoveryCmd)
	configCmd.AddCommand(configImportRecoveryCmd)
}

// resolveConfigPath returns the --config flag if set, else the default
// from client.GetDefaults.
func resolveConfigPath() (string, error) {
	if configFlag != "" {
		return configFlag, nil
	}
	defaults, err := client.GetDefaults()
	if err != nil {
		return "", fmt.Errorf("getting defaults: %w", err)
	}
	return defaults.ConfigPath, nil
}

// newEngine reads the client config and builds a client.Engine.
func newEngine() (*client.Engine, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}

	cfg, err := config.ReadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	logger := logging.NewAdapter(slog.New(logging.NewHandler(os.Stderr, "obnam", slog.LevelInfo)))
	return client.NewEngine(cfg, logger)
}
