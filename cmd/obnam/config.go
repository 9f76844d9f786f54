package main

import (
	"encoding/json"
	"fmt"
	"os"

	"obnam-go/internal/client"
	"obnam-go/internal/config"
	"obnam-go/internal/crypto"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		cfg, err := config.ReadFromFile(path)
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	},
}

var configExportRecoveryCmd = &cobra.Command{
	Use:   "export-recovery <path>",
	Short: "Write an age-encrypted copy of the local key file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := client.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}

		passphrase, _ := cmd.Flags().GetString("passphrase")
		if passphrase == "" {
			passphrase, err = promptPassphrase()
			if err != nil {
				return err
			}
		}

		if err := crypto.ExportRecovery(defaults.KeyFile, args[0], passphrase); err != nil {
			return fmt.Errorf("exporting recovery file: %w", err)
		}
		fmt.Printf("Recovery file written to %s\n", args[0])
		return nil
	},
}

var configImportRecoveryCmd = &cobra.Command{
	Use:   "import-recovery <path>",
	Short: "Restore a key file from an age-encrypted recovery file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := client.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}

		fmt.Fprint(os.Stderr, "Recovery passphrase: ")
		passphrase, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}

		if err := crypto.ImportRecovery(args[0], defaults.KeyFile, string(passphrase)); err != nil {
			return fmt.Errorf("importing recovery file: %w", err)
		}
		fmt.Printf("Key file restored to %s\n", defaults.KeyFile)
		return nil
	},
}
