package main

import (
	"fmt"
	"os"

	"obnam-go/internal/client"
	"obnam-go/internal/crypto"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	initKeyFile            string
	initInsecurePassphrase string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Derive and store encryption keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		keyFile := initKeyFile
		if keyFile == "" {
			defaults, err := client.GetDefaults()
			if err != nil {
				return fmt.Errorf("getting defaults: %w", err)
			}
			keyFile = defaults.KeyFile
		}

		passphrase := initInsecurePassphrase
		if passphrase == "" {
			var err error
			passphrase, err = promptPassphrase()
			if err != nil {
				return err
			}
		}

		if _, err := crypto.Init(keyFile, passphrase); err != nil {
			return fmt.Errorf("initializing keys: %w", err)
		}

		fmt.Printf("Keys initialized at %s\n", keyFile)
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initKeyFile, "key-file", "", "path to write the derived key file (default: $OBNAM_KEY_FILE or ~/.config/obnam/keys.toml)")
	initCmd.Flags().StringVar(&initInsecurePassphrase, "insecure-passphrase", "", "passphrase to use instead of prompting (testing only)")
}

// promptPassphrase reads a passphrase twice from the controlling
// terminal without echoing it, refusing to continue if the two
// entries don't match.
func promptPassphrase() (string, error) {
	fmt.Fprint(os.Stderr, "Passphrase: ")
	first, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}

	fmt.Fprint(os.Stderr, "Confirm passphrase: ")
	second, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}

	if string(first) != string(second) {
		return "", fmt.Errorf("passphrases did not match")
	}
	return string(first), nil
}
