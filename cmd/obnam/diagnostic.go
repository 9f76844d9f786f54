package main

import (
	"fmt"
	"io"
	"os"

	"obnam-go/internal/chunkerimpl"
	"obnam-go/internal/chunkserver"
	"obnam-go/internal/client"
	"obnam-go/internal/config"
	"obnam-go/internal/crypto"

	"github.com/spf13/cobra"
)

var chunkifyChunkSize int
var chunkifyKind string

var chunkifyCmd = &cobra.Command{
	Use:   "chunkify <files...>",
	Short: "Print the chunk boundaries and content hashes the Chunker would produce",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			if err := chunkifyOne(path); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		}
		return nil
	},
}

func chunkifyOne(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	c, err := newChunkifyChunker(f)
	if err != nil {
		return err
	}

	offset := 0
	for {
		chunk, err := c.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%d\t%d\t%s\n", path, offset, len(chunk.Data), client.Label(chunk.Data))
		offset += len(chunk.Data)
	}
}

func newChunkifyChunker(r io.Reader) (chunkerimpl.Chunker, error) {
	switch config.ChunkerKind(chunkifyKind) {
	case config.ChunkerCDC:
		return chunkerimpl.NewCDCChunker(r, chunkifyChunkSize)
	case config.ChunkerFixed, "":
		return chunkerimpl.NewFixedChunker(r, chunkifyChunkSize)
	default:
		return nil, fmt.Errorf("unknown chunker kind %q", chunkifyKind)
	}
}

func init() {
	chunkifyCmd.Flags().IntVar(&chunkifyChunkSize, "chunk-size", 1<<20, "target chunk size in bytes")
	chunkifyCmd.Flags().StringVar(&chunkifyKind, "chunker-kind", "fixed", "chunker strategy: fixed or cdc")
}

var diagnosticKeyFile string

func loadDiagnosticCodec() (*crypto.Codec, error) {
	keyFile := diagnosticKeyFile
	if keyFile == "" {
		defaults, err := client.GetDefaults()
		if err != nil {
			return nil, fmt.Errorf("getting defaults: %w", err)
		}
		keyFile = defaults.KeyFile
	}

	km, err := crypto.Load(keyFile)
	if err != nil {
		return nil, fmt.Errorf("loading key file: %w", err)
	}
	return crypto.NewCodec(km)
}

var encryptChunkKind string

var encryptChunkCmd = &cobra.Command{
	Use:   "encrypt-chunk",
	Short: "Encrypt stdin as a chunk envelope, writing it to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		codec, err := loadDiagnosticCodec()
		if err != nil {
			return err
		}

		plaintext, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}

		envelope, err := codec.Seal(plaintext, []byte(encryptChunkKind))
		if err != nil {
			return fmt.Errorf("encrypting: %w", err)
		}
		_, err = os.Stdout.Write(envelope)
		return err
	},
}

var decryptChunkKind string

var decryptChunkCmd = &cobra.Command{
	Use:   "decrypt-chunk",
	Short: "Decrypt a chunk envelope from stdin, writing plaintext to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		codec, err := loadDiagnosticCodec()
		if err != nil {
			return err
		}

		envelope, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}

		plaintext, err := codec.Open(envelope, []byte(decryptChunkKind))
		if err != nil {
			return fmt.Errorf("decrypting: %w", err)
		}
		_, err = os.Stdout.Write(plaintext)
		return err
	},
}

var getChunkServerURL string
var getChunkVerifyTLS bool
var getChunkKind string

var getChunkCmd = &cobra.Command{
	Use:   "get-chunk <id>",
	Short: "Fetch and decrypt one chunk by id, writing plaintext to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		codec, err := loadDiagnosticCodec()
		if err != nil {
			return err
		}

		serverURL := getChunkServerURL
		if serverURL == "" {
			path, err := resolveConfigPath()
			if err != nil {
				return err
			}
			cfg, err := config.ReadFromFile(path)
			if err != nil {
				return fmt.Errorf("reading config: %w", err)
			}
			serverURL = cfg.ServerURL
			getChunkVerifyTLS = cfg.VerifyTLSCert()
		}

		server := client.NewServerClient(serverURL, getChunkVerifyTLS)
		meta, body, err := server.Get(chunkserver.ID(args[0]))
		if err != nil {
			return fmt.Errorf("fetching chunk: %w", err)
		}
		defer body.Close()

		envelope, err := io.ReadAll(body)
		if err != nil {
			return fmt.Errorf("reading chunk: %w", err)
		}

		plaintext, err := codec.Open(envelope, []byte(getChunkKind))
		if err != nil {
			return fmt.Errorf("decrypting chunk %s (label %s): %w", args[0], meta.Label, err)
		}

		if got := client.Label(plaintext); got != meta.Label {
			return fmt.Errorf("chunk %s content hash %s does not match its label %s", args[0], got, meta.Label)
		}

		_, err = os.Stdout.Write(plaintext)
		return err
	},
}

func init() {
	for _, cmd := range []*cobra.Command{encryptChunkCmd, decryptChunkCmd, getChunkCmd} {
		cmd.Flags().StringVar(&diagnosticKeyFile, "key-file", "", "path to the key file (default: $OBNAM_KEY_FILE or ~/.config/obnam/keys.toml)")
	}
	encryptChunkCmd.Flags().StringVar(&encryptChunkKind, "kind", "data", "AEAD associated-data tag (data, indexpart, generation, trustroot)")
	decryptChunkCmd.Flags().StringVar(&decryptChunkKind, "kind", "data", "AEAD associated-data tag (data, indexpart, generation, trustroot)")
	getChunkCmd.Flags().StringVar(&getChunkKind, "kind", "data", "AEAD associated-data tag (data, indexpart, generation, trustroot)")
	getChunkCmd.Flags().StringVar(&getChunkServerURL, "server-url", "", "chunk server URL (default: read from config)")
	getChunkCmd.Flags().BoolVar(&getChunkVerifyTLS, "verify-tls-cert", true, "validate the server's TLS certificate")
}
