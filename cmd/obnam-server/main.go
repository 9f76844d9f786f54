// Command obnam-server runs the chunk server: the append-mostly HTTP
// blob store every obnam client uploads encrypted chunks to.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"obnam-go/internal/chunkserver"
	"obnam-go/internal/logging"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var configPath string

var rootCmd = &cobra.Command{
	Use:   "obnam-server",
	Short: "Chunk server for obnam backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(configPath)
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "/etc/obnam/server.toml", "path to server configuration file")
}

func run(path string) error {
	cfg, err := chunkserver.ReadConfigFile(path)
	if err != nil {
		return fmt.Errorf("loading server config: %w", err)
	}

	handler := logging.NewHandler(os.Stderr, "obnam-server", logging.LevelFromEnv("OBNAM_SERVER_LOG"))
	slogger := slog.New(handler)
	logger := logging.NewAdapter(slogger)

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening chunk store: %w", err)
	}
	defer store.Close()

	server := chunkserver.NewServer(store, logger)

	accessLogger := logrus.New()
	accessLogger.SetOutput(os.Stderr)
	handlerWithAccessLog := chunkserver.AccessLog(accessLogger, server)

	httpServer := &http.Server{
		Addr:    cfg.Address,
		Handler: handlerWithAccessLog,
	}

	slogger.Info("server starting up", "address", cfg.Address, "storage", cfg.Storage.Type)

	if cfg.TLSCert != "" || cfg.TLSKey != "" {
		return httpServer.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
	}
	// TLS is mandatory in production; plain HTTP is only reachable when
	// the operator omits both cert fields.
	return httpServer.ListenAndServe()
}

func openStore(cfg *chunkserver.Config) (chunkserver.Store, error) {
	switch cfg.Storage.Type {
	case "", "filesystem":
		return cfg.NewFilesystemStoreFromConfig()
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.Storage.S3Region))
		if err != nil {
			return nil, fmt.Errorf("loading AWS credentials: %w", err)
		}
		client := s3.NewFromConfig(awsCfg)
		return chunkserver.NewS3Store(client, chunkserver.S3StoreConfig{
			Bucket:    cfg.Storage.S3Bucket,
			Prefix:    cfg.Storage.S3Prefix,
			IndexPath: cfg.Storage.S3IndexPath,
		})
	default:
		return nil, fmt.Errorf("unknown storage.type %q", cfg.Storage.Type)
	}
}
