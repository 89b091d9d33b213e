// Package main implements the vectord CLI for managing vector document
// collections: lifecycle, ingest, and similarity search.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/plnlabs/vectord/internal/blobstore"
	"github.com/plnlabs/vectord/internal/collection"
	"github.com/plnlabs/vectord/internal/config"
	"github.com/plnlabs/vectord/internal/embeddings"
	"github.com/plnlabs/vectord/internal/logging"
	"github.com/plnlabs/vectord/internal/qdrant"
	"github.com/plnlabs/vectord/internal/textsafety"
)

var (
	// configPath is the optional YAML config file; environment variables
	// override it.
	configPath string

	// version information (set via ldflags during build)
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vectord",
	Short: "Manage vector document collections",
	Long: `vectord manages named vector collections backed by Qdrant: it creates
collections pinned to an embedding model, ingests and chunks documents,
runs similarity searches, and keeps per-collection metadata consistent
with the configured model dimensions.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(resyncCmd)
	rootCmd.AddCommand(recountCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(documentsCmd)
}

// app wires together the configured clients and the collection manager.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	index   *qdrant.GRPCClient
	blobs   *blobstore.Store
	chunker *chunkerSettings
	manager *collection.Manager
}

type chunkerSettings struct {
	size    int
	overlap int
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	index, err := qdrant.NewGRPCClient(&qdrant.ClientConfig{
		Host:           cfg.Qdrant.Host,
		Port:           cfg.Qdrant.Port,
		UseTLS:         cfg.Qdrant.UseTLS,
		APIKey:         cfg.Qdrant.APIKey,
		RequestTimeout: time.Duration(cfg.Qdrant.RequestTimeoutSeconds) * time.Second,
		RetryAttempts:  cfg.Qdrant.MaxRetries,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	registry, err := embeddings.NewRegistry(cfg.Embeddings.DefaultModel, registryModels(cfg.Embeddings.Models))
	if err != nil {
		return nil, fmt.Errorf("building model registry: %w", err)
	}

	guard := textsafety.NewGuard(logger)
	factory := embeddings.NewFactory(registry, guard, logger,
		time.Duration(cfg.Embeddings.RequestTimeoutSeconds)*time.Second)

	// Object storage is optional. Without it, ingest skips the original
	// upload and delete skips the blob cascade.
	var blobs *blobstore.Store
	var managerBlobs collection.Blobs
	blobs, err = blobstore.New(blobstore.Config{
		Endpoint:  cfg.MinIO.Endpoint,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		UseSSL:    cfg.MinIO.UseSSL,
	}, logger)
	if err != nil {
		logger.Warn(context.Background(), "object storage unavailable, continuing without it", zap.Error(err))
		blobs = nil
	} else {
		managerBlobs = blobs
	}

	manager := collection.NewManager(index, registry, factory, managerBlobs, guard, logger)

	return &app{
		cfg:    cfg,
		logger: logger,
		index:  index,
		blobs:  blobs,
		chunker: &chunkerSettings{
			size:    cfg.Chunking.Size,
			overlap: cfg.Chunking.Overlap,
		},
		manager: manager,
	}, nil
}

func (a *app) Close() {
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.logger.Warn(context.Background(), "closing qdrant client", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func registryModels(models map[string]config.ModelConfig) map[string]embeddings.ModelConfig {
	out := make(map[string]embeddings.ModelConfig, len(models))
	for id, m := range models {
		out[id] = embeddings.ModelConfig{
			Name:      m.Name,
			Provider:  m.Provider,
			Model:     m.Model,
			Dimension: m.Dimension,
			BaseURL:   m.BaseURL,
			APIKeyEnv: m.APIKeyEnv,
		}
	}
	return out
}
