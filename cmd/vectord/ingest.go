package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/plnlabs/vectord/internal/chunker"
	"github.com/plnlabs/vectord/internal/collection"
	"github.com/plnlabs/vectord/internal/logging"
)

var ingestModel string

var ingestCmd = &cobra.Command{
	Use:   "ingest <collection> <file>...",
	Short: "Chunk, embed, and insert documents into a collection",
	Long: `Ingest reads each file, stores the original in object storage under the
collection's prefix, splits the text into overlapping chunks, embeds them
with the collection's model, and upserts them into the index.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := logging.ContextWithRequestID(cmd.Context(), uuid.NewString())
		name := args[0]

		splitter, err := chunker.New(a.chunker.size, a.chunker.overlap)
		if err != nil {
			return err
		}

		if a.blobs != nil {
			if err := a.blobs.EnsureBucket(ctx); err != nil {
				return err
			}
		}

		totalChunks := 0
		for _, path := range args[1:] {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			fileName := filepath.Base(path)

			// The original upload is advisory. The index is the source of
			// truth, so a storage failure does not abort the ingest.
			source := ""
			if a.blobs != nil {
				source, err = a.blobs.Upload(ctx, name, fileName, bytes.NewReader(data), int64(len(data)), "application/octet-stream")
				if err != nil {
					a.logger.Warn(ctx, "failed to store original file",
						zap.String("file", fileName),
						zap.Error(err),
					)
					source = ""
				}
			}

			pieces := splitter.Split(string(data))
			if len(pieces) == 0 {
				fmt.Printf("%s: no text to ingest, skipped\n", fileName)
				continue
			}

			chunks := make([]collection.Chunk, len(pieces))
			for i, piece := range pieces {
				chunks[i] = collection.Chunk{
					Content:    piece,
					ChunkIndex: i,
					FileName:   fileName,
					Source:     source,
				}
			}

			inserted, err := a.manager.Insert(ctx, name, chunks, ingestModel)
			if err != nil {
				return fmt.Errorf("%s: inserted %d of %d chunks: %w", fileName, inserted, len(chunks), err)
			}
			fmt.Printf("%s: %d chunks inserted\n", fileName, inserted)
			totalChunks += inserted
		}

		fmt.Printf("ingested %d files, %d chunks into %q\n", len(args)-1, totalChunks, name)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestModel, "model", "", "embedding model id (default: the collection's)")
}
