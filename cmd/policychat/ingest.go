package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/flemzord/policychat/internal/retrieval"
	"github.com/spf13/cobra"
)

func ingestCmd(flags *globalFlags) *cobra.Command {
	var size, overlap int
	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Chunk policy documents and add them to the retriever index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := flags.openHeadless(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()

			idx, ok := rt.Retriever.(retrieval.Indexer)
			if !ok {
				return errors.New("the configured retriever does not support ingestion")
			}
			_, err = ingestFiles(cmd.Context(), idx, args, size, overlap, cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().IntVar(&size, "chunk-size", retrieval.DefaultChunkSize, "Words per chunk")
	cmd.Flags().IntVar(&overlap, "chunk-overlap", retrieval.DefaultChunkOverlap, "Words shared by consecutive chunks")
	return cmd
}

// ingestFiles indexes every file and reports the resulting corpus size.
// It returns the number of chunks added.
func ingestFiles(ctx context.Context, idx retrieval.Indexer, paths []string, size, overlap int, out io.Writer) (int, error) {
	added := 0
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return added, err
		}
		docs := retrieval.Documents(filepath.Base(path), string(data), size, overlap)
		if len(docs) == 0 {
			fmt.Fprintf(out, "%s: empty, skipped\n", path)
			continue
		}
		if err := idx.Index(ctx, docs); err != nil {
			return added, fmt.Errorf("index %s: %w", path, err)
		}
		added += len(docs)
		fmt.Fprintf(out, "%s: %d chunks\n", path, len(docs))
	}

	total, err := idx.Count(ctx)
	if err != nil {
		return added, err
	}
	fmt.Fprintf(out, "Indexed %d chunks (%d in index)\n", added, total)
	return added, nil
}
