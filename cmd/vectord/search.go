package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	searchTopK      uint64
	searchThreshold float64
)

var searchCmd = &cobra.Command{
	Use:   "search <collection> <query>",
	Short: "Search a collection for similar chunks",
	Long: `Search embeds the query with the collection's model and returns the most
similar chunks. The threshold is a 0 to 1 relevance cutoff compared against
the similarity percentage; results below it are dropped.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		name := args[0]
		query := strings.Join(args[1:], " ")

		results, err := a.manager.Search(cmd.Context(), name, query, searchTopK, searchThreshold)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("no results above threshold")
			return nil
		}
		for i, r := range results {
			fmt.Printf("%d. [%.1f%%] %s (chunk %d)\n", i+1, r.Similarity, r.FileName, r.ChunkIndex)
			fmt.Printf("   %s\n", firstLine(r.Content, 200))
		}
		return nil
	},
}

var documentsCmd = &cobra.Command{
	Use:   "documents <collection>",
	Short: "List a collection's documents with their chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		documents, err := a.manager.ListDocuments(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(documents) == 0 {
			fmt.Println("no documents")
			return nil
		}
		for _, doc := range documents {
			fmt.Printf("%s (%d chunks)\n", doc.FileName, len(doc.Chunks))
			for _, c := range doc.Chunks {
				fmt.Printf("  [%d] %s\n", c.ChunkIndex, firstLine(c.Content, 80))
			}
		}
		return nil
	},
}

// firstLine returns the first line of s truncated to max runes.
func firstLine(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	runes := []rune(s)
	if len(runes) > max {
		return string(runes[:max]) + "..."
	}
	return s
}

func init() {
	searchCmd.Flags().Uint64Var(&searchTopK, "top-k", 5, "maximum number of results")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", 0, "minimum similarity (0 to 1)")
}
