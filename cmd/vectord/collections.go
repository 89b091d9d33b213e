package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	createModel       string
	createDescription string
)

var createCmd = &cobra.Command{
	Use:   "create <collection>",
	Short: "Create a collection pinned to an embedding model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		meta, err := a.manager.Create(cmd.Context(), args[0], createModel, createDescription)
		if err != nil {
			return err
		}
		fmt.Printf("created collection %q (model %s, %dD)\n", meta.Name, meta.EmbeddingModel, meta.Dimension)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List collections with real document and chunk counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		summaries, err := a.manager.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("no collections")
			return nil
		}
		for _, s := range summaries {
			fmt.Printf("%s\tmodel=%s\tdim=%d\tdocuments=%d\tchunks=%d\n",
				s.Name, s.EmbeddingModel, s.Dimension, s.DocumentCount, s.ChunkCount)
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <collection>",
	Short: "Delete a collection and its stored original files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		deleted, err := a.manager.Delete(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("deleted collection %q (%d stored files removed)\n", args[0], deleted)
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info <collection>",
	Short: "Show a collection's metadata record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		meta, err := a.manager.GetCollectionInfo(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("name:        %s\n", meta.Name)
		fmt.Printf("model:       %s\n", meta.EmbeddingModel)
		fmt.Printf("dimension:   %d\n", meta.Dimension)
		fmt.Printf("description: %s\n", meta.Description)
		fmt.Printf("documents:   %d (cached)\n", meta.DocumentCount)
		fmt.Printf("created:     %s\n", meta.CreatedAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

var checkModel string

var checkCmd = &cobra.Command{
	Use:   "check <collection>",
	Short: "Check a collection's dimension against the configured model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		compat, err := a.manager.CheckCompatibility(cmd.Context(), args[0], checkModel)
		if err != nil {
			return err
		}
		fmt.Println(compat.Detail)
		if !compat.Compatible {
			return fmt.Errorf("collection %q is incompatible, run resync or recreate it", args[0])
		}
		return nil
	},
}

var resyncCmd = &cobra.Command{
	Use:   "resync <collection>",
	Short: "Rewrite a collection's declared dimension to the configured value",
	Long: `Resync rewrites the collection's declared dimension to the model's
current configured value. This is a metadata correction only: vectors
embedded at the old dimension are not re-embedded and remain inconsistent
until the collection's documents are inserted again.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.manager.Resync(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("collection %q resynced: %dD -> %dD\n", args[0], result.OldDimension, result.NewDimension)
		return nil
	},
}

var recountCmd = &cobra.Command{
	Use:   "recount <collection>",
	Short: "Recalculate a collection's cached document counter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		count, err := a.manager.Recount(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("collection %q counter set to %d\n", args[0], count)
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&createModel, "model", "", "embedding model id (default from config)")
	createCmd.Flags().StringVar(&createDescription, "description", "", "collection description")
	checkCmd.Flags().StringVar(&checkModel, "model", "", "model id to check against (default: the collection's)")
}
