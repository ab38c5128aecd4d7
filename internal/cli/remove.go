package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove <document-id>",
	Short: "Remove a document and rebuild the index",
	Long: `Remove all chunks belonging to a document. The dense index has no true
delete, so removal rebuilds both indices from the surviving chunks and swaps
them in atomically; queries keep working against the old index meanwhile.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func init() {
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	docID := args[0]
	fmt.Printf("Removing document %s (rebuilding index)...\n", docID)

	if err := engine.Delete(context.Background(), docID); err != nil {
		return fmt.Errorf("remove failed: %w", err)
	}

	stats, err := engine.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("Done. %d documents, %d chunks remain.\n", stats.TotalDocs, stats.TotalChunks)
	return nil
}
