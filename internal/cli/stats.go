package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show corpus statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	stats, err := engine.Stats()
	if err != nil {
		return err
	}

	fmt.Printf("State:           %s\n", engine.State())
	fmt.Printf("Documents:       %d\n", stats.TotalDocs)
	fmt.Printf("Chunks:          %d\n", stats.TotalChunks)
	fmt.Printf("Avg chunk len:   %.1f tokens\n", stats.AvgChunkLen)
	fmt.Printf("Embedding model: %s (dim %d)\n", cfg.Embedding.Model, cfg.Embedding.Dimension)
	return nil
}
