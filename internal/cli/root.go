package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"hybridrag/config"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
)

var rootCmd = &cobra.Command{
	Use:   "hybridrag",
	Short: "Hybrid retrieval engine - dense + sparse search with reranking",
	Long: `hybridrag indexes pre-chunked documents into a dense vector index and a
sparse BM25 index, answers queries by fusing both result sets with a weighted
score combination, and re-ranks the fused candidates with a cross-encoder.

Example usage:
  hybridrag ingest ./chunks          # Ingest chunk files
  hybridrag query -q "vector search" # Search the corpus
  hybridrag remove doc-42            # Remove a document (rebuilds the index)`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./hybridrag.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "data directory (default is current directory)")
}
