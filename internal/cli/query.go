package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"hybridrag/internal/usecase"
)

var (
	queryText       string
	queryTopK       int
	queryAlpha      float64
	queryDeadlineMS int
	queryJSON       bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search the indexed corpus",
	Long: `Search using hybrid retrieval: dense and sparse results are fused with a
weighted score combination and re-ranked with the configured cross-encoder.

Examples:
  hybridrag query -q "transformer attention"
  hybridrag query -q "index rebuild" --top-k 5 --alpha 0.7 --json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().Float64Var(&queryAlpha, "alpha", -1, "dense weight in [0,1] (default from config)")
	queryCmd.Flags().IntVar(&queryDeadlineMS, "deadline-ms", 0, "query budget; reranking is skipped once it passes")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	req := usecase.SearchRequest{
		Query: queryText,
		TopK:  queryTopK,
	}
	if queryAlpha >= 0 {
		req.Alpha = &queryAlpha
	}
	if queryDeadlineMS > 0 {
		req.Deadline = time.Duration(queryDeadlineMS) * time.Millisecond
	}

	resp, err := engine.Query(context.Background(), req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if queryJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	if resp.NoDocuments {
		fmt.Println("No documents ingested yet. Run 'hybridrag ingest' first.")
		return nil
	}
	if resp.Stale {
		fmt.Println("note: served from the pre-rebuild index (rebuild in progress)")
	}
	if len(resp.Results) == 0 {
		fmt.Println("No matches.")
		return nil
	}

	for i, r := range resp.Results {
		fmt.Printf("%2d. [%.3f] %s (doc %s", i+1, r.Score, r.ChunkID, r.DocumentID)
		if r.Page > 0 {
			fmt.Printf(", page %d", r.Page)
		}
		fmt.Println(")")

		text := r.Text
		if len(text) > 200 {
			text = text[:200] + "..."
		}
		fmt.Printf("    %s\n", text)
	}

	fmt.Printf("\n%d results in %s (reranked: %v)\n", len(resp.Results), resp.Took.Round(time.Millisecond), resp.Reranked)
	return nil
}
