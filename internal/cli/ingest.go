package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"hybridrag/internal/adapter/fs"
	"hybridrag/internal/domain"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Ingest chunk files into the index",
	Long: `Ingest pre-chunked documents from JSONL files, one chunk record per line:

  {"id": "c1", "document_id": "doc-42", "text": "...", "page": 3}

The id may be omitted; one is generated. Each chunk is embedded (cached by
content hash) and written to both the dense and the sparse index.

Examples:
  hybridrag ingest ./chunks
  hybridrag ingest .`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

// chunkRecord is the on-disk shape produced by the document pipeline.
type chunkRecord struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	SourceType string `json:"source_type"`
	Page       int    `json:"page"`
	Text       string `json:"text"`
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := rootDir
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	walker := fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)
	files, err := walker.Walk(path)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", path, err)
	}
	if len(files) == 0 {
		fmt.Println("No chunk files found.")
		return nil
	}

	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	ctx := context.Background()
	totalIngested := 0
	totalDuplicates := 0
	var warnings []string

	for _, file := range files {
		chunks, err := readChunkFile(file)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", file, err))
			bar.Add(1)
			continue
		}

		result, err := engine.Ingest(ctx, chunks)
		if err != nil {
			return fmt.Errorf("ingest failed for %s: %w", file, err)
		}
		totalIngested += result.ChunksIngested
		totalDuplicates += result.Duplicates
		bar.Add(1)
	}

	fmt.Printf("\nIngest complete:\n")
	fmt.Printf("  Files read:       %d\n", len(files))
	fmt.Printf("  Chunks ingested:  %d\n", totalIngested)
	fmt.Printf("  Duplicates:       %d (skipped)\n", totalDuplicates)

	if len(warnings) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	return nil
}

func readChunkFile(path string) ([]domain.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var chunks []domain.Chunk
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rec chunkRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if rec.Text == "" {
			return nil, fmt.Errorf("line %d: missing text", line)
		}
		if rec.DocumentID == "" {
			return nil, fmt.Errorf("line %d: missing document_id", line)
		}

		chunks = append(chunks, domain.Chunk{
			ID:         rec.ID,
			DocumentID: rec.DocumentID,
			SourceType: rec.SourceType,
			Page:       rec.Page,
			Text:       rec.Text,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return chunks, nil
}
