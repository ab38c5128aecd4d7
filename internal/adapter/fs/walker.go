package fs

import (
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// Walker locates chunk files under a root directory using doublestar glob
// patterns. Chunk production itself happens upstream; the walker only finds
// the files the pipeline wrote.
type Walker struct {
	includes []string
	excludes []string
}

func NewWalker(includes, excludes []string) *Walker {
	if len(includes) == 0 {
		includes = []string{"**/*.jsonl"}
	}
	return &Walker{
		includes: includes,
		excludes: excludes,
	}
}

func (w *Walker) Walk(root string) ([]string, error) {
	var files []string

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if info.IsDir() {
			if w.matchesAny(w.excludes, relPath+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if w.matchesAny(w.includes, relPath) && !w.matchesAny(w.excludes, relPath) {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

func (w *Walker) matchesAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}
