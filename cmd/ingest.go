package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <path>",
		Short: "Index knowledge documents (markdown or plain text)",
		Long: `Ingest chunks, embeds and indexes the given file, or every .md and
.txt file under the given directory. Re-ingesting a file replaces its
previous chunks wholesale.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), args[0])
		},
	}
}

func runIngest(ctx context.Context, path string) error {
	logger := initLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var files []string
	if info.IsDir() {
		err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(p)) {
			case ".md", ".txt":
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("walking %s: %w", path, err)
		}
	} else {
		files = []string{path}
	}
	if len(files) == 0 {
		return fmt.Errorf("no .md or .txt files under %s", path)
	}

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading %s: %w", file, err)
		}

		documentID := documentIDFor(file)
		chunks, err := a.pipeline.IngestKnowledge(ctx, documentID, documentID, string(data))
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", file, err)
		}
		fmt.Printf("%s: %d chunks\n", file, chunks)
	}

	fmt.Printf("ingested %d documents, index now holds %d entries\n", len(files), a.index.Len())
	return nil
}

// documentIDFor derives a stable document identifier from the file name, so
// re-ingesting the same file replaces its chunks.
func documentIDFor(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
