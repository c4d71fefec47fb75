package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AnTengye/rollingquote/service/extract"
)

func newCountCmd() *cobra.Command {
	var parallel int
	cmd := &cobra.Command{
		Use:   "count <file>...",
		Short: "Count the billable words of local documents",
		Long: `Count extracts the text of each file the way uploads are analyzed and
prints its word count. PDFs with almost no text are flagged as likely scans.

Examples:
  quotectl count contract.docx
  quotectl count *.pdf --parallel 8`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCount(cmd, args, parallel)
		},
	}
	cmd.Flags().IntVar(&parallel, "parallel", 4, "Files analyzed at once")
	return cmd
}

type countResult struct {
	words   int
	scanned bool
}

func runCount(cmd *cobra.Command, paths []string, parallel int) error {
	results := make([]countResult, len(paths))

	var g errgroup.Group
	g.SetLimit(max(parallel, 1))
	for i, path := range paths {
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			name := filepath.Base(path)
			text, err := extract.Extract(data, name)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			words := extract.CountWords(text)
			results[i] = countResult{words: words, scanned: extract.LikelyScanned(name, words)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	total := 0
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for i, r := range results {
		note := ""
		if r.scanned {
			note = "likely scanned"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", paths[i], r.words, note)
		total += r.words
	}
	fmt.Fprintf(w, "total\t%d\t\n", total)
	return w.Flush()
}
