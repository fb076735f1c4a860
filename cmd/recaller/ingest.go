package main

import (
	"fmt"
	"os"

	"github.com/siherrmann/recaller/core/ingest"
	"github.com/spf13/cobra"
)

var (
	ingestLabels []string
	ingestWipe   bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Bulk-load a directory of categorized text files into the long-term store",
	Long: "Walks dir expecting one sub-directory per category with .txt files inside. " +
		"Every loaded row is permanent (expiration 0).",
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringSliceVar(&ingestLabels, "labels", nil, "Only keep entities with these labels (e.g. ORG,LOC)")
	ingestCmd.Flags().BoolVar(&ingestWipe, "wipe", false, "Wipe the long-term store before loading")
}

func runIngest(cmd *cobra.Command, args []string) error {
	r, err := openRecaller()
	if err != nil {
		return err
	}
	defer r.Close()

	if err := r.UseDefaultPipeline(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: bundled models unavailable (%v), loading documents without entities or embeddings\n", err)
	}

	ctx := cmd.Context()

	if ingestWipe {
		if err := r.LongTerm.Maintenance.WipeStore(ctx); err != nil {
			return fmt.Errorf("wipe long-term store: %w", err)
		}
		fmt.Fprintln(os.Stderr, "wiped long-term store")
	}

	ingestor, err := ingest.NewIngestor(r.LongTerm, r.Pipeline, nil)
	if err != nil {
		return err
	}
	ingestor.SetAllowedLabels(ingestLabels)

	result, err := ingestor.IngestDirectory(ctx, args[0])
	if result != nil {
		fmt.Printf("loaded %d documents, %d paragraphs, %d entities, %d mentions\n",
			result.Documents, result.Paragraphs, result.Entities, result.Mentions)
	}
	return err
}
