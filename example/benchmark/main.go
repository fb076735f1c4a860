package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/siherrmann/recaller"
	"github.com/siherrmann/recaller/core/pipeline"
	"github.com/siherrmann/recaller/core/retrieval"
	"github.com/siherrmann/recaller/helper"
	"github.com/siherrmann/recaller/model"
)

// Compares three retrieval paths per iteration:
//
//  1. LT      - the question goes straight to the long-term store (no cache)
//  2. ST-cold - working set is flushed first, Ask pays for the promotion
//  3. ST-warm - runs right after the cold pass, Ask reads the warm working set
const (
	runs      = 20
	topK      = 5
	documents = 40
	question1 = "Tell me about the connection between Aurora Biotech and Helsinki."
	question2 = "What did Aurora Biotech announce recently?"
)

var (
	orgKey = model.EntityKey{Name: "aurora biotech", Label: "ORG"}
	locKey = model.EntityKey{Name: "helsinki", Label: "LOC"}
)

func keywordExtractor(text string) ([]model.EntityKey, error) {
	keys := []model.EntityKey{}
	lowered := strings.ToLower(text)
	for _, candidate := range []model.EntityKey{orgKey, locKey} {
		if strings.Contains(lowered, candidate.Name) {
			keys = append(keys, candidate)
		}
	}
	return keys, nil
}

// seed loads a corpus where the organisation appears in every document and
// the location only in every fourth one.
func seed(ctx context.Context, r *recaller.Recaller) error {
	for _, key := range []model.EntityKey{orgKey, locKey} {
		if err := r.LongTerm.Entities.UpsertEntity(ctx, &model.Entity{ID: key.ID(), Name: key.Name, Label: key.Label}); err != nil {
			return err
		}
	}

	for i := 0; i < documents; i++ {
		documentID := fmt.Sprintf("report/quarterly_%02d", i)
		paragraphs := []string{
			fmt.Sprintf("Aurora Biotech published quarterly report number %d.", i),
			"The trial results exceeded projections across all cohorts.",
			"Operating costs stayed flat compared to the previous quarter.",
		}
		document := &model.Document{ID: documentID, Title: fmt.Sprintf("Quarterly Report %d", i), Content: strings.Join(paragraphs, "\n\n"), Category: "report"}
		if err := r.LongTerm.Documents.UpsertDocument(ctx, document); err != nil {
			return err
		}
		for index, text := range paragraphs {
			paragraph := &model.Paragraph{ID: model.ParagraphID(documentID, index), DocumentID: documentID, Text: text, Index: index}
			if err := r.LongTerm.Paragraphs.UpsertParagraph(ctx, paragraph); err != nil {
				return err
			}
			if err := r.LongTerm.Paragraphs.UpsertPartOf(ctx, &model.PartOf{ParagraphID: paragraph.ID, DocumentID: documentID}); err != nil {
				return err
			}
		}
		if err := r.LongTerm.Mentions.UpsertMention(ctx, &model.Mention{EntityID: orgKey.ID(), TargetKind: model.TargetParagraph, TargetID: model.ParagraphID(documentID, 0)}); err != nil {
			return err
		}
		if i%4 == 0 {
			if err := r.LongTerm.Mentions.UpsertMention(ctx, &model.Mention{EntityID: locKey.ID(), TargetKind: model.TargetParagraph, TargetID: model.ParagraphID(documentID, 1)}); err != nil {
				return err
			}
		}
	}
	return nil
}

func averageMillis(samples []time.Duration) float64 {
	if len(samples) == 0 {
		return 0
	}
	var total time.Duration
	for _, sample := range samples {
		total += sample
	}
	return float64(total.Nanoseconds()) / float64(len(samples)) / 1e6
}

func main() {
	ctx := context.Background()

	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(ctx)

	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	config := model.DefaultRecallerConfig()
	config.LongTerm = dbConfig.WithDatabase("recaller_longterm")
	config.ShortTerm = dbConfig.WithDatabase("recaller_shortterm")
	config.SweepInterval = 0
	config.CommitInterval = 0

	r, err := recaller.NewRecaller(config)
	if err != nil {
		log.Fatalf("Failed to create recaller: %v", err)
	}
	defer r.Close()

	processing := pipeline.NewPipeline(nil)
	processing.SetExtractor(keywordExtractor)
	r.SetPipeline(processing)

	fmt.Printf("Seeding %d documents...\n", documents)
	if err := seed(ctx, r); err != nil {
		log.Fatalf("Failed to seed corpus: %v", err)
	}

	// Long-term baseline reads bypass the cache entirely.
	ltEngine, err := retrieval.NewEngine(r.LongTerm)
	if err != nil {
		log.Fatalf("Failed to create long-term engine: %v", err)
	}
	keys, err := keywordExtractor(question1)
	if err != nil || len(keys) == 0 {
		log.Fatalf("Failed to extract benchmark entities: %v", err)
	}

	var ltSamples, coldSamples, warmSamples []time.Duration

	for i := 1; i <= runs; i++ {
		fmt.Printf("\n=== Iteration %d/%d ===\n", i, runs)

		// 1. Long-term baseline
		start := time.Now()
		if _, err := ltEngine.Fetch(ctx, keys, helper.NowMillis(), topK); err != nil {
			log.Fatalf("Long-term fetch failed: %v", err)
		}
		elapsed := time.Since(start)
		ltSamples = append(ltSamples, elapsed)
		fmt.Printf("[LT]      %9.3f ms\n", float64(elapsed.Nanoseconds())/1e6)

		// 2. Short-term cold: empty working set, Ask promotes then fetches
		if err := r.FlushShortTerm(ctx); err != nil {
			log.Fatalf("Flush failed: %v", err)
		}
		session := r.NewSession()

		start = time.Now()
		if _, err := r.Ask(ctx, session, question1, topK); err != nil {
			log.Fatalf("Cold ask failed: %v", err)
		}
		elapsed = time.Since(start)
		coldSamples = append(coldSamples, elapsed)
		fmt.Printf("[ST-cold] %9.3f ms\n", float64(elapsed.Nanoseconds())/1e6)

		// 3. Short-term warm: same session, promotion already done
		start = time.Now()
		if _, err := r.Ask(ctx, session, question2, topK); err != nil {
			log.Fatalf("Warm ask failed: %v", err)
		}
		elapsed = time.Since(start)
		warmSamples = append(warmSamples, elapsed)
		fmt.Printf("[ST-warm] %9.3f ms\n", float64(elapsed.Nanoseconds())/1e6)
	}

	ltAvg := averageMillis(ltSamples)
	coldAvg := averageMillis(coldSamples)
	warmAvg := averageMillis(warmSamples)

	fmt.Printf("\n-------- Average over %d runs --------\n", runs)
	fmt.Printf("Long-term : %10.3f ms\n", ltAvg)
	fmt.Printf("ST-cold   : %10.3f ms\n", coldAvg)
	fmt.Printf("ST-warm   : %10.3f ms\n", warmAvg)

	if coldAvg > 0 && warmAvg > 0 {
		fmt.Println("\nSpeed-ups:")
		fmt.Printf("  LT      -> ST-warm : %.2fx\n", ltAvg/warmAvg)
		fmt.Printf("  ST-cold -> ST-warm : %.2fx\n", coldAvg/warmAvg)
	}
	fmt.Println("--------------------------------------")
}
