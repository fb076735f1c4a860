package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/siherrmann/recaller"
	"github.com/siherrmann/recaller/core/pipeline"
	"github.com/siherrmann/recaller/helper"
	"github.com/siherrmann/recaller/model"
)

// Walks the lifecycle of remembered facts: insert, list, pin, expire,
// validate, sweep and finally commit into the long-term store.
func keywordExtractor(text string) ([]model.EntityKey, error) {
	keys := []model.EntityKey{}
	lowered := strings.ToLower(text)
	for _, candidate := range []model.EntityKey{
		{Name: "atlas freight", Label: "ORG"},
		{Name: "rotterdam", Label: "LOC"},
	} {
		if strings.Contains(lowered, candidate.Name) {
			keys = append(keys, candidate)
		}
	}
	return keys, nil
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
	// Only validated documents may move into the long-term store.
	config.RequireValidated = true

	r, err := recaller.NewRecaller(config)
	if err != nil {
		log.Fatalf("Failed to create recaller: %v", err)
	}
	defer r.Close()

	processing := pipeline.NewPipeline(nil)
	processing.SetExtractor(keywordExtractor)
	r.SetPipeline(processing)

	// Remember three facts in the working set, each with the default TTL.
	facts := []string{
		"Atlas Freight signed a five year lease at the Rotterdam terminal.",
		"The Rotterdam terminal closes for maintenance every January.",
		"Atlas Freight operates a fleet of forty container ships.",
	}
	remembered := make([]*model.RememberedFact, 0, len(facts))
	for _, text := range facts {
		fact, err := r.Remember(ctx, text, r.DefaultTTLMillis())
		if err != nil {
			log.Fatalf("Failed to remember fact: %v", err)
		}
		remembered = append(remembered, fact)
		fmt.Printf("Remembered %s (expires at %d)\n", fact.DocumentID, fact.Expiration)
	}

	summaries, err := r.ListUnexpiredDocuments(ctx)
	if err != nil {
		log.Fatalf("Failed to list documents: %v", err)
	}
	fmt.Printf("\nWorking set holds %d documents:\n", len(summaries))
	for _, summary := range summaries {
		fmt.Printf("  %s | %s | entities: %s\n", summary.ID, summary.Snippet, strings.Join(summary.Entities, ", "))
	}

	// Pin the first fact so no sweep can ever evict it.
	stamped, err := r.PinDocument(ctx, remembered[0].DocumentID)
	if err != nil {
		log.Fatalf("Failed to pin document: %v", err)
	}
	fmt.Printf("\nPinned %s (%d rows stamped permanent)\n", remembered[0].DocumentID, stamped)

	// Force-expire the second fact and sweep it away.
	if _, err := r.ExpireDocument(ctx, remembered[1].DocumentID, 0); err != nil {
		log.Fatalf("Failed to expire document: %v", err)
	}
	relations, nodes, err := r.SweepNow(ctx)
	if err != nil {
		log.Fatalf("Failed to sweep: %v", err)
	}
	fmt.Printf("Expired %s, sweep evicted %d relations and %d nodes\n", remembered[1].DocumentID, relations, nodes)

	// Validate the third fact and commit: only the validated document is
	// eligible, the pinned one stays in the working set.
	if _, err := r.ValidateDocument(ctx, remembered[2].DocumentID, true); err != nil {
		log.Fatalf("Failed to validate document: %v", err)
	}
	committed, err := r.CommitNow(ctx)
	if err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}
	fmt.Printf("\nCommitted %d documents into the long-term store\n", committed)

	if err := r.FlushShortTerm(ctx); err != nil {
		log.Fatalf("Failed to flush working set: %v", err)
	}

	document, err := r.LongTerm.Documents.SelectDocument(ctx, remembered[2].DocumentID)
	if err != nil {
		log.Fatalf("Failed to read committed document: %v", err)
	}
	fmt.Printf("Long-term copy of %s is permanent (expiration %d, validated %t)\n", document.ID, document.Expiration, document.Validated)

	fmt.Println("\nCuration example completed successfully!")
}
