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

// Two small permanent documents seeded into the long-term store.
var knowledge = []struct {
	id, title, category string
	paragraphs          []string
	entities            []model.EntityKey
}{
	{
		id:       "news/nimbus_expansion",
		title:    "Nimbus Analytics Expands",
		category: "news",
		paragraphs: []string{
			"Nimbus Analytics announced a new research hub in Toronto this week.",
			"The company plans to double its engineering staff within two years.",
		},
		entities: []model.EntityKey{
			{Name: "nimbus analytics", Label: "ORG"},
			{Name: "toronto", Label: "LOC"},
		},
	},
	{
		id:       "news/toronto_transit",
		title:    "Toronto Transit Upgrade",
		category: "news",
		paragraphs: []string{
			"Toronto approved a major upgrade of its downtown transit lines.",
		},
		entities: []model.EntityKey{
			{Name: "toronto", Label: "LOC"},
		},
	},
}

// keywordExtractor is a toy stand-in for the bundled NER model. Swap in
// UseDefaultPipeline to run with the real one.
func keywordExtractor(text string) ([]model.EntityKey, error) {
	keys := []model.EntityKey{}
	lowered := strings.ToLower(text)
	for _, candidate := range []model.EntityKey{
		{Name: "nimbus analytics", Label: "ORG"},
		{Name: "toronto", Label: "LOC"},
	} {
		if strings.Contains(lowered, candidate.Name) {
			keys = append(keys, candidate)
		}
	}
	return keys, nil
}

func seed(ctx context.Context, r *recaller.Recaller) error {
	for _, doc := range knowledge {
		document := &model.Document{ID: doc.id, Title: doc.title, Content: strings.Join(doc.paragraphs, "\n\n"), Category: doc.category}
		if err := r.LongTerm.Documents.UpsertDocument(ctx, document); err != nil {
			return err
		}
		for index, text := range doc.paragraphs {
			paragraph := &model.Paragraph{ID: model.ParagraphID(doc.id, index), DocumentID: doc.id, Text: text, Index: index}
			if err := r.LongTerm.Paragraphs.UpsertParagraph(ctx, paragraph); err != nil {
				return err
			}
			if err := r.LongTerm.Paragraphs.UpsertPartOf(ctx, &model.PartOf{ParagraphID: paragraph.ID, DocumentID: doc.id}); err != nil {
				return err
			}
		}
		for _, key := range doc.entities {
			if err := r.LongTerm.Entities.UpsertEntity(ctx, &model.Entity{ID: key.ID(), Name: key.Name, Label: key.Label}); err != nil {
				return err
			}
			for index := range doc.paragraphs {
				mention := &model.Mention{EntityID: key.ID(), TargetKind: model.TargetParagraph, TargetID: model.ParagraphID(doc.id, index)}
				if err := r.LongTerm.Mentions.UpsertMention(ctx, mention); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func main() {
	ctx := context.Background()

	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(ctx)

	// Both stores share the container, each in its own database
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

	r, err := recaller.NewRecaller(config)
	if err != nil {
		log.Fatalf("Failed to create recaller: %v", err)
	}
	defer r.Close()

	processing := pipeline.NewPipeline(nil)
	processing.SetExtractor(keywordExtractor)
	r.SetPipeline(processing)

	fmt.Println("Seeding long-term knowledge...")
	if err := seed(ctx, r); err != nil {
		log.Fatalf("Failed to seed knowledge: %v", err)
	}

	// First question: promotes the matching sub-graphs into the working set
	session := r.NewSession()
	question := "What is Nimbus Analytics planning in Toronto?"
	fmt.Printf("\nAsking: %s\n", question)

	result, err := r.Ask(ctx, session, question, 5)
	if err != nil {
		log.Fatalf("Failed to ask: %v", err)
	}

	fmt.Printf("\nRecognized %d entities:\n", len(result.Entities))
	for _, key := range result.Entities {
		fmt.Printf("  %s (%s)\n", key.Name, key.Label)
	}

	fmt.Printf("\nFound %d paragraphs:\n", len(result.Paragraphs))
	for i, paragraph := range result.Paragraphs {
		fmt.Printf("\n--- Result %d ---\n", i+1)
		fmt.Printf("Document: %s (#%d)\n", paragraph.DocumentTitle, paragraph.Index)
		fmt.Printf("Matches: %d\n", paragraph.MatchCount)
		fmt.Printf("Text: %s\n", paragraph.Text)
	}

	// Second question: the session remembers handled entities, so this one
	// skips promotion and reads the warm working set directly.
	followUp := "Did Toronto approve the transit upgrade?"
	fmt.Printf("\nAsking again (warm): %s\n", followUp)

	result, err = r.Ask(ctx, session, followUp, 5)
	if err != nil {
		log.Fatalf("Failed to ask: %v", err)
	}
	fmt.Printf("Found %d paragraphs without touching the long-term store again.\n", len(result.Paragraphs))

	fmt.Println("\nBasic example completed successfully!")
}
