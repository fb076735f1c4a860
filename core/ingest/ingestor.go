package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/siherrmann/recaller/core/pipeline"
	"github.com/siherrmann/recaller/database"
	"github.com/siherrmann/recaller/helper"
	"github.com/siherrmann/recaller/model"
)

// Ingestor walks a directory of plain text files and writes every file as a
// permanent document sub-graph into the authoritative store. Everything is
// stamped with expiration 0, reruns are idempotent upserts.
type Ingestor struct {
	store         *database.Store
	pipeline      *pipeline.Pipeline
	logger        *slog.Logger
	allowedLabels map[string]bool
}

// Result counts what one ingest run wrote. Entities are counted once per
// document, mentions once per edge.
type Result struct {
	Documents  int `json:"documents"`
	Paragraphs int `json:"paragraphs"`
	Entities   int `json:"entities"`
	Mentions   int `json:"mentions"`
}

// NewIngestor creates a new ingestor over the long-term store. A nil
// processing pipeline ingests paragraphs without embeddings or entities.
func NewIngestor(store *database.Store, processing *pipeline.Pipeline, logger *slog.Logger) (*Ingestor, error) {
	if store == nil {
		return nil, helper.NewError("store validation", fmt.Errorf("ingestor needs a store"))
	}
	if processing == nil {
		processing = pipeline.NewPipeline(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		store:    store,
		pipeline: processing,
		logger:   logger,
	}, nil
}

// SetAllowedLabels restricts which entity labels are stored. An empty list
// allows every label the extractor emits.
func (i *Ingestor) SetAllowedLabels(labels []string) {
	if len(labels) == 0 {
		i.allowedLabels = nil
		return
	}
	i.allowedLabels = make(map[string]bool, len(labels))
	for _, label := range labels {
		i.allowedLabels[strings.ToUpper(strings.TrimSpace(label))] = true
	}
}

// IngestDirectory walks root laid out as <category>/<file>.txt and ingests
// every text file. Other files are skipped.
func (i *Ingestor) IngestDirectory(ctx context.Context, root string) (*Result, error) {
	categories, err := os.ReadDir(root)
	if err != nil {
		return nil, helper.NewError("read data directory", err)
	}

	result := &Result{}
	for _, category := range categories {
		if !category.IsDir() {
			continue
		}

		files, err := os.ReadDir(filepath.Join(root, category.Name()))
		if err != nil {
			return result, helper.NewError("read category directory", err)
		}

		i.logger.Info("Ingesting category", slog.String("category", category.Name()))
		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), ".txt") {
				continue
			}
			fileResult, err := i.IngestFile(ctx, filepath.Join(root, category.Name(), file.Name()), category.Name())
			if err != nil {
				return result, err
			}
			result.Documents += fileResult.Documents
			result.Paragraphs += fileResult.Paragraphs
			result.Entities += fileResult.Entities
			result.Mentions += fileResult.Mentions
		}
	}

	i.logger.Info("Ingest finished",
		slog.Int("documents", result.Documents),
		slog.Int("paragraphs", result.Paragraphs),
		slog.Int("entities", result.Entities),
		slog.Int("mentions", result.Mentions),
	)
	return result, nil
}

// IngestFile ingests one text file. The first line becomes the title, the
// rest is split into paragraphs. Extracted entities are linked to both the
// paragraph they appear in and the enclosing document.
func (i *Ingestor) IngestFile(ctx context.Context, filePath string, category string) (*Result, error) {
	provenance := model.Metadata{"source": filePath, "ingested_at": helper.NowMillis()}
	document, err := model.NewDocumentFromFile(filePath, category, provenance)
	if err != nil {
		return nil, helper.NewError("read document file", err)
	}
	// Stable id so reruns update in place instead of duplicating.
	filename := filepath.Base(filePath)
	document.ID = category + "/" + strings.TrimSuffix(filename, filepath.Ext(filename))

	if err := i.store.Documents.UpsertDocument(ctx, document); err != nil {
		return nil, err
	}
	result := &Result{Documents: 1}
	i.logger.Debug("Ingesting document", slog.String("title", document.Title), slog.String("category", category))

	paragraphs, err := i.pipeline.Process(document.Content)
	if err != nil {
		return result, helper.NewError("process document", err)
	}

	seenEntities := make(map[model.EntityKey]bool)
	for _, processed := range paragraphs {
		paragraph := &model.Paragraph{
			ID:         model.ParagraphID(document.ID, processed.Index),
			DocumentID: document.ID,
			Text:       processed.Text,
			Index:      processed.Index,
			Embedding:  processed.Embedding,
		}
		if err := i.store.Paragraphs.UpsertParagraph(ctx, paragraph); err != nil {
			return result, err
		}
		if err := i.store.Paragraphs.UpsertPartOf(ctx, &model.PartOf{ParagraphID: paragraph.ID, DocumentID: document.ID}); err != nil {
			return result, err
		}
		result.Paragraphs++

		for _, key := range processed.Entities {
			if i.allowedLabels != nil && !i.allowedLabels[key.Label] {
				continue
			}

			if !seenEntities[key] {
				seenEntities[key] = true
				entity := &model.Entity{ID: key.ID(), Name: key.Name, Label: key.Label}
				if err := i.store.Entities.UpsertEntity(ctx, entity); err != nil {
					return result, err
				}
				documentMention := &model.Mention{EntityID: key.ID(), TargetKind: model.TargetDocument, TargetID: document.ID}
				if err := i.store.Mentions.UpsertMention(ctx, documentMention); err != nil {
					return result, err
				}
				result.Entities++
				result.Mentions++
			}

			paragraphMention := &model.Mention{EntityID: key.ID(), TargetKind: model.TargetParagraph, TargetID: paragraph.ID}
			if err := i.store.Mentions.UpsertMention(ctx, paragraphMention); err != nil {
				return result, err
			}
			result.Mentions++
		}
	}

	return result, nil
}
