package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/siherrmann/recaller/database"
	"github.com/siherrmann/recaller/helper"
	"github.com/siherrmann/recaller/model"
)

// Promoter copies the sub-graph around an entity from the authoritative
// long-term store into the short-term working set. Every written node and
// edge is stamped with the same expiration, so one promotion ages out as a
// unit. Re-promoting an entity refreshes the stamps on rows already present.
type Promoter struct {
	longTerm  *database.Store
	shortTerm *database.Store
	config    *model.RecallerConfig
	logger    *slog.Logger
}

// NewPromoter creates a new promoter over the two stores
func NewPromoter(longTerm *database.Store, shortTerm *database.Store, config *model.RecallerConfig, logger *slog.Logger) (*Promoter, error) {
	if longTerm == nil || shortTerm == nil {
		return nil, helper.NewError("store validation", fmt.Errorf("promoter needs both stores"))
	}
	if config == nil {
		config = model.DefaultRecallerConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Promoter{
		longTerm:  longTerm,
		shortTerm: shortTerm,
		config:    config,
		logger:    logger,
	}, nil
}

// Promote resolves the visible mentions of the entity in the long-term store
// and writes the entity, its source documents, all their paragraphs and the
// connecting edges into the short-term store, each row stamped with
// expiration now+ttl (0 when ttl is 0, meaning permanent). An entity without
// visible sources is a normal zero outcome, not an error. A read failure
// leaves the working set untouched, a write failure can leave a partial
// promotion behind, reported through the error code.
func (p *Promoter) Promote(ctx context.Context, key model.EntityKey, nowMillis int64, ttlMillis int64) (*model.PromotionOutcome, error) {
	expiration := model.ExpirationAt(nowMillis, ttlMillis)
	outcome := &model.PromotionOutcome{Key: key, Expiration: expiration}

	sources, err := p.longTerm.Mentions.SelectPromotionTargets(ctx, key.ID(), nowMillis)
	if err != nil {
		return nil, helper.NewCodeError("select promotion targets", helper.CodeStoreUnavailable, err)
	}
	if len(sources) == 0 {
		p.logger.Debug("No promotion sources", "entity", key.String())
		return outcome, nil
	}

	entity := &model.Entity{ID: key.ID(), Name: key.Name, Label: key.Label, Expiration: expiration}
	err = p.shortTerm.Entities.UpsertEntity(ctx, entity)
	if err != nil {
		return outcome, helper.NewCodeError("upsert entity", helper.CodePartialPromotion, err)
	}

	seenDocuments := map[string]bool{}
	for _, source := range sources {
		if !seenDocuments[source.Document.ID] {
			seenDocuments[source.Document.ID] = true

			err = p.promoteDocument(ctx, key, source.Document, expiration, outcome)
			if err != nil {
				return outcome, err
			}
		}

		if source.Paragraph != nil {
			err = p.promoteParagraph(ctx, key, source.Paragraph, expiration, outcome)
			if err != nil {
				return outcome, err
			}
		}
	}

	p.logger.Debug("Promoted entity",
		"entity", key.String(),
		"documents", outcome.Documents,
		"paragraphs", outcome.Paragraphs,
		"mentions", outcome.Mentions,
		"expiration", outcome.Expiration)

	return outcome, nil
}

// promoteDocument copies one source document and the mention pointing at it.
// Both are skipped when document level promotion is disabled, paragraphs
// still carry the working set in that case.
func (p *Promoter) promoteDocument(ctx context.Context, key model.EntityKey, document *model.Document, expiration int64, outcome *model.PromotionOutcome) error {
	if !p.config.PromoteDocumentNodes {
		return nil
	}

	promoted := *document
	promoted.Expiration = expiration
	promoted.Committed = false
	promoted.CommittedAt = nil

	err := p.shortTerm.Documents.UpsertDocument(ctx, &promoted)
	if err != nil {
		return helper.NewCodeError("upsert document", helper.CodePartialPromotion, err)
	}
	outcome.Documents++

	mention := &model.Mention{EntityID: key.ID(), TargetKind: model.TargetDocument, TargetID: document.ID, Expiration: expiration}
	err = p.shortTerm.Mentions.UpsertMention(ctx, mention)
	if err != nil {
		return helper.NewCodeError("upsert document mention", helper.CodePartialPromotion, err)
	}
	outcome.Mentions++

	return nil
}

// promoteParagraph copies one paragraph, its part_of edge and the mention
// pointing at it. Every paragraph of a resolved document is linked to the
// promoted entity, so the working set holds the full document context.
func (p *Promoter) promoteParagraph(ctx context.Context, key model.EntityKey, paragraph *model.Paragraph, expiration int64, outcome *model.PromotionOutcome) error {
	promoted := *paragraph
	promoted.Expiration = expiration

	err := p.shortTerm.Paragraphs.UpsertParagraph(ctx, &promoted)
	if err != nil {
		return helper.NewCodeError("upsert paragraph", helper.CodePartialPromotion, err)
	}
	outcome.Paragraphs++

	partOf := &model.PartOf{ParagraphID: paragraph.ID, DocumentID: paragraph.DocumentID, Expiration: expiration}
	err = p.shortTerm.Paragraphs.UpsertPartOf(ctx, partOf)
	if err != nil {
		return helper.NewCodeError("upsert part_of", helper.CodePartialPromotion, err)
	}

	mention := &model.Mention{EntityID: key.ID(), TargetKind: model.TargetParagraph, TargetID: paragraph.ID, Expiration: expiration}
	err = p.shortTerm.Mentions.UpsertMention(ctx, mention)
	if err != nil {
		return helper.NewCodeError("upsert paragraph mention", helper.CodePartialPromotion, err)
	}
	outcome.Mentions++

	return nil
}
