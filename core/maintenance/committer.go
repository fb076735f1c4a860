package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/siherrmann/recaller/database"
	"github.com/siherrmann/recaller/helper"
	"github.com/siherrmann/recaller/model"
)

// Committer copies finished working set documents into the authoritative
// store. Committed copies lose their expiration (stored as NULL), the
// source document is marked committed so it is not picked up again.
type Committer struct {
	longTerm  *database.Store
	shortTerm *database.Store
	config    *model.RecallerConfig
	logger    *slog.Logger
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewCommitter creates a new committer between the two stores.
func NewCommitter(longTerm *database.Store, shortTerm *database.Store, config *model.RecallerConfig, logger *slog.Logger) (*Committer, error) {
	if longTerm == nil || shortTerm == nil {
		return nil, helper.NewError("store validation", fmt.Errorf("committer needs both stores"))
	}
	if config == nil {
		config = model.DefaultRecallerConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Committer{
		longTerm:  longTerm,
		shortTerm: shortTerm,
		config:    config,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}, nil
}

// CommitEligible commits every eligible working set document and returns
// how many went through. One document failing does not abort the batch,
// failures are logged and the document stays eligible for the next run.
func (c *Committer) CommitEligible(ctx context.Context) (int, error) {
	documents, err := c.shortTerm.Documents.SelectCommitEligibleDocuments(ctx, c.config.RequireValidated, c.config.BatchSize)
	if err != nil {
		return 0, helper.NewCodeError("select commit eligible documents", helper.CodeStoreUnavailable, err)
	}

	committed := 0
	for _, document := range documents {
		if err := c.commitDocument(ctx, document); err != nil {
			c.logger.Error("Commit failed", slog.String("document", document.ID), slog.Any("error", err))
			continue
		}
		committed++
	}

	if committed > 0 {
		c.logger.Info("Committed documents", slog.Int("count", committed), slog.Int("eligible", len(documents)))
	}

	return committed, nil
}

// commitDocument copies one document sub-graph. Both transactions are
// committed only after every statement succeeded, so a failure leaves the
// source eligible and the copy converges on retry.
func (c *Committer) commitDocument(ctx context.Context, document *model.Document) error {
	paragraphs, err := c.shortTerm.Paragraphs.SelectParagraphsByDocument(ctx, document.ID)
	if err != nil {
		return helper.NewError("select paragraphs", err)
	}
	entities, err := c.shortTerm.Entities.SelectEntitiesMentioningDocument(ctx, document.ID)
	if err != nil {
		return helper.NewError("select entities", err)
	}
	mentions, err := c.shortTerm.Mentions.SelectMentionsForDocument(ctx, document.ID)
	if err != nil {
		return helper.NewError("select mentions", err)
	}

	longTx, err := c.longTerm.DB.Instance.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin long-term transaction", err)
	}
	defer longTx.Rollback()

	if err := c.longTerm.Documents.CommitDocument(ctx, longTx, document); err != nil {
		return err
	}
	for _, paragraph := range paragraphs {
		if err := c.longTerm.Paragraphs.CommitParagraph(ctx, longTx, paragraph); err != nil {
			return err
		}
		partOf := &model.PartOf{ParagraphID: paragraph.ID, DocumentID: document.ID}
		if err := c.longTerm.Paragraphs.CommitPartOf(ctx, longTx, partOf); err != nil {
			return err
		}
	}
	for _, entity := range entities {
		if err := c.longTerm.Entities.CommitEntity(ctx, longTx, entity); err != nil {
			return err
		}
	}
	for _, mention := range mentions {
		if err := c.longTerm.Mentions.CommitMention(ctx, longTx, mention); err != nil {
			return err
		}
	}

	shortTx, err := c.shortTerm.DB.Instance.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin short-term transaction", err)
	}
	defer shortTx.Rollback()

	if _, err := c.shortTerm.Documents.MarkDocumentCommitted(ctx, shortTx, document.ID); err != nil {
		return err
	}

	if err := longTx.Commit(); err != nil {
		return helper.NewError("commit long-term transaction", err)
	}
	if err := shortTx.Commit(); err != nil {
		return helper.NewError("commit short-term transaction", err)
	}

	return nil
}

// Start runs CommitEligible on every CommitInterval tick. The default
// interval of 0 leaves committing on demand.
func (c *Committer) Start() {
	if c.config.CommitInterval <= 0 {
		c.logger.Debug("Committer timer disabled")
		return
	}

	go func() {
		ticker := time.NewTicker(c.config.CommitInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				if _, err := c.CommitEligible(ctx); err != nil {
					c.logger.Error("Commit run failed", slog.Any("error", err))
				}
				cancel()
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the commit timer.
func (c *Committer) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}
