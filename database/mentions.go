package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/siherrmann/recaller/helper"
	"github.com/siherrmann/recaller/model"
	loadSql "github.com/siherrmann/recaller/sql"
)

// MentionsDBHandlerFunctions defines the interface for Mentions database operations.
type MentionsDBHandlerFunctions interface {
	UpsertMention(ctx context.Context, mention *model.Mention) error
	CommitMention(ctx context.Context, tx *sql.Tx, mention *model.Mention) error
	SelectPromotionTargets(ctx context.Context, entityID uuid.UUID, nowMillis int64) ([]*model.PromotionSource, error)
	SelectMentionsForDocument(ctx context.Context, documentID string) ([]*model.Mention, error)
}

// MentionsDBHandler handles mention-related database operations
type MentionsDBHandler struct {
	db *helper.Database
}

// NewMentionsDBHandler creates a new mentions database handler.
// It initializes the database connection and loads mention-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewMentionsDBHandler(db *helper.Database, force bool) (*MentionsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	mentionsDbHandler := &MentionsDBHandler{
		db: db,
	}

	err := loadSql.LoadMentionsSql(mentionsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load mentions sql", err)
	}

	err = mentionsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized MentionsDBHandler")

	return mentionsDbHandler, nil
}

// CreateTable creates the 'mentions' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes.
func (h *MentionsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_mentions();`)
	if err != nil {
		log.Panicf("error initializing mentions table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table mentions")

	return nil
}

// UpsertMention inserts a new mention edge (or updates its expiration).
// The statement is selected by the target kind, unknown kinds are rejected
// before any store call.
func (h *MentionsDBHandler) UpsertMention(ctx context.Context, mention *model.Mention) error {
	var query string
	switch mention.TargetKind {
	case model.TargetDocument:
		query = `SELECT rid, entity_id, target_kind, target_id, COALESCE(expiration, 0), created_at
		FROM upsert_mention_document($1, $2, $3)`
	case model.TargetParagraph:
		query = `SELECT rid, entity_id, target_kind, target_id, COALESCE(expiration, 0), created_at
		FROM upsert_mention_paragraph($1, $2, $3)`
	default:
		return helper.NewCodeError("target kind validation", helper.CodeInvalidInput, fmt.Errorf("unknown target kind %q", mention.TargetKind))
	}

	row := h.db.Instance.QueryRowContext(
		ctx,
		query,
		mention.EntityID,
		mention.TargetID,
		mention.Expiration,
	)

	err := row.Scan(
		&mention.RID,
		&mention.EntityID,
		&mention.TargetKind,
		&mention.TargetID,
		&mention.Expiration,
		&mention.CreatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// CommitMention writes the mention edge into the long-term store inside the
// given transaction, stripping the expiration to NULL.
func (h *MentionsDBHandler) CommitMention(ctx context.Context, tx *sql.Tx, mention *model.Mention) error {
	var query string
	switch mention.TargetKind {
	case model.TargetDocument:
		query = `SELECT commit_mention_document($1, $2)`
	case model.TargetParagraph:
		query = `SELECT commit_mention_paragraph($1, $2)`
	default:
		return helper.NewCodeError("target kind validation", helper.CodeInvalidInput, fmt.Errorf("unknown target kind %q", mention.TargetKind))
	}

	_, err := tx.ExecContext(
		ctx,
		query,
		mention.EntityID,
		mention.TargetID,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}

	return nil
}

// SelectPromotionTargets resolves the visible mentions of an entity to their
// parent documents and returns one row per (document, paragraph). Documents
// without paragraphs come back with a nil paragraph.
func (h *MentionsDBHandler) SelectPromotionTargets(ctx context.Context, entityID uuid.UUID, nowMillis int64) ([]*model.PromotionSource, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT document_id, document_title, document_content, document_category, document_metadata, document_validated, paragraph_id, paragraph_text, paragraph_index, paragraph_embedding
		FROM select_promotion_targets($1, $2)`,
		entityID,
		nowMillis,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var sources []*model.PromotionSource
	for rows.Next() {
		document := &model.Document{}
		var paragraphID, paragraphText sql.NullString
		var paragraphIndex sql.NullInt64
		var embedding []float32
		err := rows.Scan(
			&document.ID,
			&document.Title,
			&document.Content,
			&document.Category,
			&document.Metadata,
			&document.Validated,
			&paragraphID,
			&paragraphText,
			&paragraphIndex,
			pq.Array(&embedding),
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		source := &model.PromotionSource{Document: document}
		if paragraphID.Valid {
			source.Paragraph = &model.Paragraph{
				ID:         paragraphID.String,
				DocumentID: document.ID,
				Text:       paragraphText.String,
				Index:      int(paragraphIndex.Int64),
				Embedding:  embedding,
			}
		}

		sources = append(sources, source)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return sources, nil
}

// SelectMentionsForDocument retrieves every mention pointing at the document
// or at one of its paragraphs.
func (h *MentionsDBHandler) SelectMentionsForDocument(ctx context.Context, documentID string) ([]*model.Mention, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT rid, entity_id, target_kind, target_id, COALESCE(expiration, 0), created_at
		FROM select_mentions_for_document($1)`,
		documentID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var mentions []*model.Mention
	for rows.Next() {
		mention := &model.Mention{}
		err := rows.Scan(
			&mention.RID,
			&mention.EntityID,
			&mention.TargetKind,
			&mention.TargetID,
			&mention.Expiration,
			&mention.CreatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		mentions = append(mentions, mention)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return mentions, nil
}
