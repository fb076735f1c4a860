package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/recaller/helper"
	"github.com/siherrmann/recaller/model"
	loadSql "github.com/siherrmann/recaller/sql"
)

// ParagraphsDBHandlerFunctions defines the interface for Paragraphs database operations.
type ParagraphsDBHandlerFunctions interface {
	UpsertParagraph(ctx context.Context, paragraph *model.Paragraph) error
	CommitParagraph(ctx context.Context, tx *sql.Tx, paragraph *model.Paragraph) error
	SelectParagraph(ctx context.Context, id string) (*model.Paragraph, error)
	SelectParagraphsByDocument(ctx context.Context, documentID string) ([]*model.Paragraph, error)
	UpsertPartOf(ctx context.Context, partOf *model.PartOf) error
	CommitPartOf(ctx context.Context, tx *sql.Tx, partOf *model.PartOf) error
	SelectMentionedParagraphs(ctx context.Context, entityIDs []uuid.UUID, nowMillis int64) ([]*model.MentionedParagraph, error)
}

// ParagraphsDBHandler handles paragraph-related database operations
type ParagraphsDBHandler struct {
	db           *helper.Database
	embeddingDim int
}

// NewParagraphsDBHandler creates a new paragraphs database handler.
// It initializes the database connection and loads paragraph-related SQL functions.
// The paragraphs table is created with the given embedding dimension.
// If force is true, it will reload the SQL functions even if they already exist.
func NewParagraphsDBHandler(db *helper.Database, embeddingDim int, force bool) (*ParagraphsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	paragraphsDbHandler := &ParagraphsDBHandler{
		db:           db,
		embeddingDim: embeddingDim,
	}

	err := loadSql.LoadParagraphsSql(paragraphsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load paragraphs sql", err)
	}

	err = paragraphsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ParagraphsDBHandler")

	return paragraphsDbHandler, nil
}

// CreateTable creates the 'paragraphs' and 'part_of' tables in the database.
// If the tables already exist, it does not create them again.
// It also creates all necessary indexes.
func (h *ParagraphsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_paragraphs($1);`, h.embeddingDim)
	if err != nil {
		log.Panicf("error initializing paragraphs table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table paragraphs")

	return nil
}

// embeddingValue converts the embedding for insertion, nil staying NULL.
func embeddingValue(embedding []float32) interface{} {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}

// UpsertParagraph inserts a new paragraph (or updates if exists).
// The expiration is written as given, 0 marking a permanent row.
func (h *ParagraphsDBHandler) UpsertParagraph(ctx context.Context, paragraph *model.Paragraph) error {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT rid, id, document_id, text, index, embedding::REAL[], COALESCE(expiration, 0), created_at
		FROM upsert_paragraph($1, $2, $3, $4, $5, $6)`,
		paragraph.ID,
		paragraph.DocumentID,
		paragraph.Text,
		paragraph.Index,
		embeddingValue(paragraph.Embedding),
		paragraph.Expiration,
	)

	err := row.Scan(
		&paragraph.RID,
		&paragraph.ID,
		&paragraph.DocumentID,
		&paragraph.Text,
		&paragraph.Index,
		pq.Array(&paragraph.Embedding),
		&paragraph.Expiration,
		&paragraph.CreatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// CommitParagraph writes the paragraph into the long-term store inside the
// given transaction, stripping the expiration to NULL.
func (h *ParagraphsDBHandler) CommitParagraph(ctx context.Context, tx *sql.Tx, paragraph *model.Paragraph) error {
	_, err := tx.ExecContext(
		ctx,
		`SELECT commit_paragraph($1, $2, $3, $4, $5)`,
		paragraph.ID,
		paragraph.DocumentID,
		paragraph.Text,
		paragraph.Index,
		embeddingValue(paragraph.Embedding),
	)
	if err != nil {
		return helper.NewError("exec", err)
	}

	return nil
}

// SelectParagraph retrieves a paragraph by its stable id
func (h *ParagraphsDBHandler) SelectParagraph(ctx context.Context, id string) (*model.Paragraph, error) {
	paragraph := &model.Paragraph{}
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT rid, id, document_id, text, index, embedding::REAL[], COALESCE(expiration, 0), created_at
		FROM select_paragraph($1)`,
		id,
	)

	err := row.Scan(
		&paragraph.RID,
		&paragraph.ID,
		&paragraph.DocumentID,
		&paragraph.Text,
		&paragraph.Index,
		pq.Array(&paragraph.Embedding),
		&paragraph.Expiration,
		&paragraph.CreatedAt,
	)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return paragraph, nil
}

// SelectParagraphsByDocument retrieves the paragraphs linked to a document
// through part_of, ordered by index.
func (h *ParagraphsDBHandler) SelectParagraphsByDocument(ctx context.Context, documentID string) ([]*model.Paragraph, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT rid, id, document_id, text, index, embedding::REAL[], COALESCE(expiration, 0), created_at
		FROM select_paragraphs_by_document($1)`,
		documentID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var paragraphs []*model.Paragraph
	for rows.Next() {
		paragraph := &model.Paragraph{}
		err := rows.Scan(
			&paragraph.RID,
			&paragraph.ID,
			&paragraph.DocumentID,
			&paragraph.Text,
			&paragraph.Index,
			pq.Array(&paragraph.Embedding),
			&paragraph.Expiration,
			&paragraph.CreatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		paragraphs = append(paragraphs, paragraph)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return paragraphs, nil
}

// UpsertPartOf inserts the part_of edge of a paragraph (or updates if exists).
func (h *ParagraphsDBHandler) UpsertPartOf(ctx context.Context, partOf *model.PartOf) error {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT rid, paragraph_id, document_id, COALESCE(expiration, 0), created_at
		FROM upsert_part_of($1, $2, $3)`,
		partOf.ParagraphID,
		partOf.DocumentID,
		partOf.Expiration,
	)

	err := row.Scan(
		&partOf.RID,
		&partOf.ParagraphID,
		&partOf.DocumentID,
		&partOf.Expiration,
		&partOf.CreatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// CommitPartOf writes the part_of edge into the long-term store inside the
// given transaction, stripping the expiration to NULL.
func (h *ParagraphsDBHandler) CommitPartOf(ctx context.Context, tx *sql.Tx, partOf *model.PartOf) error {
	_, err := tx.ExecContext(
		ctx,
		`SELECT commit_part_of($1, $2)`,
		partOf.ParagraphID,
		partOf.DocumentID,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}

	return nil
}

// SelectMentionedParagraphs retrieves one row per visible (entity, paragraph)
// mention pair for the given entity ids at the given time.
func (h *ParagraphsDBHandler) SelectMentionedParagraphs(ctx context.Context, entityIDs []uuid.UUID, nowMillis int64) ([]*model.MentionedParagraph, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT entity_id, paragraph_id, paragraph_text, paragraph_index, paragraph_embedding, document_id, document_title, document_category
		FROM select_mentioned_paragraphs($1, $2)`,
		pq.Array(entityIDs),
		nowMillis,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var mentioned []*model.MentionedParagraph
	for rows.Next() {
		pair := &model.MentionedParagraph{}
		err := rows.Scan(
			&pair.EntityID,
			&pair.ParagraphID,
			&pair.Text,
			&pair.Index,
			pq.Array(&pair.Embedding),
			&pair.DocumentID,
			&pair.DocumentTitle,
			&pair.DocumentCategory,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		mentioned = append(mentioned, pair)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return mentioned, nil
}
