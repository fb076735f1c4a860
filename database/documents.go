package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
	"github.com/siherrmann/recaller/helper"
	"github.com/siherrmann/recaller/model"
	loadSql "github.com/siherrmann/recaller/sql"
)

// DocumentsDBHandlerFunctions defines the interface for Documents database operations.
type DocumentsDBHandlerFunctions interface {
	UpsertDocument(ctx context.Context, document *model.Document) error
	CommitDocument(ctx context.Context, tx *sql.Tx, document *model.Document) error
	SelectDocument(ctx context.Context, id string) (*model.Document, error)
	SelectCommitEligibleDocuments(ctx context.Context, requireValidated bool, limit int) ([]*model.Document, error)
	MarkDocumentCommitted(ctx context.Context, tx *sql.Tx, id string) (*model.Document, error)
	SetDocumentValidated(ctx context.Context, id string, validated bool) (*model.Document, error)
	SetDocumentExpiration(ctx context.Context, id string, expiration int64) (int, error)
	SelectUnexpiredDocuments(ctx context.Context, nowMillis int64) ([]*model.DocumentSummary, error)
}

// DocumentsDBHandler handles document-related database operations
type DocumentsDBHandler struct {
	db *helper.Database
}

// NewDocumentsDBHandler creates a new documents database handler.
// It initializes the database connection and loads document-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewDocumentsDBHandler(db *helper.Database, force bool) (*DocumentsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	documentsDbHandler := &DocumentsDBHandler{
		db: db,
	}

	err := loadSql.LoadDocumentsSql(documentsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load documents sql", err)
	}

	err = documentsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized DocumentsDBHandler")

	return documentsDbHandler, nil
}

// CreateTable creates the 'documents' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes.
func (h *DocumentsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_documents();`)
	if err != nil {
		log.Panicf("error initializing documents table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table documents")

	return nil
}

// UpsertDocument inserts a new document (or updates if exists).
// The expiration is written as given, 0 marking a permanent row.
func (h *DocumentsDBHandler) UpsertDocument(ctx context.Context, document *model.Document) error {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT rid, id, title, content, category, metadata, COALESCE(expiration, 0), validated, committed, committed_at, created_at
		FROM upsert_document($1, $2, $3, $4, $5, $6)`,
		document.ID,
		document.Title,
		document.Content,
		document.Category,
		document.Metadata,
		document.Expiration,
	)

	err := row.Scan(
		&document.RID,
		&document.ID,
		&document.Title,
		&document.Content,
		&document.Category,
		&document.Metadata,
		&document.Expiration,
		&document.Validated,
		&document.Committed,
		&document.CommittedAt,
		&document.CreatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// CommitDocument writes the document into the long-term store inside the
// given transaction, stripping the expiration to NULL.
func (h *DocumentsDBHandler) CommitDocument(ctx context.Context, tx *sql.Tx, document *model.Document) error {
	_, err := tx.ExecContext(
		ctx,
		`SELECT commit_document($1, $2, $3, $4, $5, $6)`,
		document.ID,
		document.Title,
		document.Content,
		document.Category,
		document.Metadata,
		document.Validated,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}

	return nil
}

// SelectDocument retrieves a document by its stable id
func (h *DocumentsDBHandler) SelectDocument(ctx context.Context, id string) (*model.Document, error) {
	document := &model.Document{}
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT rid, id, title, content, category, metadata, COALESCE(expiration, 0), validated, committed, committed_at, created_at
		FROM select_document($1)`,
		id,
	)

	err := row.Scan(
		&document.RID,
		&document.ID,
		&document.Title,
		&document.Content,
		&document.Category,
		&document.Metadata,
		&document.Expiration,
		&document.Validated,
		&document.Committed,
		&document.CommittedAt,
		&document.CreatedAt,
	)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return document, nil
}

// SelectCommitEligibleDocuments retrieves documents not yet committed,
// optionally only validated ones, oldest first.
func (h *DocumentsDBHandler) SelectCommitEligibleDocuments(ctx context.Context, requireValidated bool, limit int) ([]*model.Document, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT rid, id, title, content, category, metadata, COALESCE(expiration, 0), validated, committed, committed_at, created_at
		FROM select_commit_eligible_documents($1, $2)`,
		requireValidated,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var documents []*model.Document
	for rows.Next() {
		document := &model.Document{}
		err := rows.Scan(
			&document.RID,
			&document.ID,
			&document.Title,
			&document.Content,
			&document.Category,
			&document.Metadata,
			&document.Expiration,
			&document.Validated,
			&document.Committed,
			&document.CommittedAt,
			&document.CreatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		documents = append(documents, document)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return documents, nil
}

// MarkDocumentCommitted flags the document as committed inside the given
// transaction and returns the updated row.
func (h *DocumentsDBHandler) MarkDocumentCommitted(ctx context.Context, tx *sql.Tx, id string) (*model.Document, error) {
	document := &model.Document{}
	row := tx.QueryRowContext(
		ctx,
		`SELECT rid, id, title, content, category, metadata, COALESCE(expiration, 0), validated, committed, committed_at, created_at
		FROM mark_document_committed($1)`,
		id,
	)

	err := row.Scan(
		&document.RID,
		&document.ID,
		&document.Title,
		&document.Content,
		&document.Category,
		&document.Metadata,
		&document.Expiration,
		&document.Validated,
		&document.Committed,
		&document.CommittedAt,
		&document.CreatedAt,
	)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return document, nil
}

// SetDocumentValidated flags the document as validated (or clears the flag)
// and returns the updated row.
func (h *DocumentsDBHandler) SetDocumentValidated(ctx context.Context, id string, validated bool) (*model.Document, error) {
	document := &model.Document{}
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT rid, id, title, content, category, metadata, COALESCE(expiration, 0), validated, committed, committed_at, created_at
		FROM set_document_validated($1, $2)`,
		id,
		validated,
	)

	err := row.Scan(
		&document.RID,
		&document.ID,
		&document.Title,
		&document.Content,
		&document.Category,
		&document.Metadata,
		&document.Expiration,
		&document.Validated,
		&document.Committed,
		&document.CommittedAt,
		&document.CreatedAt,
	)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return document, nil
}

// SetDocumentExpiration stamps the given expiration on the document node,
// its paragraphs, the part_of edges and every mention targeting the document
// or one of its paragraphs. Returns the number of stamped rows.
func (h *DocumentsDBHandler) SetDocumentExpiration(ctx context.Context, id string, expiration int64) (int, error) {
	var count int
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT set_document_expiration($1, $2)`,
		id,
		expiration,
	)

	err := row.Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}

	return count, nil
}

// SelectUnexpiredDocuments lists documents still held by a mention with a
// deadline in the future, ordered by title.
func (h *DocumentsDBHandler) SelectUnexpiredDocuments(ctx context.Context, nowMillis int64) ([]*model.DocumentSummary, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT document_id, document_title, document_snippet, entity_names
		FROM select_unexpired_documents($1)`,
		nowMillis,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var summaries []*model.DocumentSummary
	for rows.Next() {
		summary := &model.DocumentSummary{}
		err := rows.Scan(
			&summary.ID,
			&summary.Title,
			&summary.Snippet,
			pq.Array(&summary.Entities),
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		summaries = append(summaries, summary)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return summaries, nil
}
