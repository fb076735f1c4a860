package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/recaller/helper"
	"github.com/siherrmann/recaller/model"
	loadSql "github.com/siherrmann/recaller/sql"
)

// EntitiesDBHandlerFunctions defines the interface for Entities database operations.
type EntitiesDBHandlerFunctions interface {
	UpsertEntity(ctx context.Context, entity *model.Entity) error
	CommitEntity(ctx context.Context, tx *sql.Tx, entity *model.Entity) error
	SelectEntity(ctx context.Context, id uuid.UUID) (*model.Entity, error)
	SelectEntitiesMentioningDocument(ctx context.Context, documentID string) ([]*model.Entity, error)
	SelectCoMentionedEntities(ctx context.Context, documentID string, nowMillis int64) ([]*model.Entity, error)
}

// EntitiesDBHandler handles entity-related database operations
type EntitiesDBHandler struct {
	db *helper.Database
}

// NewEntitiesDBHandler creates a new entities database handler.
// It initializes the database connection and loads entity-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEntitiesDBHandler(db *helper.Database, force bool) (*EntitiesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	entitiesDbHandler := &EntitiesDBHandler{
		db: db,
	}

	err := loadSql.LoadEntitiesSql(entitiesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load entities sql", err)
	}

	err = entitiesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EntitiesDBHandler")

	return entitiesDbHandler, nil
}

// CreateTable creates the 'entities' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes.
func (h *EntitiesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_entities();`)
	if err != nil {
		log.Panicf("error initializing entities table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table entities")

	return nil
}

// UpsertEntity inserts a new entity (or updates if exists).
// The expiration is written as given, 0 marking a permanent row.
func (h *EntitiesDBHandler) UpsertEntity(ctx context.Context, entity *model.Entity) error {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT rid, id, name, label, COALESCE(expiration, 0), created_at
		FROM upsert_entity($1, $2, $3, $4)`,
		entity.ID,
		entity.Name,
		entity.Label,
		entity.Expiration,
	)

	err := row.Scan(
		&entity.RID,
		&entity.ID,
		&entity.Name,
		&entity.Label,
		&entity.Expiration,
		&entity.CreatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// CommitEntity writes the entity into the long-term store inside the given
// transaction, stripping the expiration to NULL.
func (h *EntitiesDBHandler) CommitEntity(ctx context.Context, tx *sql.Tx, entity *model.Entity) error {
	_, err := tx.ExecContext(
		ctx,
		`SELECT commit_entity($1, $2, $3)`,
		entity.ID,
		entity.Name,
		entity.Label,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}

	return nil
}

// SelectEntity retrieves an entity by its deterministic id
func (h *EntitiesDBHandler) SelectEntity(ctx context.Context, id uuid.UUID) (*model.Entity, error) {
	entity := &model.Entity{}
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT rid, id, name, label, COALESCE(expiration, 0), created_at
		FROM select_entity($1)`,
		id,
	)

	err := row.Scan(
		&entity.RID,
		&entity.ID,
		&entity.Name,
		&entity.Label,
		&entity.Expiration,
		&entity.CreatedAt,
	)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return entity, nil
}

// SelectEntitiesMentioningDocument retrieves the distinct entities with a
// mention pointing at the document or at one of its paragraphs.
func (h *EntitiesDBHandler) SelectEntitiesMentioningDocument(ctx context.Context, documentID string) ([]*model.Entity, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT rid, id, name, label, COALESCE(expiration, 0), created_at
		FROM select_entities_mentioning_document($1)`,
		documentID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var entities []*model.Entity
	for rows.Next() {
		entity := &model.Entity{}
		err := rows.Scan(
			&entity.RID,
			&entity.ID,
			&entity.Name,
			&entity.Label,
			&entity.Expiration,
			&entity.CreatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		entities = append(entities, entity)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return entities, nil
}

// SelectCoMentionedEntities retrieves the distinct entities visible at now
// with a visible mention pointing at the document or at one of its paragraphs.
func (h *EntitiesDBHandler) SelectCoMentionedEntities(ctx context.Context, documentID string, nowMillis int64) ([]*model.Entity, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT rid, id, name, label, COALESCE(expiration, 0), created_at
		FROM select_co_mentioned_entities($1, $2)`,
		documentID,
		nowMillis,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var entities []*model.Entity
	for rows.Next() {
		entity := &model.Entity{}
		err := rows.Scan(
			&entity.RID,
			&entity.ID,
			&entity.Name,
			&entity.Label,
			&entity.Expiration,
			&entity.CreatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		entities = append(entities, entity)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return entities, nil
}
