package database

import (
	"fmt"

	"github.com/siherrmann/recaller/helper"
	loadSql "github.com/siherrmann/recaller/sql"
)

// Store bundles the handlers of one database tier. The long-term and
// short-term stores run the same schema, so both are plain Stores.
type Store struct {
	DB          *helper.Database
	Documents   *DocumentsDBHandler
	Paragraphs  *ParagraphsDBHandler
	Entities    *EntitiesDBHandler
	Mentions    *MentionsDBHandler
	Maintenance *MaintenanceDBHandler
}

// NewStore initializes the extensions and all handlers for one database.
// force=true reloads the SQL functions even if they already exist.
func NewStore(db *helper.Database, embeddingDim int, force bool) (*Store, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	documents, err := NewDocumentsDBHandler(db, force)
	if err != nil {
		return nil, helper.NewError("create documents handler", err)
	}

	paragraphs, err := NewParagraphsDBHandler(db, embeddingDim, force)
	if err != nil {
		return nil, helper.NewError("create paragraphs handler", err)
	}

	entities, err := NewEntitiesDBHandler(db, force)
	if err != nil {
		return nil, helper.NewError("create entities handler", err)
	}

	mentions, err := NewMentionsDBHandler(db, force)
	if err != nil {
		return nil, helper.NewError("create mentions handler", err)
	}

	maintenance, err := NewMaintenanceDBHandler(db, force)
	if err != nil {
		return nil, helper.NewError("create maintenance handler", err)
	}

	return &Store{
		DB:          db,
		Documents:   documents,
		Paragraphs:  paragraphs,
		Entities:    entities,
		Mentions:    mentions,
		Maintenance: maintenance,
	}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}
