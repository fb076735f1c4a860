package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed documents.sql
var documentsSQL string

//go:embed paragraphs.sql
var paragraphsSQL string

//go:embed entities.sql
var entitiesSQL string

//go:embed mentions.sql
var mentionsSQL string

//go:embed maintenance.sql
var maintenanceSQL string

// Function lists for verification
var DocumentsFunctions = []string{
	"init_documents",
	"upsert_document",
	"commit_document",
	"select_document",
	"select_commit_eligible_documents",
	"mark_document_committed",
	"set_document_validated",
	"set_document_expiration",
	"select_unexpired_documents",
}

var ParagraphsFunctions = []string{
	"init_paragraphs",
	"upsert_paragraph",
	"commit_paragraph",
	"select_paragraph",
	"select_paragraphs_by_document",
	"upsert_part_of",
	"commit_part_of",
	"select_mentioned_paragraphs",
}

var EntitiesFunctions = []string{
	"init_entities",
	"upsert_entity",
	"commit_entity",
	"select_entity",
	"select_entities_mentioning_document",
	"select_co_mentioned_entities",
}

var MentionsFunctions = []string{
	"init_mentions",
	"upsert_mention_document",
	"upsert_mention_paragraph",
	"commit_mention_document",
	"commit_mention_paragraph",
	"select_promotion_targets",
	"select_mentions_for_document",
}

var MaintenanceFunctions = []string{
	"evict_expired_relations",
	"evict_expired_nodes",
	"wipe_store",
}

// Init intializes db extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadDocumentsSql loads document-related SQL functions
func LoadDocumentsSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkFunctions(db, DocumentsFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing documents functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(documentsSQL)
	if err != nil {
		return fmt.Errorf("error executing documents SQL: %w", err)
	}

	exist, err := checkFunctions(db, DocumentsFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Println("SQL documents functions loaded successfully")
	return nil
}

// LoadParagraphsSql loads paragraph-related SQL functions
func LoadParagraphsSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkFunctions(db, ParagraphsFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing paragraphs functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(paragraphsSQL)
	if err != nil {
		return fmt.Errorf("error executing paragraphs SQL: %w", err)
	}

	exist, err := checkFunctions(db, ParagraphsFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Println("SQL paragraphs functions loaded successfully")
	return nil
}

// LoadEntitiesSql loads entity-related SQL functions
func LoadEntitiesSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkFunctions(db, EntitiesFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing entities functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(entitiesSQL)
	if err != nil {
		return fmt.Errorf("error executing entities SQL: %w", err)
	}

	exist, err := checkFunctions(db, EntitiesFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Println("SQL entities functions loaded successfully")
	return nil
}

// LoadMentionsSql loads mention-related SQL functions
func LoadMentionsSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkFunctions(db, MentionsFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing mentions functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(mentionsSQL)
	if err != nil {
		return fmt.Errorf("error executing mentions SQL: %w", err)
	}

	exist, err := checkFunctions(db, MentionsFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Println("SQL mentions functions loaded successfully")
	return nil
}

// LoadMaintenanceSql loads eviction and flush SQL functions
func LoadMaintenanceSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkFunctions(db, MaintenanceFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing maintenance functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(maintenanceSQL)
	if err != nil {
		return fmt.Errorf("error executing maintenance SQL: %w", err)
	}

	exist, err := checkFunctions(db, MaintenanceFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Println("SQL maintenance functions loaded successfully")
	return nil
}

// LoadAllSql loads all SQL functions
func LoadAllSql(db *sql.DB, force bool) error {
	if err := LoadDocumentsSql(db, force); err != nil {
		return err
	}

	if err := LoadParagraphsSql(db, force); err != nil {
		return err
	}

	if err := LoadEntitiesSql(db, force); err != nil {
		return err
	}

	if err := LoadMentionsSql(db, force); err != nil {
		return err
	}

	if err := LoadMaintenanceSql(db, force); err != nil {
		return err
	}

	return nil
}

// checkFunctions verifies that all required functions exist in the database
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	var allExist bool
	for _, f := range sqlFunctions {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !allExist {
			log.Printf("Function %s does not exist", f)
			break
		}
	}
	return allExist, nil
}
