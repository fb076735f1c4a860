package database

import (
	"context"
	"testing"

	"github.com/siherrmann/recaller/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaintenanceNewMaintenanceDBHandler(t *testing.T) {
	database := initDB(t)

	t.Run("Valid call NewMaintenanceDBHandler", func(t *testing.T) {
		maintenanceDbHandler, err := NewMaintenanceDBHandler(database, true)
		assert.NoError(t, err, "Expected NewMaintenanceDBHandler to not return an error")
		require.NotNil(t, maintenanceDbHandler, "Expected NewMaintenanceDBHandler to return a non-nil instance")
		require.NotNil(t, maintenanceDbHandler.db, "Expected NewMaintenanceDBHandler to have a non-nil database instance")
	})

	t.Run("Invalid call NewMaintenanceDBHandler with nil database", func(t *testing.T) {
		_, err := NewMaintenanceDBHandler(nil, false)
		assert.Error(t, err, "Expected error when creating MaintenanceDBHandler with nil database")
		assert.Contains(t, err.Error(), "database connection is nil", "Expected specific error message for nil database connection")
	})
}

// seedExpired writes a document with one paragraph, the connecting edges and
// one entity, everything stamped with the given expiration.
func seedExpired(t *testing.T, store *Store, id string, name string, expiration int64) {
	ctx := context.Background()

	doc := &model.Document{ID: id, Title: "Expiring", Expiration: expiration}
	require.NoError(t, store.Documents.UpsertDocument(ctx, doc), "Expected UpsertDocument to not return an error")

	paragraph := &model.Paragraph{ID: model.ParagraphID(id, 0), DocumentID: id, Text: "Body.", Expiration: expiration}
	require.NoError(t, store.Paragraphs.UpsertParagraph(ctx, paragraph), "Expected UpsertParagraph to not return an error")
	require.NoError(t, store.Paragraphs.UpsertPartOf(ctx, &model.PartOf{ParagraphID: paragraph.ID, DocumentID: id, Expiration: expiration}), "Expected UpsertPartOf to not return an error")

	key, err := model.NewEntityKey(name, "ORG")
	require.NoError(t, err, "Expected NewEntityKey to not return an error")
	require.NoError(t, store.Entities.UpsertEntity(ctx, &model.Entity{ID: key.ID(), Name: key.Name, Label: key.Label, Expiration: expiration}), "Expected UpsertEntity to not return an error")

	docMention := &model.Mention{EntityID: key.ID(), TargetKind: model.TargetDocument, TargetID: id, Expiration: expiration}
	paraMention := &model.Mention{EntityID: key.ID(), TargetKind: model.TargetParagraph, TargetID: paragraph.ID, Expiration: expiration}
	require.NoError(t, store.Mentions.UpsertMention(ctx, docMention), "Expected UpsertMention to not return an error")
	require.NoError(t, store.Mentions.UpsertMention(ctx, paraMention), "Expected UpsertMention to not return an error")
}

func countRows(t *testing.T, store *Store, table string) int {
	var count int
	row := store.DB.Instance.QueryRow(`SELECT COUNT(*) FROM ` + table)
	require.NoError(t, row.Scan(&count), "Expected count query to succeed")
	return count
}

func TestMaintenanceEviction(t *testing.T) {
	store := initStore(t)
	ctx := context.Background()
	now := int64(1000000)

	// One expired sub-graph, one live and one permanent.
	seedExpired(t, store, "doc-evict-old", "vodafone", now-100)
	seedExpired(t, store, "doc-evict-live", "berlin", now+3600000)
	seedExpired(t, store, "doc-evict-pinned", "siemens", 0)

	t.Run("Evict expired relations first", func(t *testing.T) {
		count, err := store.Maintenance.EvictExpiredRelations(ctx, now, 100)
		assert.NoError(t, err, "Expected EvictExpiredRelations to not return an error")
		assert.Equal(t, 3, count, "Expected two mentions and one part_of edge to be evicted")

		count, err = store.Maintenance.EvictExpiredRelations(ctx, now, 100)
		assert.NoError(t, err, "Expected EvictExpiredRelations to not return an error")
		assert.Zero(t, count, "Expected a second pass to find nothing")
	})

	t.Run("Evict expired nodes second", func(t *testing.T) {
		count, err := store.Maintenance.EvictExpiredNodes(ctx, now, 100)
		assert.NoError(t, err, "Expected EvictExpiredNodes to not return an error")
		assert.Equal(t, 3, count, "Expected document, paragraph and entity to be evicted")

		count, err = store.Maintenance.EvictExpiredNodes(ctx, now, 100)
		assert.NoError(t, err, "Expected EvictExpiredNodes to not return an error")
		assert.Zero(t, count, "Expected a second pass to find nothing")
	})

	t.Run("Live and permanent rows survive", func(t *testing.T) {
		_, err := store.Documents.SelectDocument(ctx, "doc-evict-live")
		assert.NoError(t, err, "Expected the live document to survive")
		_, err = store.Documents.SelectDocument(ctx, "doc-evict-pinned")
		assert.NoError(t, err, "Expected the pinned document to survive")
		_, err = store.Documents.SelectDocument(ctx, "doc-evict-old")
		assert.Error(t, err, "Expected the expired document to be gone")

		assert.Equal(t, 2, countRows(t, store, "documents"), "Expected two documents to remain")
		assert.Equal(t, 2, countRows(t, store, "paragraphs"), "Expected two paragraphs to remain")
		assert.Equal(t, 2, countRows(t, store, "entities"), "Expected two entities to remain")
		assert.Equal(t, 4, countRows(t, store, "mentions"), "Expected four mentions to remain")
		assert.Equal(t, 2, countRows(t, store, "part_of"), "Expected two part_of edges to remain")
	})
}

func TestMaintenanceEvictionBatching(t *testing.T) {
	store := initStore(t)
	ctx := context.Background()
	now := int64(1000000)

	for i, name := range []string{"alpha", "beta", "gamma", "delta"} {
		seedExpired(t, store, "doc-batch-"+name, name, now-int64(i+1))
	}

	t.Run("Relation passes respect the batch size", func(t *testing.T) {
		total := 0
		passes := 0
		for {
			count, err := store.Maintenance.EvictExpiredRelations(ctx, now, 5)
			require.NoError(t, err, "Expected EvictExpiredRelations to not return an error")
			if count == 0 {
				break
			}
			assert.LessOrEqual(t, count, 5, "Expected each pass to stay within the batch size")
			total += count
			passes++
		}
		assert.Equal(t, 12, total, "Expected all expired relations to be evicted")
		assert.GreaterOrEqual(t, passes, 3, "Expected the eviction to take multiple passes")
	})

	t.Run("Node passes respect the batch size", func(t *testing.T) {
		total := 0
		for {
			count, err := store.Maintenance.EvictExpiredNodes(ctx, now, 5)
			require.NoError(t, err, "Expected EvictExpiredNodes to not return an error")
			if count == 0 {
				break
			}
			assert.LessOrEqual(t, count, 5, "Expected each pass to stay within the batch size")
			total += count
		}
		assert.Equal(t, 12, total, "Expected all expired nodes to be evicted")
		assert.Zero(t, countRows(t, store, "documents"), "Expected no documents to remain")
		assert.Zero(t, countRows(t, store, "mentions"), "Expected no mentions to remain")
	})
}

func TestMaintenanceWipeStore(t *testing.T) {
	store := initStore(t)
	ctx := context.Background()

	seedExpired(t, store, "doc-wipe-1", "vodafone", 0)
	require.Equal(t, 1, countRows(t, store, "documents"), "Expected seeded document")

	err := store.Maintenance.WipeStore(ctx)
	assert.NoError(t, err, "Expected WipeStore to not return an error")

	for _, table := range []string{"documents", "paragraphs", "entities", "mentions", "part_of"} {
		assert.Zero(t, countRows(t, store, table), "Expected table to be empty after wipe")
	}
}
