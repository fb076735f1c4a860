package graph

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/siherrmann/recaller/database"
	"github.com/siherrmann/recaller/helper"
	"github.com/siherrmann/recaller/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedEntity(t *testing.T, store *database.Store, name string, label string, expiration int64) model.EntityKey {
	t.Helper()
	key, err := model.NewEntityKey(name, label)
	require.NoError(t, err, "Expected NewEntityKey to not return an error")
	entity := &model.Entity{ID: key.ID(), Name: key.Name, Label: key.Label, Expiration: expiration}
	require.NoError(t, store.Entities.UpsertEntity(context.Background(), entity), "Expected UpsertEntity to not return an error")
	return key
}

// seedDocument writes a one paragraph document and returns the paragraph id.
func seedDocument(t *testing.T, store *database.Store, documentID string) string {
	t.Helper()
	ctx := context.Background()

	document := &model.Document{ID: documentID, Title: "Linked Document", Content: "Connecting paragraph.", Category: "news"}
	require.NoError(t, store.Documents.UpsertDocument(ctx, document), "Expected UpsertDocument to not return an error")

	paragraph := &model.Paragraph{ID: model.ParagraphID(documentID, 0), DocumentID: documentID, Text: "Connecting paragraph.", Index: 0}
	require.NoError(t, store.Paragraphs.UpsertParagraph(ctx, paragraph), "Expected UpsertParagraph to not return an error")
	require.NoError(t, store.Paragraphs.UpsertPartOf(ctx, &model.PartOf{ParagraphID: paragraph.ID, DocumentID: documentID}), "Expected UpsertPartOf to not return an error")

	return paragraph.ID
}

func seedMention(t *testing.T, store *database.Store, key model.EntityKey, paragraphID string, expiration int64) {
	t.Helper()
	mention := &model.Mention{EntityID: key.ID(), TargetKind: model.TargetParagraph, TargetID: paragraphID, Expiration: expiration}
	require.NoError(t, store.Mentions.UpsertMention(context.Background(), mention), "Expected UpsertMention to not return an error")
}

// seedChain builds a co-mention chain alpha - berlin - chronos - delta plus
// one document shared by alpha and an expired entity.
func seedChain(t *testing.T, store *database.Store, now int64) (model.EntityKey, model.EntityKey, model.EntityKey, model.EntityKey) {
	t.Helper()

	alpha := seedEntity(t, store, "alpha corp", "ORG", 0)
	berlin := seedEntity(t, store, "berlin", "LOC", 0)
	chronos := seedEntity(t, store, "chronos labs", "ORG", 0)
	delta := seedEntity(t, store, "delta fund", "ORG", 0)
	expired := seedEntity(t, store, "expired co", "ORG", now-1)

	paragraphAB := seedDocument(t, store, "shared/alpha_berlin")
	seedMention(t, store, alpha, paragraphAB, 0)
	seedMention(t, store, berlin, paragraphAB, 0)

	paragraphBC := seedDocument(t, store, "shared/berlin_chronos")
	seedMention(t, store, berlin, paragraphBC, 0)
	seedMention(t, store, chronos, paragraphBC, 0)

	paragraphCD := seedDocument(t, store, "shared/chronos_delta")
	seedMention(t, store, chronos, paragraphCD, 0)
	seedMention(t, store, delta, paragraphCD, 0)

	paragraphAE := seedDocument(t, store, "shared/alpha_expired")
	seedMention(t, store, alpha, paragraphAE, 0)
	seedMention(t, store, expired, paragraphAE, now-1)

	return alpha, berlin, chronos, delta
}

func TestBFS(t *testing.T) {
	store := initStore(t)
	ctx := context.Background()
	now := int64(1000000)

	alpha, berlin, chronos, delta := seedChain(t, store, now)

	t.Run("Full breadth first walk", func(t *testing.T) {
		results, err := BFS(ctx, store, alpha.ID(), 3, now)
		require.NoError(t, err, "Expected BFS to not return an error")
		require.Len(t, results, 4, "Expected the walk to reach four entities")

		assert.Equal(t, alpha.Name, results[0].Entity.Name, "Expected the source first")
		assert.Equal(t, 0, results[0].Distance, "Expected the source at distance 0")
		assert.Equal(t, berlin.Name, results[1].Entity.Name, "Expected berlin at one hop")
		assert.Equal(t, 1, results[1].Distance, "Expected berlin at distance 1")
		assert.Equal(t, chronos.Name, results[2].Entity.Name, "Expected chronos at two hops")
		assert.Equal(t, 2, results[2].Distance, "Expected chronos at distance 2")
		assert.Equal(t, delta.Name, results[3].Entity.Name, "Expected delta at three hops")
		assert.Equal(t, 3, results[3].Distance, "Expected delta at distance 3")

		assert.Equal(t, []uuid.UUID{alpha.ID(), berlin.ID(), chronos.ID(), delta.ID()}, results[3].Path, "Expected the path to walk the whole chain")
	})

	t.Run("Hop limit cuts the walk", func(t *testing.T) {
		results, err := BFS(ctx, store, alpha.ID(), 1, now)
		require.NoError(t, err, "Expected BFS to not return an error")
		require.Len(t, results, 2, "Expected only the source and its direct neighbour")
		assert.Equal(t, berlin.Name, results[1].Entity.Name, "Expected berlin as the only neighbour")
	})

	t.Run("Zero hops returns the source only", func(t *testing.T) {
		results, err := BFS(ctx, store, alpha.ID(), 0, now)
		require.NoError(t, err, "Expected BFS to not return an error")
		require.Len(t, results, 1, "Expected just the source")
		assert.Equal(t, alpha.Name, results[0].Entity.Name, "Expected the source entity")
	})

	t.Run("Expired rows stay invisible", func(t *testing.T) {
		results, err := BFS(ctx, store, alpha.ID(), 5, now)
		require.NoError(t, err, "Expected BFS to not return an error")
		for _, result := range results {
			assert.NotEqual(t, "expired co", result.Entity.Name, "Expected the expired entity to stay out of the walk")
		}
	})

	t.Run("Expired source is rejected", func(t *testing.T) {
		expiredKey, err := model.NewEntityKey("expired co", "ORG")
		require.NoError(t, err, "Expected NewEntityKey to not return an error")
		_, err = BFS(ctx, store, expiredKey.ID(), 1, now)
		assert.True(t, helper.IsCode(err, helper.CodeInvalidInput), "Expected an invalid input error for an expired source")
	})

	t.Run("Unknown source is rejected", func(t *testing.T) {
		_, err := BFS(ctx, store, uuid.New(), 1, now)
		assert.True(t, helper.IsCode(err, helper.CodeInvalidInput), "Expected an invalid input error for an unknown source")
	})
}

func TestBFSMentionExpiry(t *testing.T) {
	store := initStore(t)
	ctx := context.Background()

	left := seedEntity(t, store, "left", "ORG", 0)
	right := seedEntity(t, store, "right", "ORG", 0)

	paragraphID := seedDocument(t, store, "shared/left_right")
	seedMention(t, store, left, paragraphID, 0)
	// The edge to the right entity expires at 2000.
	seedMention(t, store, right, paragraphID, 2000)

	results, err := BFS(ctx, store, left.ID(), 1, 1500)
	require.NoError(t, err, "Expected BFS to not return an error")
	require.Len(t, results, 2, "Expected the edge to be visible before its deadline")
	assert.Equal(t, right.Name, results[1].Entity.Name, "Expected the right entity while the mention is visible")

	results, err = BFS(ctx, store, left.ID(), 1, 2000)
	require.NoError(t, err, "Expected BFS to not return an error")
	require.Len(t, results, 1, "Expected the edge to vanish at its deadline")
}

func TestNeighbors(t *testing.T) {
	store := initStore(t)
	ctx := context.Background()
	now := int64(1000000)

	_, berlin, _, _ := seedChain(t, store, now)

	neighbors, err := Neighbors(ctx, store, berlin.ID(), now)
	require.NoError(t, err, "Expected Neighbors to not return an error")
	require.Len(t, neighbors, 2, "Expected berlin to have two direct neighbours")

	names := []string{neighbors[0].Name, neighbors[1].Name}
	assert.ElementsMatch(t, []string{"alpha corp", "chronos labs"}, names, "Expected the entities sharing a document with berlin")
}
