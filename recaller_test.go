package recaller

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/siherrmann/recaller/core/pipeline"
	"github.com/siherrmann/recaller/core/retrieval"
	"github.com/siherrmann/recaller/helper"
	"github.com/siherrmann/recaller/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedKnowledge writes a two paragraph document held by the given entity
// into the long-term store, everything permanent.
func seedKnowledge(t *testing.T, r *Recaller, key model.EntityKey, documentID string) {
	t.Helper()
	ctx := context.Background()

	document := &model.Document{ID: documentID, Title: "Promoted Document", Content: "First paragraph.\n\nSecond paragraph.", Category: "news"}
	require.NoError(t, r.LongTerm.Documents.UpsertDocument(ctx, document), "failed to upsert document")

	for index, text := range []string{"First paragraph.", "Second paragraph."} {
		paragraph := &model.Paragraph{ID: model.ParagraphID(documentID, index), DocumentID: documentID, Text: text, Index: index}
		require.NoError(t, r.LongTerm.Paragraphs.UpsertParagraph(ctx, paragraph), "failed to upsert paragraph")
		require.NoError(t, r.LongTerm.Paragraphs.UpsertPartOf(ctx, &model.PartOf{ParagraphID: paragraph.ID, DocumentID: documentID}), "failed to upsert part_of")
	}

	entity := &model.Entity{ID: key.ID(), Name: key.Name, Label: key.Label}
	require.NoError(t, r.LongTerm.Entities.UpsertEntity(ctx, entity), "failed to upsert entity")

	mention := &model.Mention{EntityID: key.ID(), TargetKind: model.TargetParagraph, TargetID: model.ParagraphID(documentID, 0)}
	require.NoError(t, r.LongTerm.Mentions.UpsertMention(ctx, mention), "failed to upsert mention")
}

func TestNewRecaller(t *testing.T) {
	t.Run("Valid call NewRecaller", func(t *testing.T) {
		r, err := NewRecaller(testConfig(t))
		require.NoError(t, err, "Expected NewRecaller to not return an error")
		require.NotNil(t, r, "Expected NewRecaller to return a non-nil instance")
		assert.NotNil(t, r.LongTerm, "Expected recaller to have a long-term store")
		assert.NotNil(t, r.ShortTerm, "Expected recaller to have a short-term store")
		assert.NotNil(t, r.Promoter, "Expected recaller to have a promoter")
		assert.NotNil(t, r.Engine, "Expected recaller to have a retrieval engine")
		assert.NotNil(t, r.Sweeper, "Expected recaller to have a sweeper")
		assert.NotNil(t, r.Committer, "Expected recaller to have a committer")
		assert.Nil(t, r.Pipeline, "Expected pipeline to be nil initially")

		err = r.Close()
		assert.NoError(t, err, "Expected Close to not return an error")
	})

	t.Run("Recaller without configuration", func(t *testing.T) {
		_, err := NewRecaller(nil)
		assert.True(t, helper.IsCode(err, helper.CodeInvalidInput), "Expected an invalid input error")
	})

	t.Run("Recaller without store connections", func(t *testing.T) {
		_, err := NewRecaller(model.DefaultRecallerConfig())
		assert.True(t, helper.IsCode(err, helper.CodeInvalidInput), "Expected an invalid input error")
	})

	t.Run("Recaller with nil stores handles Close gracefully", func(t *testing.T) {
		r := &Recaller{}
		assert.NoError(t, r.Close(), "Expected Close to handle nil stores gracefully")
	})
}

func TestRecallerPromoteFetch(t *testing.T) {
	r := initRecaller(t)
	ctx := context.Background()

	key, err := model.NewEntityKey("vodafone", "ORG")
	require.NoError(t, err, "failed to create entity key")
	seedKnowledge(t, r, key, "doc-promo-1")

	session := r.NewSession()
	nowMillis := helper.NowMillis()

	t.Run("Promote copies the sub-graph", func(t *testing.T) {
		outcomes, err := r.Promote(ctx, session, []model.EntityKey{key}, 3600000)
		require.NoError(t, err, "Expected Promote to not return an error")
		require.Len(t, outcomes, 1, "Expected one outcome per attempted key")
		assert.Equal(t, 1, outcomes[0].Documents, "Expected the document to be promoted")
		assert.Equal(t, 2, outcomes[0].Paragraphs, "Expected both paragraphs to be promoted")
		assert.Equal(t, 3, outcomes[0].Mentions, "Expected the document and paragraph mentions to be written")
		assert.InDelta(t, float64(nowMillis+3600000), float64(outcomes[0].Expiration), 10000, "Expected the deadline one ttl from now")
	})

	t.Run("Session filters repeated promotion", func(t *testing.T) {
		outcomes, err := r.Promote(ctx, session, []model.EntityKey{key}, 3600000)
		require.NoError(t, err, "Expected Promote to not return an error")
		assert.Empty(t, outcomes, "Expected the handled key to be skipped")
	})

	t.Run("Fresh session promotes again", func(t *testing.T) {
		outcomes, err := r.Promote(ctx, r.NewSession(), []model.EntityKey{key}, 3600000)
		require.NoError(t, err, "Expected Promote to not return an error")
		assert.Len(t, outcomes, 1, "Expected the key to be promoted again")
	})

	t.Run("Fetch returns ranked working-set paragraphs", func(t *testing.T) {
		results, err := r.Fetch(ctx, []model.EntityKey{key}, 0)
		require.NoError(t, err, "Expected Fetch to not return an error")
		require.Len(t, results, 2, "Expected both promoted paragraphs")
		assert.Equal(t, "First paragraph.", results[0].Text, "Expected the lower index first on equal counts")
		assert.Equal(t, "Promoted Document", results[0].DocumentTitle, "Expected the document title to be carried")
		assert.Equal(t, 1, results[0].MatchCount, "Expected one matching entity")
	})

	t.Run("Fetch without keys returns empty", func(t *testing.T) {
		results, err := r.Fetch(ctx, []model.EntityKey{}, 0)
		require.NoError(t, err, "Expected Fetch to not return an error")
		assert.Empty(t, results, "Expected no results without keys")
	})
}

func TestRecallerAsk(t *testing.T) {
	r := initRecaller(t)
	ctx := context.Background()

	key, err := model.NewEntityKey("vodafone", "ORG")
	require.NoError(t, err, "failed to create entity key")
	seedKnowledge(t, r, key, "doc-ask-1")

	t.Run("Ask without pipeline", func(t *testing.T) {
		_, err := r.Ask(ctx, r.NewSession(), "What did Vodafone announce?", 2)
		assert.ErrorContains(t, err, "pipeline with extractor not set", "Expected an error without a pipeline")
	})

	processing := pipeline.NewPipeline(nil)
	processing.SetExtractor(testExtractor())
	r.SetPipeline(processing)

	t.Run("Ask promotes, fetches and assembles the context", func(t *testing.T) {
		result, err := r.Ask(ctx, r.NewSession(), "What did Vodafone announce?", 2)
		require.NoError(t, err, "Expected Ask to not return an error")
		require.Len(t, result.Entities, 1, "Expected the question entity to be extracted")
		assert.Equal(t, "vodafone", result.Entities[0].Name, "Expected the extracted entity name")
		require.Len(t, result.Paragraphs, 2, "Expected the promoted paragraphs to be fetched")
		assert.True(t, strings.HasPrefix(result.Answer, "---\nDoc: Promoted Document"), "Expected the context to start with the document header")
		assert.Contains(t, result.Answer, "First paragraph.", "Expected the paragraph text in the context")
		assert.Contains(t, result.Answer, "Matches: 1", "Expected the match count in the context")
	})

	t.Run("Ask without recognized entities", func(t *testing.T) {
		result, err := r.Ask(ctx, r.NewSession(), "Who won the match yesterday?", 2)
		require.NoError(t, err, "Expected Ask to not return an error")
		assert.Empty(t, result.Entities, "Expected no extracted entities")
		assert.Empty(t, result.Paragraphs, "Expected no fetched paragraphs")
		assert.Empty(t, result.Answer, "Expected an empty answer without context")
	})

	t.Run("Ask with blank question", func(t *testing.T) {
		_, err := r.Ask(ctx, r.NewSession(), "   ", 2)
		assert.True(t, helper.IsCode(err, helper.CodeInvalidInput), "Expected an invalid input error")
	})

	t.Run("Ask with answerer", func(t *testing.T) {
		r.SetAnswerer(func(question string, answerContext string) (string, error) {
			assert.Contains(t, answerContext, "First paragraph.", "Expected the answerer to receive the context")
			return "Vodafone announced growth.", nil
		})
		result, err := r.Ask(ctx, r.NewSession(), "What did Vodafone announce?", 2)
		require.NoError(t, err, "Expected Ask to not return an error")
		assert.Equal(t, "Vodafone announced growth.", result.Answer, "Expected the generated answer")
	})

	t.Run("Ask with failing answerer", func(t *testing.T) {
		r.SetAnswerer(func(question string, answerContext string) (string, error) {
			return "", fmt.Errorf("model not loaded")
		})
		_, err := r.Ask(ctx, r.NewSession(), "What did Vodafone announce?", 2)
		assert.ErrorContains(t, err, "generate answer", "Expected the answerer error to surface")
		r.SetAnswerer(nil)
	})

	t.Run("Ask with reranker", func(t *testing.T) {
		r.SetReranker(retrieval.NewLexicalStrategy())
		result, err := r.Ask(ctx, r.NewSession(), "Which entry holds the second paragraph?", 2)
		require.NoError(t, err, "Expected Ask to not return an error")
		require.Len(t, result.Paragraphs, 2, "Expected both paragraphs after reranking")
		assert.Equal(t, "Second paragraph.", result.Paragraphs[0].Text, "Expected the overlapping paragraph to rank first")
		assert.Greater(t, result.Paragraphs[0].Score, result.Paragraphs[1].Score, "Expected the scores to order the results")
		r.SetReranker(nil)
	})
}

func TestRecallerRemember(t *testing.T) {
	r := initRecaller(t)
	ctx := context.Background()

	t.Run("Remember without pipeline", func(t *testing.T) {
		fact, err := r.Remember(ctx, "Vodafone acquired Mannesmann in 2000.", 3600000)
		require.NoError(t, err, "Expected Remember to not return an error")
		assert.True(t, strings.HasPrefix(fact.DocumentID, "fact/"), "Expected a fact document id")
		assert.Equal(t, "Vodafone acquired Mannesmann in 2000.", fact.Title, "Expected the fact as title")
		assert.Empty(t, fact.Entities, "Expected no entities without an extractor")

		document, err := r.ShortTerm.Documents.SelectDocument(ctx, fact.DocumentID)
		require.NoError(t, err, "Expected the fact document in the working set")
		assert.Equal(t, "fact", document.Category, "Expected the fact category")
		assert.Equal(t, fact.Expiration, document.Expiration, "Expected the document to carry the deadline")

		paragraph, err := r.ShortTerm.Paragraphs.SelectParagraph(ctx, model.ParagraphID(fact.DocumentID, 0))
		require.NoError(t, err, "Expected the fact paragraph in the working set")
		assert.Equal(t, "Vodafone acquired Mannesmann in 2000.", paragraph.Text, "Expected the fact text")
	})

	processing := pipeline.NewPipeline(nil)
	processing.SetExtractor(testExtractor())
	r.SetPipeline(processing)

	t.Run("Remember with extractor links entities", func(t *testing.T) {
		fact, err := r.Remember(ctx, "Vodafone sponsors the city marathon.", 3600000)
		require.NoError(t, err, "Expected Remember to not return an error")
		require.Len(t, fact.Entities, 1, "Expected the fact entity to be extracted")
		assert.Equal(t, "vodafone", fact.Entities[0].Name, "Expected the extracted entity name")

		results, err := r.Fetch(ctx, fact.Entities, 5)
		require.NoError(t, err, "Expected Fetch to not return an error")
		require.Len(t, results, 1, "Expected the fact paragraph to be fetchable")
		assert.Equal(t, "Vodafone sponsors the city marathon.", results[0].Text, "Expected the fact text")
		assert.Equal(t, fact.DocumentID, results[0].DocumentID, "Expected the fact document id")
	})

	t.Run("Remember truncates long titles", func(t *testing.T) {
		long := strings.Repeat("Berlin grows. ", 20)
		fact, err := r.Remember(ctx, long, 3600000)
		require.NoError(t, err, "Expected Remember to not return an error")
		assert.Len(t, []rune(fact.Title), 80, "Expected the title to be cut to 80 runes")
	})

	t.Run("Remember permanent fact", func(t *testing.T) {
		fact, err := r.Remember(ctx, "Vodafone is headquartered in Newbury.", 0)
		require.NoError(t, err, "Expected Remember to not return an error")
		assert.Equal(t, int64(0), fact.Expiration, "Expected a ttl of 0 to mean permanent")
	})

	t.Run("Remember blank fact", func(t *testing.T) {
		_, err := r.Remember(ctx, "  \n ", 3600000)
		assert.True(t, helper.IsCode(err, helper.CodeInvalidInput), "Expected an invalid input error")
	})
}

func TestRecallerCuration(t *testing.T) {
	r := initRecaller(t)
	ctx := context.Background()

	processing := pipeline.NewPipeline(nil)
	processing.SetExtractor(testExtractor())
	r.SetPipeline(processing)

	fact, err := r.Remember(ctx, "Berlin hosts the startup summit.", 3600000)
	require.NoError(t, err, "failed to remember fact")
	require.Len(t, fact.Entities, 1, "expected the fact entity")

	t.Run("Unexpired listing shows the held fact", func(t *testing.T) {
		summaries, err := r.ListUnexpiredDocuments(ctx)
		require.NoError(t, err, "Expected ListUnexpiredDocuments to not return an error")
		require.Len(t, summaries, 1, "Expected the fact document to be listed")
		assert.Equal(t, fact.DocumentID, summaries[0].ID, "Expected the fact document id")
		assert.Contains(t, summaries[0].Snippet, "Berlin hosts", "Expected a content snippet")
		assert.Equal(t, []string{"berlin"}, summaries[0].Entities, "Expected the holding entity names")
	})

	t.Run("Pin makes the fact permanent", func(t *testing.T) {
		count, err := r.PinDocument(ctx, fact.DocumentID)
		require.NoError(t, err, "Expected PinDocument to not return an error")
		assert.Equal(t, 5, count, "Expected the document, paragraph, part_of and both mentions to be stamped")

		summaries, err := r.ListUnexpiredDocuments(ctx)
		require.NoError(t, err, "Expected ListUnexpiredDocuments to not return an error")
		assert.Empty(t, summaries, "Expected the pinned document to leave the listing")

		results, err := r.Fetch(ctx, fact.Entities, 5)
		require.NoError(t, err, "Expected Fetch to not return an error")
		assert.Len(t, results, 1, "Expected the pinned fact to stay fetchable")
	})

	t.Run("Expire hides the fact and the sweep evicts it", func(t *testing.T) {
		count, err := r.ExpireDocument(ctx, fact.DocumentID, 0)
		require.NoError(t, err, "Expected ExpireDocument to not return an error")
		assert.Equal(t, 5, count, "Expected the whole sub-graph to be stamped")

		results, err := r.Fetch(ctx, fact.Entities, 5)
		require.NoError(t, err, "Expected Fetch to not return an error")
		assert.Empty(t, results, "Expected the expired fact to be invisible")

		relations, nodes, err := r.SweepNow(ctx)
		require.NoError(t, err, "Expected SweepNow to not return an error")
		assert.Equal(t, 3, relations, "Expected the part_of and both mentions to be evicted")
		assert.Equal(t, 2, nodes, "Expected the document and paragraph nodes to be evicted")

		_, err = r.ShortTerm.Documents.SelectDocument(ctx, fact.DocumentID)
		assert.Error(t, err, "Expected the fact document to be gone")
	})

	t.Run("Validate flags the document for a strict committer", func(t *testing.T) {
		reviewed, err := r.Remember(ctx, "Berlin expands the transit network.", 3600000)
		require.NoError(t, err, "failed to remember fact")

		document, err := r.ValidateDocument(ctx, reviewed.DocumentID, true)
		require.NoError(t, err, "Expected ValidateDocument to not return an error")
		assert.True(t, document.Validated, "Expected the document to be validated")
	})
}

func TestRecallerCacheCycle(t *testing.T) {
	r := initRecaller(t)
	ctx := context.Background()

	processing := pipeline.NewPipeline(nil)
	processing.SetExtractor(testExtractor())
	r.SetPipeline(processing)

	fact, err := r.Remember(ctx, "Vodafone opened a Berlin office.", 3600000)
	require.NoError(t, err, "failed to remember fact")
	require.Len(t, fact.Entities, 2, "expected both fact entities")

	t.Run("Commit copies the fact into the long-term store", func(t *testing.T) {
		committed, err := r.CommitNow(ctx)
		require.NoError(t, err, "Expected CommitNow to not return an error")
		assert.Equal(t, 1, committed, "Expected the fact document to be committed")

		document, err := r.LongTerm.Documents.SelectDocument(ctx, fact.DocumentID)
		require.NoError(t, err, "Expected the fact document in the long-term store")
		assert.Equal(t, int64(0), document.Expiration, "Expected the committed copy to carry no deadline")
		assert.False(t, document.Committed, "Expected the authoritative copy to not be flagged")

		workingCopy, err := r.ShortTerm.Documents.SelectDocument(ctx, fact.DocumentID)
		require.NoError(t, err, "Expected the working copy to remain")
		assert.True(t, workingCopy.Committed, "Expected the working copy to be marked committed")
	})

	t.Run("Flush clears the working set", func(t *testing.T) {
		require.NoError(t, r.FlushShortTerm(ctx), "Expected FlushShortTerm to not return an error")

		results, err := r.Fetch(ctx, fact.Entities, 5)
		require.NoError(t, err, "Expected Fetch to not return an error")
		assert.Empty(t, results, "Expected an empty working set after the flush")
	})

	t.Run("Promotion restores the fact from the long-term store", func(t *testing.T) {
		key, err := model.NewEntityKey("vodafone", "ORG")
		require.NoError(t, err, "failed to create entity key")

		outcomes, err := r.Promote(ctx, r.NewSession(), []model.EntityKey{key}, 3600000)
		require.NoError(t, err, "Expected Promote to not return an error")
		require.Len(t, outcomes, 1, "Expected one outcome")
		assert.Equal(t, 1, outcomes[0].Documents, "Expected the committed fact document to be promoted")
		assert.Equal(t, 1, outcomes[0].Paragraphs, "Expected the fact paragraph to be promoted")
		assert.Equal(t, 2, outcomes[0].Mentions, "Expected the document and paragraph mentions to be written")

		results, err := r.Fetch(ctx, []model.EntityKey{key}, 5)
		require.NoError(t, err, "Expected Fetch to not return an error")
		require.Len(t, results, 1, "Expected the restored fact paragraph")
		assert.Equal(t, "Vodafone opened a Berlin office.", results[0].Text, "Expected the fact text")
	})
}

func TestRecallerRelatedEntities(t *testing.T) {
	r := initRecaller(t)
	ctx := context.Background()

	vodafone, err := model.NewEntityKey("vodafone", "ORG")
	require.NoError(t, err, "Expected NewEntityKey to not return an error")
	berlin, err := model.NewEntityKey("berlin", "LOC")
	require.NoError(t, err, "Expected NewEntityKey to not return an error")
	siemens, err := model.NewEntityKey("siemens", "ORG")
	require.NoError(t, err, "Expected NewEntityKey to not return an error")

	// Chain vodafone - berlin - siemens through two shared documents.
	seedKnowledge(t, r, vodafone, "doc-rel-1")
	seedKnowledge(t, r, siemens, "doc-rel-2")
	require.NoError(t, r.LongTerm.Entities.UpsertEntity(ctx, &model.Entity{ID: berlin.ID(), Name: berlin.Name, Label: berlin.Label}), "failed to upsert entity")
	for _, documentID := range []string{"doc-rel-1", "doc-rel-2"} {
		mention := &model.Mention{EntityID: berlin.ID(), TargetKind: model.TargetParagraph, TargetID: model.ParagraphID(documentID, 0)}
		require.NoError(t, r.LongTerm.Mentions.UpsertMention(ctx, mention), "failed to upsert mention")
	}

	t.Run("Walk with the default depth", func(t *testing.T) {
		related, err := r.RelatedEntities(ctx, "Vodafone", "org", 0)
		require.NoError(t, err, "Expected RelatedEntities to not return an error")
		require.Len(t, related, 3, "Expected the whole chain within two hops")

		assert.Equal(t, "vodafone", related[0].Entity.Name, "Expected the source first")
		assert.Equal(t, 0, related[0].Distance, "Expected the source at distance 0")
		assert.Equal(t, "berlin", related[1].Entity.Name, "Expected berlin at one hop")
		assert.Equal(t, "siemens", related[2].Entity.Name, "Expected siemens at two hops")
		assert.Equal(t, 2, related[2].Distance, "Expected siemens at distance 2")
	})

	t.Run("Single hop walk", func(t *testing.T) {
		related, err := r.RelatedEntities(ctx, "vodafone", "ORG", 1)
		require.NoError(t, err, "Expected RelatedEntities to not return an error")
		require.Len(t, related, 2, "Expected only the direct neighbour")
		assert.Equal(t, "berlin", related[1].Entity.Name, "Expected berlin as the direct neighbour")
	})

	t.Run("Blank name is rejected", func(t *testing.T) {
		_, err := r.RelatedEntities(ctx, " ", "ORG", 1)
		assert.True(t, helper.IsCode(err, helper.CodeInvalidInput), "Expected an invalid input error")
	})

	t.Run("Unknown entity is rejected", func(t *testing.T) {
		_, err := r.RelatedEntities(ctx, "ghost", "ORG", 1)
		assert.True(t, helper.IsCode(err, helper.CodeInvalidInput), "Expected an invalid input error")
	})
}

func TestBuildAnswerContext(t *testing.T) {
	t.Run("Renders one block per paragraph", func(t *testing.T) {
		results := []*model.ParagraphResult{
			{Text: "First line.\nSecond line.", Index: 0, DocumentTitle: "Doc A", MatchCount: 2},
			{Text: "Other paragraph.", Index: 3, DocumentTitle: "Doc B", MatchCount: 1},
		}

		answerContext := buildAnswerContext(results)
		assert.True(t, strings.HasPrefix(answerContext, "---\nDoc: Doc A | Para #0 | Matches: 2\n"), "Expected the first block header")
		assert.Contains(t, answerContext, "First line. Second line.", "Expected newlines replaced by spaces")
		assert.Contains(t, answerContext, "---\nDoc: Doc B | Para #3 | Matches: 1\nOther paragraph.", "Expected the second block")
	})

	t.Run("Truncates long paragraphs", func(t *testing.T) {
		results := []*model.ParagraphResult{{Text: strings.Repeat("a", 400), Index: 0, DocumentTitle: "Doc", MatchCount: 1}}

		answerContext := buildAnswerContext(results)
		assert.True(t, strings.HasSuffix(answerContext, "…"), "Expected a truncation marker")
		assert.Contains(t, answerContext, strings.Repeat("a", 350), "Expected 350 characters to survive")
		assert.NotContains(t, answerContext, strings.Repeat("a", 351), "Expected the rest to be cut")
	})

	t.Run("Empty results render empty", func(t *testing.T) {
		assert.Empty(t, buildAnswerContext(nil), "Expected no context without results")
	})
}
