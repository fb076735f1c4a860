package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/siherrmann/recaller/database"
	"github.com/siherrmann/recaller/helper"
	"github.com/siherrmann/recaller/model"
)

// Engine fetches and ranks working-set paragraphs for a set of entities.
// Ranking is by match count, the number of distinct query entities
// mentioning a paragraph.
type Engine struct {
	paragraphs *database.ParagraphsDBHandler
}

// NewEngine creates a new retrieval engine over the given store,
// usually the short-term one.
func NewEngine(store *database.Store) (*Engine, error) {
	if store == nil {
		return nil, helper.NewError("store validation", fmt.Errorf("retrieval engine needs a store"))
	}
	return &Engine{paragraphs: store.Paragraphs}, nil
}

// Fetch reads all paragraphs visible at nowMillis that are mentioned by at
// least one of the given entities, groups them and returns the topK best
// ranked. An empty key set returns an empty list.
func (e *Engine) Fetch(ctx context.Context, keys []model.EntityKey, nowMillis int64, topK int) ([]*model.ParagraphResult, error) {
	if topK < 1 {
		return nil, helper.NewCodeError("topK validation", helper.CodeInvalidInput, fmt.Errorf("topK must be positive, got %v", topK))
	}
	if len(keys) == 0 {
		return []*model.ParagraphResult{}, nil
	}

	entityIDs := make([]uuid.UUID, 0, len(keys))
	seenIDs := make(map[uuid.UUID]bool)
	for _, key := range keys {
		id := key.ID()
		if seenIDs[id] {
			continue
		}
		seenIDs[id] = true
		entityIDs = append(entityIDs, id)
	}

	pairs, err := e.paragraphs.SelectMentionedParagraphs(ctx, entityIDs, nowMillis)
	if err != nil {
		return nil, helper.NewCodeError("select mentioned paragraphs", helper.CodeStoreUnavailable, err)
	}

	// Group the flat (entity, paragraph) pairs by paragraph. The slice keeps
	// the read order so equal ranks stay deterministic after sorting.
	results := []*model.ParagraphResult{}
	resultMap := make(map[string]*model.ParagraphResult)
	matchedEntities := make(map[string]map[uuid.UUID]bool)
	for _, pair := range pairs {
		result, exists := resultMap[pair.ParagraphID]
		if !exists {
			result = &model.ParagraphResult{
				Text:             pair.Text,
				Index:            pair.Index,
				DocumentID:       pair.DocumentID,
				DocumentTitle:    pair.DocumentTitle,
				DocumentCategory: pair.DocumentCategory,
				Embedding:        pair.Embedding,
			}
			resultMap[pair.ParagraphID] = result
			matchedEntities[pair.ParagraphID] = make(map[uuid.UUID]bool)
			results = append(results, result)
		}
		if !matchedEntities[pair.ParagraphID][pair.EntityID] {
			matchedEntities[pair.ParagraphID][pair.EntityID] = true
			result.MatchCount++
		}
	}

	return e.sortResults(results, topK), nil
}

func (e *Engine) sortResults(results []*model.ParagraphResult, topK int) []*model.ParagraphResult {
	// Sort by match count, ties by paragraph index
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].MatchCount != results[j].MatchCount {
			return results[i].MatchCount > results[j].MatchCount
		}
		return results[i].Index < results[j].Index
	})

	// Limit to top-k
	if len(results) > topK {
		results = results[:topK]
	}

	return results
}
