package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/siherrmann/recaller/database"
	"github.com/siherrmann/recaller/helper"
	"github.com/siherrmann/recaller/model"
)

// TraversalResult is one entity reached by a walk of the co-mention graph.
type TraversalResult struct {
	Entity   *model.Entity `json:"entity"`
	Distance int           `json:"distance"`
	// Path holds the entity ids from the source to this entity.
	Path []uuid.UUID `json:"path"`
}

// BFS walks the co-mention graph outward from the source entity, breadth
// first. Two entities are neighbours when visible mentions link both to the
// same document at now, so the walk never crosses expired rows. The source
// itself comes back first with distance 0.
func BFS(ctx context.Context, store *database.Store, sourceID uuid.UUID, maxHops int, nowMillis int64) ([]*TraversalResult, error) {
	source, err := store.Entities.SelectEntity(ctx, sourceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, helper.NewCodeError("select source entity", helper.CodeInvalidInput, fmt.Errorf("entity %v not found", sourceID))
		}
		return nil, helper.NewError("select source entity", err)
	}
	if !model.IsVisible(source.Expiration, nowMillis) {
		return nil, helper.NewCodeError("select source entity", helper.CodeInvalidInput, fmt.Errorf("entity %v is expired", sourceID))
	}

	visited := map[uuid.UUID]bool{sourceID: true}
	// Co-mention lookups repeat across entities sharing a document.
	coMentions := map[string][]*model.Entity{}
	queue := []TraversalResult{{
		Entity:   source,
		Distance: 0,
		Path:     []uuid.UUID{sourceID},
	}}

	var results []*TraversalResult
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		results = append(results, &current)

		if current.Distance >= maxHops {
			continue
		}

		targets, err := store.Mentions.SelectPromotionTargets(ctx, current.Entity.ID, nowMillis)
		if err != nil {
			return nil, helper.NewError("select mention targets", err)
		}

		for _, target := range targets {
			neighbors, ok := coMentions[target.Document.ID]
			if !ok {
				neighbors, err = store.Entities.SelectCoMentionedEntities(ctx, target.Document.ID, nowMillis)
				if err != nil {
					return nil, helper.NewError("select co-mentioned entities", err)
				}
				coMentions[target.Document.ID] = neighbors
			}

			for _, neighbor := range neighbors {
				if visited[neighbor.ID] {
					continue
				}
				visited[neighbor.ID] = true

				path := make([]uuid.UUID, len(current.Path), len(current.Path)+1)
				copy(path, current.Path)
				path = append(path, neighbor.ID)

				queue = append(queue, TraversalResult{
					Entity:   neighbor,
					Distance: current.Distance + 1,
					Path:     path,
				})
			}
		}
	}

	return results, nil
}

// Neighbors retrieves the entities sharing at least one visible document
// with the given entity.
func Neighbors(ctx context.Context, store *database.Store, entityID uuid.UUID, nowMillis int64) ([]*model.Entity, error) {
	results, err := BFS(ctx, store, entityID, 1, nowMillis)
	if err != nil {
		return nil, err
	}

	neighbors := make([]*model.Entity, 0, len(results)-1)
	for i := 1; i < len(results); i++ {
		neighbors = append(neighbors, results[i].Entity)
	}

	return neighbors, nil
}
