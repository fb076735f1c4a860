package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// entityNamespace scopes the deterministic entity ids so both stores derive
// the same uuid for the same (name, label) pair.
var entityNamespace = uuid.MustParse("8c21f3d6-43a9-4f71-9df2-5a0c7e64b118")

// EntityKey identifies an entity by its normalized name and label.
// Construct it with NewEntityKey, the zero value is not a valid key.
type EntityKey struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// NewEntityKey trims and case-folds name (lower) and label (upper).
// Empty parts after trimming are rejected.
func NewEntityKey(name string, label string) (EntityKey, error) {
	normalizedName := strings.ToLower(strings.TrimSpace(name))
	normalizedLabel := strings.ToUpper(strings.TrimSpace(label))
	if normalizedName == "" || normalizedLabel == "" {
		return EntityKey{}, fmt.Errorf("entity name and label must be non-empty, got name %q and label %q", name, label)
	}
	return EntityKey{Name: normalizedName, Label: normalizedLabel}, nil
}

// ID returns the deterministic id of the entity, stable across stores.
func (k EntityKey) ID() uuid.UUID {
	return uuid.NewSHA1(entityNamespace, []byte(k.Name+"|"+k.Label))
}

func (k EntityKey) String() string {
	return fmt.Sprintf("%s (%s)", k.Name, k.Label)
}

// Entity represents a named entity node (person, organization, concept, etc.)
type Entity struct {
	RID        uuid.UUID `json:"rid"`
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Label      string    `json:"label"`
	Expiration int64     `json:"expiration"`
	CreatedAt  time.Time `json:"created_at"`
}

// Key returns the EntityKey of the stored entity.
func (e *Entity) Key() EntityKey {
	return EntityKey{Name: e.Name, Label: e.Label}
}
