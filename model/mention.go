package model

import (
	"time"

	"github.com/google/uuid"
)

// TargetKind selects the node type a mention points at.
type TargetKind string

const (
	TargetDocument  TargetKind = "document"
	TargetParagraph TargetKind = "paragraph"
)

// Mention represents an entity mention edge pointing at a document or a
// paragraph. Visibility is a property of the edge, not of its endpoints.
type Mention struct {
	RID        uuid.UUID  `json:"rid"`
	EntityID   uuid.UUID  `json:"entity_id"`
	TargetKind TargetKind `json:"target_kind"`
	TargetID   string     `json:"target_id"`
	Expiration int64      `json:"expiration"`
	CreatedAt  time.Time  `json:"created_at"`
}

// PartOf links a paragraph to its parent document. At most one per paragraph.
type PartOf struct {
	RID         uuid.UUID `json:"rid"`
	ParagraphID string    `json:"paragraph_id"`
	DocumentID  string    `json:"document_id"`
	Expiration  int64     `json:"expiration"`
	CreatedAt   time.Time `json:"created_at"`
}
