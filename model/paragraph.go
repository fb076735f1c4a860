package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Paragraph represents one paragraph of a document.
type Paragraph struct {
	RID        uuid.UUID `json:"rid"`
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Text       string    `json:"text"`
	Index      int       `json:"index"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Expiration int64     `json:"expiration"`
	CreatedAt  time.Time `json:"created_at"`
}

// ParagraphID returns the stable paragraph key <document id>#<index>.
func ParagraphID(documentID string, index int) string {
	return fmt.Sprintf("%s#%d", documentID, index)
}
