package model

import "github.com/google/uuid"

// MentionedParagraph is one visible (entity, paragraph) mention pair as read
// from the store. Grouping, ranking and truncation happen in the retrieval
// engine.
type MentionedParagraph struct {
	EntityID         uuid.UUID `json:"entity_id"`
	ParagraphID      string    `json:"paragraph_id"`
	Text             string    `json:"text"`
	Index            int       `json:"index"`
	Embedding        []float32 `json:"embedding,omitempty"`
	DocumentID       string    `json:"document_id"`
	DocumentTitle    string    `json:"document_title"`
	DocumentCategory string    `json:"document_category"`
}

// PromotionSource is one resolved source document paired with one of its
// paragraphs, as read from the authoritative store during promotion.
// Paragraph is nil for documents without paragraphs.
type PromotionSource struct {
	Document  *Document  `json:"document"`
	Paragraph *Paragraph `json:"paragraph,omitempty"`
}

// ParagraphResult represents a paragraph retrieved for a set of entities
type ParagraphResult struct {
	Text             string    `json:"text"`
	Index            int       `json:"index"`
	DocumentID       string    `json:"document_id"`
	DocumentTitle    string    `json:"document_title"`
	DocumentCategory string    `json:"document_category"`
	MatchCount       int       `json:"match_count"` // Distinct query entities mentioning the paragraph
	Score            float64   `json:"score,omitempty"`
	Embedding        []float32 `json:"embedding,omitempty"`
}

// PromotionOutcome reports what one promotion wrote into the working set.
// All counts are zero when the entity had no visible source mentions.
type PromotionOutcome struct {
	Key        EntityKey `json:"key"`
	Documents  int       `json:"documents"`
	Paragraphs int       `json:"paragraphs"`
	Mentions   int       `json:"mentions"`
	Expiration int64     `json:"expiration"`
}

// AskResult bundles an answer with the paragraphs and entities behind it
type AskResult struct {
	Answer     string             `json:"answer"`
	Paragraphs []*ParagraphResult `json:"paragraphs"`
	Entities   []EntityKey        `json:"entities"`
}

// RememberedFact reports what a direct fact insertion wrote into the
// working set.
type RememberedFact struct {
	DocumentID string      `json:"document_id"`
	Title      string      `json:"title"`
	Entities   []EntityKey `json:"entities"`
	Expiration int64       `json:"expiration"`
}

// DocumentSummary lists an unexpired working-set document for curation
type DocumentSummary struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Snippet  string   `json:"snippet"`
	Entities []string `json:"entities"`
}
