package model

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Document represents a source document node.
// ID is the stable key shared by both stores, RID is per-store.
type Document struct {
	RID         uuid.UUID  `json:"rid"`
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Content     string     `json:"content,omitempty"`
	Category    string     `json:"category,omitempty"`
	Metadata    Metadata   `json:"metadata,omitempty"`
	Expiration  int64      `json:"expiration"`
	Validated   bool       `json:"validated"`
	Committed   bool       `json:"committed"`
	CommittedAt *time.Time `json:"committed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NewDocumentFromFile reads a text file and creates a Document with a fresh id.
// The first line becomes the title (falling back to the filename when blank),
// the remaining lines the content.
func NewDocumentFromFile(filePath string, category string, metadata Metadata) (*Document, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n")
	title := strings.TrimSpace(lines[0])
	if title == "" {
		filename := filepath.Base(filePath)
		title = filename[:len(filename)-len(filepath.Ext(filename))]
		if title == "" {
			title = filename
		}
	}
	content := strings.TrimSpace(strings.Join(lines[1:], "\n"))

	return &Document{
		ID:       uuid.NewString(),
		Title:    title,
		Content:  content,
		Category: category,
		Metadata: metadata,
	}, nil
}
