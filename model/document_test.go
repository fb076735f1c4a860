package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocumentFromFile(t *testing.T) {
	t.Run("Create document from file", func(t *testing.T) {
		dir := t.TempDir()
		filePath := filepath.Join(dir, "networks.txt")
		content := "European Carriers\n\nVodafone operates across Europe.\n\nIt pioneered mobile payments."
		err := os.WriteFile(filePath, []byte(content), 0600)
		require.NoError(t, err, "Expected test file creation to succeed")

		doc, err := NewDocumentFromFile(filePath, "telecom", Metadata{"source": "test"})

		require.NoError(t, err, "Expected NewDocumentFromFile to not return an error")
		assert.NotEmpty(t, doc.ID, "Expected document to get a fresh id")
		assert.Equal(t, "European Carriers", doc.Title, "Expected the first line to become the title")
		assert.Equal(t, "Vodafone operates across Europe.\n\nIt pioneered mobile payments.", doc.Content,
			"Expected the remaining lines to become the content")
		assert.Equal(t, "telecom", doc.Category, "Expected the category to be carried over")
		assert.Equal(t, Metadata{"source": "test"}, doc.Metadata, "Expected the metadata to be carried over")
	})

	t.Run("Fall back to filename for empty first line", func(t *testing.T) {
		dir := t.TempDir()
		filePath := filepath.Join(dir, "untitled-notes.txt")
		err := os.WriteFile(filePath, []byte("\nBody only."), 0600)
		require.NoError(t, err, "Expected test file creation to succeed")

		doc, err := NewDocumentFromFile(filePath, "", nil)

		require.NoError(t, err, "Expected NewDocumentFromFile to not return an error")
		assert.Equal(t, "untitled-notes", doc.Title, "Expected the filename without extension as fallback title")
		assert.Equal(t, "Body only.", doc.Content, "Expected the content to be trimmed")
	})

	t.Run("Handle windows line endings", func(t *testing.T) {
		dir := t.TempDir()
		filePath := filepath.Join(dir, "crlf.txt")
		err := os.WriteFile(filePath, []byte("Title\r\nFirst line.\r\nSecond line."), 0600)
		require.NoError(t, err, "Expected test file creation to succeed")

		doc, err := NewDocumentFromFile(filePath, "", nil)

		require.NoError(t, err, "Expected NewDocumentFromFile to not return an error")
		assert.Equal(t, "Title", doc.Title, "Expected the title without carriage return")
		assert.Equal(t, "First line.\nSecond line.", doc.Content, "Expected normalized line endings in content")
	})

	t.Run("Return error for missing file", func(t *testing.T) {
		_, err := NewDocumentFromFile("/nonexistent/missing.txt", "", nil)

		assert.Error(t, err, "Expected NewDocumentFromFile to fail for a missing file")
	})

	t.Run("Fresh id per document", func(t *testing.T) {
		dir := t.TempDir()
		filePath := filepath.Join(dir, "dup.txt")
		err := os.WriteFile(filePath, []byte("Same\nContent."), 0600)
		require.NoError(t, err, "Expected test file creation to succeed")

		first, err := NewDocumentFromFile(filePath, "", nil)
		require.NoError(t, err, "Expected NewDocumentFromFile to not return an error")
		second, err := NewDocumentFromFile(filePath, "", nil)
		require.NoError(t, err, "Expected NewDocumentFromFile to not return an error")

		assert.NotEqual(t, first.ID, second.ID, "Expected each document to get its own id")
	})
}

func TestParagraphID(t *testing.T) {
	t.Run("Format document id and index", func(t *testing.T) {
		assert.Equal(t, "doc-1#0", ParagraphID("doc-1", 0), "Expected paragraph id to join document id and index")
		assert.Equal(t, "doc-1#12", ParagraphID("doc-1", 12), "Expected paragraph id to join document id and index")
	})
}
