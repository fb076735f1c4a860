package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEntityLabel(t *testing.T) {
	assert.Equal(t, "PER", normalizeEntityLabel("B-PER"), "Expected the B- prefix to be stripped")
	assert.Equal(t, "ORG", normalizeEntityLabel("I-ORG"), "Expected the I- prefix to be stripped")
	assert.Equal(t, "LOC", normalizeEntityLabel("LOC"), "Expected plain labels to pass through")
	assert.Equal(t, "O", normalizeEntityLabel("O"), "Expected the outside label to pass through")
}

func TestDefaultEntityExtractor(t *testing.T) {
	// DefaultEntityExtractor downloads the distilbert-NER model on first use.

	t.Run("Create entity extractor", func(t *testing.T) {
		if testing.Short() {
			t.Skip("Skipping DefaultEntityExtractor test in short mode (requires model download)")
		}

		extractor, err := DefaultEntityExtractor()
		require.NoError(t, err)
		assert.NotNil(t, extractor)
	})

	t.Run("Extract entities from text", func(t *testing.T) {
		if testing.Short() {
			t.Skip("Skipping DefaultEntityExtractor test in short mode (requires model download)")
		}

		extractor, err := DefaultEntityExtractor()
		require.NoError(t, err)

		keys, err := extractor("My name is Wolfgang and I live in Berlin.")
		assert.NoError(t, err)

		t.Logf("Detected %d entities:", len(keys))
		for _, key := range keys {
			t.Logf("  - %v", key)
			assert.NotEmpty(t, key.Name, "Expected a normalized entity name")
			assert.NotEmpty(t, key.Label, "Expected a normalized entity label")
		}
	})

	t.Run("Repeated entities are deduplicated", func(t *testing.T) {
		if testing.Short() {
			t.Skip("Skipping DefaultEntityExtractor test in short mode (requires model download)")
		}

		extractor, err := DefaultEntityExtractor()
		require.NoError(t, err)

		keys, err := extractor("Berlin is big. Berlin is old. Berlin is loud.")
		assert.NoError(t, err)

		seen := make(map[string]int)
		for _, key := range keys {
			seen[key.Name+"|"+key.Label]++
		}
		for key, count := range seen {
			assert.Equal(t, 1, count, "Expected key %v to appear once", key)
		}
	})

	t.Run("Text without entities", func(t *testing.T) {
		if testing.Short() {
			t.Skip("Skipping DefaultEntityExtractor test in short mode (requires model download)")
		}

		extractor, err := DefaultEntityExtractor()
		require.NoError(t, err)

		keys, err := extractor("it was raining all day long")
		assert.NoError(t, err)
		t.Logf("Detected %d entities in plain text", len(keys))
	})
}
