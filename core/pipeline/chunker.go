package pipeline

import (
	"fmt"
	"strings"
)

// ParagraphChunker creates a chunker that splits on blank lines.
// Empty paragraphs are dropped, the rest is trimmed.
func ParagraphChunker() ChunkFunc {
	return func(text string) ([]string, error) {
		var paragraphs []string
		for _, paragraph := range strings.Split(text, "\n\n") {
			paragraph = strings.TrimSpace(paragraph)
			if paragraph == "" {
				continue
			}
			paragraphs = append(paragraphs, paragraph)
		}
		return paragraphs, nil
	}
}

// SentenceChunker creates a chunker that groups sentences into paragraphs
// of at most maxSentencesPerChunk sentences.
func SentenceChunker(maxSentencesPerChunk int) ChunkFunc {
	return func(text string) ([]string, error) {
		if maxSentencesPerChunk <= 0 {
			return nil, fmt.Errorf("max sentences per chunk must be positive")
		}

		if strings.TrimSpace(text) == "" {
			return []string{}, nil
		}

		text = strings.ReplaceAll(text, "! ", "!|")
		text = strings.ReplaceAll(text, "? ", "?|")
		text = strings.ReplaceAll(text, ". ", ".|")

		var sentences []string
		for _, sentence := range strings.Split(text, "|") {
			sentence = strings.TrimSpace(sentence)
			if sentence != "" {
				sentences = append(sentences, sentence)
			}
		}

		var paragraphs []string
		var currentChunk []string
		for _, sentence := range sentences {
			currentChunk = append(currentChunk, sentence)
			if len(currentChunk) >= maxSentencesPerChunk {
				paragraphs = append(paragraphs, strings.Join(currentChunk, " "))
				currentChunk = nil
			}
		}
		if len(currentChunk) > 0 {
			paragraphs = append(paragraphs, strings.Join(currentChunk, " "))
		}

		return paragraphs, nil
	}
}
