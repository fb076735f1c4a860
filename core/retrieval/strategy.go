package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/siherrmann/recaller/helper"
	"github.com/siherrmann/recaller/model"
)

// RerankStrategy defines a reranking strategy over already fetched paragraphs
type RerankStrategy interface {
	Rerank(ctx context.Context, question string, results []*model.ParagraphResult) ([]*model.ParagraphResult, error)
}

// EmbedFunc produces one embedding vector for a text
type EmbedFunc func(text string) ([]float32, error)

// LexicalStrategy scores paragraphs by question token overlap
type LexicalStrategy struct{}

// NewLexicalStrategy creates a new lexical rerank strategy
func NewLexicalStrategy() *LexicalStrategy {
	return &LexicalStrategy{}
}

// Rerank scores each paragraph by the fraction of question tokens it contains
// and reorders by that score. Equal scores keep the fetch order.
func (s *LexicalStrategy) Rerank(ctx context.Context, question string, results []*model.ParagraphResult) ([]*model.ParagraphResult, error) {
	questionTokens := tokenize(question)
	if len(questionTokens) == 0 {
		return results, nil
	}

	for _, result := range results {
		paragraphTokens := tokenize(result.Text)
		overlap := 0
		for token := range questionTokens {
			if paragraphTokens[token] {
				overlap++
			}
		}
		result.Score = float64(overlap) / float64(len(questionTokens))
	}

	return sortByScore(results), nil
}

// EmbeddingStrategy scores paragraphs by cosine similarity to the question
type EmbeddingStrategy struct {
	embed EmbedFunc
}

// NewEmbeddingStrategy creates a new embedding rerank strategy
func NewEmbeddingStrategy(embed EmbedFunc) (*EmbeddingStrategy, error) {
	if embed == nil {
		return nil, helper.NewCodeError("embedder validation", helper.CodeInvalidInput, fmt.Errorf("embedding strategy needs an embed function"))
	}
	return &EmbeddingStrategy{embed: embed}, nil
}

// Rerank embeds the question and reorders the paragraphs by cosine similarity.
// Paragraphs without an embedding score zero and sink behind scored ones.
func (s *EmbeddingStrategy) Rerank(ctx context.Context, question string, results []*model.ParagraphResult) ([]*model.ParagraphResult, error) {
	questionEmbedding, err := s.embed(question)
	if err != nil {
		return nil, helper.NewError("embed question", err)
	}

	for _, result := range results {
		result.Score = cosineSimilarity(questionEmbedding, result.Embedding)
	}

	return sortByScore(results), nil
}

func sortByScore(results []*model.ParagraphResult) []*model.ParagraphResult {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

// tokenize lowercases and splits on everything that is not a letter or digit.
func tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, token := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		tokens[token] = true
	}
	return tokens
}

// cosineSimilarity returns 0 for empty or mismatched vectors.
func cosineSimilarity(a []float32, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
