package pipeline

import "github.com/siherrmann/recaller/model"

// ChunkFunc is a function that splits a document body into paragraphs.
// The paragraph order defines the stored paragraph index.
type ChunkFunc func(text string) ([]string, error)

// EmbedFunc is a function that generates an embedding for a text
type EmbedFunc func(text string) ([]float32, error)

// ExtractFunc extracts entity keys from text.
// Returns a deduplicated list in order of first appearance.
type ExtractFunc func(text string) ([]model.EntityKey, error)

// ProcessedParagraph is one chunked paragraph with its optional embedding
// and the entities found inside it.
type ProcessedParagraph struct {
	Text      string
	Index     int
	Embedding []float32
	Entities  []model.EntityKey
}

// Pipeline combines chunking with optional embedding and entity extraction
type Pipeline struct {
	Chunker   ChunkFunc
	Embedder  EmbedFunc   // Optional
	Extractor ExtractFunc // Optional
}

// NewPipeline creates a new processing pipeline.
// A nil chunker falls back to the paragraph chunker.
func NewPipeline(chunker ChunkFunc) *Pipeline {
	if chunker == nil {
		chunker = ParagraphChunker()
	}
	return &Pipeline{Chunker: chunker}
}

// NewDefaultPipeline creates a pipeline with the paragraph chunker, the
// sentence transformer embedder and the NER entity extractor. Both models
// are downloaded on first use.
func NewDefaultPipeline() (*Pipeline, error) {
	embedder, err := DefaultEmbedder()
	if err != nil {
		return nil, err
	}
	extractor, err := DefaultEntityExtractor()
	if err != nil {
		return nil, err
	}

	pipeline := NewPipeline(ParagraphChunker())
	pipeline.SetEmbedder(embedder)
	pipeline.SetExtractor(extractor)
	return pipeline, nil
}

// SetEmbedder sets the embedding function
func (p *Pipeline) SetEmbedder(embedder EmbedFunc) {
	p.Embedder = embedder
}

// SetExtractor sets the entity extraction function
func (p *Pipeline) SetExtractor(extractor ExtractFunc) {
	p.Extractor = extractor
}

// Process chunks the text and runs the optional embedder and extractor on
// every paragraph. An embedding failure aborts, an extraction failure only
// leaves that paragraph without entities.
func (p *Pipeline) Process(text string) ([]*ProcessedParagraph, error) {
	texts, err := p.Chunker(text)
	if err != nil {
		return nil, err
	}

	paragraphs := make([]*ProcessedParagraph, 0, len(texts))
	for index, paragraphText := range texts {
		paragraph := &ProcessedParagraph{
			Text:  paragraphText,
			Index: index,
		}

		if p.Embedder != nil {
			embedding, err := p.Embedder(paragraphText)
			if err != nil {
				return nil, err
			}
			paragraph.Embedding = embedding
		}

		if p.Extractor != nil {
			entities, err := p.Extractor(paragraphText)
			if err == nil {
				paragraph.Entities = entities
			}
		}

		paragraphs = append(paragraphs, paragraph)
	}

	return paragraphs, nil
}
