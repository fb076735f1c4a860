package recaller

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/siherrmann/recaller/core/cache"
	"github.com/siherrmann/recaller/core/graph"
	"github.com/siherrmann/recaller/core/ingest"
	"github.com/siherrmann/recaller/core/maintenance"
	"github.com/siherrmann/recaller/core/pipeline"
	"github.com/siherrmann/recaller/core/retrieval"
	"github.com/siherrmann/recaller/database"
	"github.com/siherrmann/recaller/helper"
	"github.com/siherrmann/recaller/model"
)

// twoDaysMillis is how far into the past ExpireDocument stamps a document,
// keeping it invisible even for readers with a skewed clock.
const twoDaysMillis = int64(172800000)

// defaultRelatedHops bounds the co-mention walk when the caller passes no limit.
const defaultRelatedHops = 2

// AnswerFunc generates an answer from a question and the retrieved context.
type AnswerFunc func(question string, context string) (string, error)

// Recaller provides a unified interface over both store tiers: the
// authoritative long-term store and the TTL-scoped short-term working set.
type Recaller struct {
	LongTerm  *database.Store
	ShortTerm *database.Store
	Promoter  *cache.Promoter
	Engine    *retrieval.Engine
	Sweeper   *maintenance.Sweeper
	Committer *maintenance.Committer
	Pipeline  *pipeline.Pipeline // Optional processing pipeline
	config    *model.RecallerConfig
	reranker  retrieval.RerankStrategy
	answerer  AnswerFunc
	// Logging
	log *slog.Logger
}

// NewRecaller connects both stores and starts the configured maintenance
// timers. Intervals of 0 leave the timers off, maintenance then runs only
// through SweepNow and CommitNow.
func NewRecaller(config *model.RecallerConfig) (*Recaller, error) {
	if config == nil || config.LongTerm == nil || config.ShortTerm == nil {
		return nil, helper.NewCodeError("configuration validation", helper.CodeInvalidInput,
			fmt.Errorf("configuration with long-term and short-term store connections is required"))
	}

	// Logger
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	// Connect both tiers, long-term first
	longTerm, err := database.NewStore(helper.NewDatabase("longterm", config.LongTerm, logger), config.EmbeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create long-term store", err)
	}

	shortTerm, err := database.NewStore(helper.NewDatabase("shortterm", config.ShortTerm, logger), config.EmbeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create short-term store", err)
	}

	promoter, err := cache.NewPromoter(longTerm, shortTerm, config, logger)
	if err != nil {
		return nil, helper.NewError("create promoter", err)
	}

	engine, err := retrieval.NewEngine(shortTerm)
	if err != nil {
		return nil, helper.NewError("create retrieval engine", err)
	}

	sweeper, err := maintenance.NewSweeper(shortTerm, config, logger)
	if err != nil {
		return nil, helper.NewError("create sweeper", err)
	}

	committer, err := maintenance.NewCommitter(longTerm, shortTerm, config, logger)
	if err != nil {
		return nil, helper.NewError("create committer", err)
	}

	sweeper.Start()
	committer.Start()

	return &Recaller{
		LongTerm:  longTerm,
		ShortTerm: shortTerm,
		Promoter:  promoter,
		Engine:    engine,
		Sweeper:   sweeper,
		Committer: committer,
		config:    config,
		log:       logger,
	}, nil
}

// Close stops the maintenance timers and closes both store connections.
func (r *Recaller) Close() error {
	if r.Sweeper != nil {
		r.Sweeper.Stop()
	}
	if r.Committer != nil {
		r.Committer.Stop()
	}

	var closeErr error
	if r.LongTerm != nil {
		closeErr = r.LongTerm.Close()
	}
	if r.ShortTerm != nil {
		if err := r.ShortTerm.Close(); closeErr == nil {
			closeErr = err
		}
	}
	return closeErr
}

// NewSession starts an empty promotion session. Sessions keep repeated
// promotions of the same entity from hitting the stores again.
func (r *Recaller) NewSession() *cache.Session {
	return cache.NewSession()
}

// DefaultTTLMillis returns the configured promotion deadline offset.
func (r *Recaller) DefaultTTLMillis() int64 {
	return r.config.DefaultTTLMillis
}

// Promote copies the sub-graphs of the given entities into the working set,
// all stamped with one deadline derived from ttlMillis. Keys the session
// already handled are skipped, successfully promoted keys are marked handled.
// Returns one outcome per attempted key.
func (r *Recaller) Promote(ctx context.Context, session *cache.Session, keys []model.EntityKey, ttlMillis int64) ([]*model.PromotionOutcome, error) {
	nowMillis := helper.NowMillis()

	outcomes := []*model.PromotionOutcome{}
	for _, key := range keys {
		if session != nil && session.AlreadyHandled(key) {
			continue
		}

		outcome, err := r.Promoter.Promote(ctx, key, nowMillis, ttlMillis)
		if outcome != nil {
			outcomes = append(outcomes, outcome)
		}
		if err != nil {
			return outcomes, err
		}
		if session != nil {
			session.MarkHandled(key)
		}
	}

	return outcomes, nil
}

// Fetch returns the top ranked working-set paragraphs mentioning the given
// entities at the current wall clock. A topK below 1 falls back to the
// configured default.
func (r *Recaller) Fetch(ctx context.Context, keys []model.EntityKey, topK int) ([]*model.ParagraphResult, error) {
	if topK < 1 {
		topK = r.config.TopK
	}
	return r.Engine.Fetch(ctx, keys, helper.NowMillis(), topK)
}

// RelatedEntities walks the co-mention graph of the authoritative store
// around the named entity, breadth first. maxHops below 1 falls back to the
// default walk depth. The source entity leads the result with distance 0.
func (r *Recaller) RelatedEntities(ctx context.Context, name string, label string, maxHops int) ([]*graph.TraversalResult, error) {
	key, err := model.NewEntityKey(name, label)
	if err != nil {
		return nil, helper.NewCodeError("entity key validation", helper.CodeInvalidInput, err)
	}
	if maxHops < 1 {
		maxHops = defaultRelatedHops
	}
	return graph.BFS(ctx, r.LongTerm, key.ID(), maxHops, helper.NowMillis())
}

// Ask answers a question from the working set: extract the question's
// entities, promote them, fetch and rerank the mentioning paragraphs and
// hand the assembled context to the answerer. Without an answerer the
// context itself is returned as the answer.
func (r *Recaller) Ask(ctx context.Context, session *cache.Session, question string, topK int) (*model.AskResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, helper.NewCodeError("question validation", helper.CodeInvalidInput, fmt.Errorf("question must not be empty"))
	}
	if r.Pipeline == nil || r.Pipeline.Extractor == nil {
		return nil, helper.NewError("ask", fmt.Errorf("pipeline with extractor not set, use SetPipeline() first"))
	}

	keys, err := r.Pipeline.Extractor(question)
	if err != nil {
		return nil, helper.NewError("extract question entities", err)
	}

	outcomes, err := r.Promote(ctx, session, keys, r.config.DefaultTTLMillis)
	if err != nil && !helper.IsCode(err, helper.CodePartialPromotion) {
		return nil, err
	}
	if err != nil {
		r.log.Warn("Answering from a partially promoted working set", slog.Any("error", err))
	}
	r.log.Debug("Promoted question entities", slog.Int("entities", len(keys)), slog.Int("promoted", len(outcomes)))

	results, err := r.Fetch(ctx, keys, topK)
	if err != nil {
		return nil, err
	}

	if r.reranker != nil {
		results, err = r.reranker.Rerank(ctx, question, results)
		if err != nil {
			return nil, helper.NewError("rerank results", err)
		}
	}

	answerContext := buildAnswerContext(results)
	answer := answerContext
	if r.answerer != nil {
		answer, err = r.answerer(question, answerContext)
		if err != nil {
			return nil, helper.NewError("generate answer", err)
		}
	}

	return &model.AskResult{
		Answer:     answer,
		Paragraphs: results,
		Entities:   keys,
	}, nil
}

// Remember writes one fact as a synthetic single-paragraph document straight
// into the working set. The whole fact sub-graph carries the deadline, a
// ttlMillis of 0 makes the fact permanent.
func (r *Recaller) Remember(ctx context.Context, text string, ttlMillis int64) (*model.RememberedFact, error) {
	fact := strings.TrimSpace(text)
	if fact == "" {
		return nil, helper.NewCodeError("fact validation", helper.CodeInvalidInput, fmt.Errorf("fact text must not be empty"))
	}

	expiration := model.ExpirationAt(helper.NowMillis(), ttlMillis)

	title := fact
	if runes := []rune(title); len(runes) > 80 {
		title = string(runes[:80])
	}

	document := &model.Document{
		ID:         "fact/" + uuid.NewString(),
		Title:      title,
		Content:    fact,
		Category:   "fact",
		Expiration: expiration,
	}
	if err := r.ShortTerm.Documents.UpsertDocument(ctx, document); err != nil {
		return nil, err
	}

	paragraph := &model.Paragraph{
		ID:         model.ParagraphID(document.ID, 0),
		DocumentID: document.ID,
		Text:       fact,
		Index:      0,
		Expiration: expiration,
	}
	if r.Pipeline != nil && r.Pipeline.Embedder != nil {
		embedding, err := r.Pipeline.Embedder(fact)
		if err != nil {
			return nil, helper.NewError("embed fact", err)
		}
		paragraph.Embedding = embedding
	}
	if err := r.ShortTerm.Paragraphs.UpsertParagraph(ctx, paragraph); err != nil {
		return nil, err
	}
	if err := r.ShortTerm.Paragraphs.UpsertPartOf(ctx, &model.PartOf{ParagraphID: paragraph.ID, DocumentID: document.ID, Expiration: expiration}); err != nil {
		return nil, err
	}

	keys := []model.EntityKey{}
	if r.Pipeline != nil && r.Pipeline.Extractor != nil {
		extracted, err := r.Pipeline.Extractor(fact)
		if err != nil {
			r.log.Debug("Entity extraction failed for fact", slog.Any("error", err))
		} else {
			keys = extracted
		}
	}
	for _, key := range keys {
		entity := &model.Entity{ID: key.ID(), Name: key.Name, Label: key.Label, Expiration: expiration}
		if err := r.ShortTerm.Entities.UpsertEntity(ctx, entity); err != nil {
			return nil, err
		}

		documentMention := &model.Mention{EntityID: key.ID(), TargetKind: model.TargetDocument, TargetID: document.ID, Expiration: expiration}
		if err := r.ShortTerm.Mentions.UpsertMention(ctx, documentMention); err != nil {
			return nil, err
		}
		paragraphMention := &model.Mention{EntityID: key.ID(), TargetKind: model.TargetParagraph, TargetID: paragraph.ID, Expiration: expiration}
		if err := r.ShortTerm.Mentions.UpsertMention(ctx, paragraphMention); err != nil {
			return nil, err
		}
	}

	r.log.Info("Remembered fact",
		slog.String("document", document.ID),
		slog.Int("entities", len(keys)),
		slog.Int64("expiration", expiration),
	)

	return &model.RememberedFact{
		DocumentID: document.ID,
		Title:      document.Title,
		Entities:   keys,
		Expiration: expiration,
	}, nil
}

// PinDocument makes a working-set document permanent by stamping expiration
// 0 on its whole sub-graph. Returns the number of stamped rows.
func (r *Recaller) PinDocument(ctx context.Context, documentID string) (int, error) {
	count, err := r.ShortTerm.Documents.SetDocumentExpiration(ctx, documentID, 0)
	if err != nil {
		return 0, err
	}

	r.log.Info("Pinned document", slog.String("document", documentID), slog.Int("rows", count))
	return count, nil
}

// ExpireDocument force-expires a working-set document by stamping a deadline
// two days before asOfMillis on its whole sub-graph, the next sweep then
// evicts it. An asOfMillis of 0 means the current wall clock.
func (r *Recaller) ExpireDocument(ctx context.Context, documentID string, asOfMillis int64) (int, error) {
	if asOfMillis <= 0 {
		asOfMillis = helper.NowMillis()
	}

	count, err := r.ShortTerm.Documents.SetDocumentExpiration(ctx, documentID, asOfMillis-twoDaysMillis)
	if err != nil {
		return 0, err
	}

	r.log.Info("Expired document", slog.String("document", documentID), slog.Int("rows", count))
	return count, nil
}

// ValidateDocument marks a working-set document as reviewed, making it
// commit eligible under a strict committer configuration.
func (r *Recaller) ValidateDocument(ctx context.Context, documentID string, validated bool) (*model.Document, error) {
	return r.ShortTerm.Documents.SetDocumentValidated(ctx, documentID, validated)
}

// ListUnexpiredDocuments lists the working-set documents still held by a
// deadline in the future at the current wall clock. Permanent documents are
// not listed, they need no curation.
func (r *Recaller) ListUnexpiredDocuments(ctx context.Context) ([]*model.DocumentSummary, error) {
	return r.ShortTerm.Documents.SelectUnexpiredDocuments(ctx, helper.NowMillis())
}

// SweepNow evicts every expired row from the working set and returns the
// evicted relation and node counts.
func (r *Recaller) SweepNow(ctx context.Context) (int, int, error) {
	return r.Sweeper.RunToCompletion(ctx, helper.NowMillis(), r.config.BatchSize)
}

// CommitNow copies every commit-eligible working-set document into the
// authoritative store and returns how many documents were committed.
func (r *Recaller) CommitNow(ctx context.Context) (int, error) {
	return r.Committer.CommitEligible(ctx)
}

// FlushShortTerm drops every row from the working set, committed or not.
func (r *Recaller) FlushShortTerm(ctx context.Context) error {
	return r.ShortTerm.Maintenance.WipeStore(ctx)
}

// IngestDirectory bulk-loads a directory of categorized text files into the
// authoritative store using the configured pipeline.
func (r *Recaller) IngestDirectory(ctx context.Context, dir string) (*ingest.Result, error) {
	ingestor, err := ingest.NewIngestor(r.LongTerm, r.Pipeline, r.log)
	if err != nil {
		return nil, err
	}
	return ingestor.IngestDirectory(ctx, dir)
}

// SetPipeline sets the processing pipeline used by Ask, Remember and
// IngestDirectory.
func (r *Recaller) SetPipeline(processing *pipeline.Pipeline) {
	r.Pipeline = processing
}

// UseDefaultPipeline wires the bundled models: paragraph chunking, the
// all-MiniLM-L6-v2 embedder (384 dimensions) and the distilbert NER
// extractor. The first call downloads both models.
func (r *Recaller) UseDefaultPipeline() error {
	processing, err := pipeline.NewDefaultPipeline()
	if err != nil {
		return helper.NewError("create default pipeline", err)
	}

	r.Pipeline = processing
	return nil
}

// SetAnswerer sets the answer generator used by Ask.
func (r *Recaller) SetAnswerer(answerer AnswerFunc) {
	r.answerer = answerer
}

// SetReranker sets the strategy reordering fetched paragraphs before
// answering.
func (r *Recaller) SetReranker(strategy retrieval.RerankStrategy) {
	r.reranker = strategy
}

// buildAnswerContext renders retrieved paragraphs as one prompt-ready block.
func buildAnswerContext(results []*model.ParagraphResult) string {
	var builder strings.Builder
	for _, result := range results {
		snippet := strings.ReplaceAll(result.Text, "\n", " ")
		if runes := []rune(snippet); len(runes) > 350 {
			snippet = string(runes[:350]) + "…"
		}
		fmt.Fprintf(&builder, "\n---\nDoc: %s | Para #%d | Matches: %d\n%s", result.DocumentTitle, result.Index, result.MatchCount, snippet)
	}
	return strings.TrimPrefix(builder.String(), "\n")
}
