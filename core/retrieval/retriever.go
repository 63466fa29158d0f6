package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/siherrmann/factual/core/index"
	"github.com/siherrmann/factual/core/pipeline"
	"github.com/siherrmann/factual/helper"
	"github.com/siherrmann/factual/model"
)

// Option configures a Retriever
type Option func(*Retriever)

// WithStrategy replaces the default in-memory search
func WithStrategy(strategy Strategy) Option {
	return func(r *Retriever) {
		r.strategy = strategy
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) {
		r.logger = logger
	}
}

// Retriever finds the corpus facts semantically closest to a claim
type Retriever struct {
	index    *index.Index
	embedder pipeline.Embedder
	strategy Strategy
	logger   *slog.Logger
	topK     int
	minSim   float64
}

// NewRetriever creates a new retriever with top k and similarity floor taken from config
func NewRetriever(idx *index.Index, embedder pipeline.Embedder, config model.VerifyConfig, opts ...Option) (*Retriever, error) {
	if idx == nil {
		return nil, fmt.Errorf("index is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if config.TopK <= 0 {
		return nil, fmt.Errorf("top k must be positive, got %d", config.TopK)
	}

	r := &Retriever{
		index:    idx,
		embedder: embedder,
		strategy: NewIndexStrategy(idx),
		logger:   slog.Default(),
		topK:     config.TopK,
		minSim:   config.MinSimilarity,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Retrieve embeds the claim and returns the nearest facts.
// An empty corpus returns no hits without calling the embedder.
func (r *Retriever) Retrieve(ctx context.Context, claim string) ([]model.RetrievalHit, error) {
	if r.index.Len() == 0 {
		return []model.RetrievalHit{}, nil
	}

	embeddings, err := r.embedder.Embed(ctx, []string{claim})
	if err != nil {
		return nil, helper.NewError("embed claim", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one claim", len(embeddings))
	}

	hits, err := r.strategy.Search(ctx, index.Normalize(embeddings[0]), r.topK, r.minSim)
	if err != nil {
		return nil, helper.NewError(r.strategy.Name()+" search", err)
	}

	r.logger.Debug("Retrieved facts", slog.String("strategy", r.strategy.Name()), slog.Int("hits", len(hits)))

	return hits, nil
}

// Len returns the number of facts that can be retrieved
func (r *Retriever) Len() int {
	return r.index.Len()
}
