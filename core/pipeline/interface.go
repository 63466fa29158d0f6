package pipeline

import (
	"context"
	"fmt"

	"github.com/siherrmann/factual/model"
)

// EmbedFunc is a function that generates embeddings for text
type EmbedFunc func(text string) ([]float32, error)

// NLIFunc scores a (premise, hypothesis) pair and returns the raw class scores of the model
type NLIFunc func(ctx context.Context, premise string, hypothesis string) ([]model.LabelScore, error)

// SentimentFunc returns the sentiment scores of a text
type SentimentFunc func(ctx context.Context, text string) (model.SentimentScores, error)

// Embedder maps texts to fixed-dimension vectors, one per text in input order
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

// funcEmbedder adapts an EmbedFunc to the Embedder interface
type funcEmbedder struct {
	embed EmbedFunc
	name  string
}

// NewFuncEmbedder wraps a single text EmbedFunc into an Embedder.
// Texts are embedded one by one and the context is checked between calls.
func NewFuncEmbedder(name string, embed EmbedFunc) Embedder {
	return &funcEmbedder{embed: embed, name: name}
}

func (e *funcEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, 0, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		embedding, err := e.embed(text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		embeddings = append(embeddings, embedding)
	}
	return embeddings, nil
}

func (e *funcEmbedder) ModelName() string {
	return e.name
}

// Oracles bundles the three opaque models the verification pipeline depends on
type Oracles struct {
	Embedder  Embedder
	NLI       NLIFunc
	Sentiment SentimentFunc
}

// Validate checks that every oracle is set
func (o Oracles) Validate() error {
	if o.Embedder == nil {
		return fmt.Errorf("embedder is required")
	}
	if o.NLI == nil {
		return fmt.Errorf("nli classifier is required")
	}
	if o.Sentiment == nil {
		return fmt.Errorf("sentiment analyzer is required")
	}
	return nil
}
