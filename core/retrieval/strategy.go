package retrieval

import (
	"context"
	"fmt"

	"github.com/siherrmann/factual/core/index"
	"github.com/siherrmann/factual/database"
	"github.com/siherrmann/factual/helper"
	"github.com/siherrmann/factual/model"
)

// Strategy finds the facts nearest to a normalized query vector.
// Hits are ordered by similarity descending with ties in corpus order,
// limited to topK and floored at minSim.
type Strategy interface {
	Search(ctx context.Context, query []float32, topK int, minSim float64) ([]model.RetrievalHit, error)
	Name() string
}

// IndexStrategy searches the in-memory index with a linear scan
type IndexStrategy struct {
	index *index.Index
}

// NewIndexStrategy creates a new in-memory strategy
func NewIndexStrategy(idx *index.Index) *IndexStrategy {
	return &IndexStrategy{index: idx}
}

// Search performs an exact search over the index
func (s *IndexStrategy) Search(ctx context.Context, query []float32, topK int, minSim float64) ([]model.RetrievalHit, error) {
	return s.index.Search(query, topK, minSim)
}

// Name returns the strategy name
func (s *IndexStrategy) Name() string {
	return "index"
}

// DatabaseStrategy searches the pgvector mirror of the index.
// Hits are resolved back to the facts of the in-memory index by corpus position.
type DatabaseStrategy struct {
	facts *database.FactsDBHandler
	index *index.Index
}

// NewDatabaseStrategy creates a new pgvector strategy
func NewDatabaseStrategy(facts *database.FactsDBHandler, idx *index.Index) *DatabaseStrategy {
	return &DatabaseStrategy{facts: facts, index: idx}
}

// Search performs the similarity search in the database
func (s *DatabaseStrategy) Search(ctx context.Context, query []float32, topK int, minSim float64) ([]model.RetrievalHit, error) {
	hits, err := s.facts.SelectFactsBySimilarity(ctx, query, topK, minSim)
	if err != nil {
		return nil, helper.NewError("select facts by similarity", err)
	}

	for i := range hits {
		if hits[i].Index < 0 || hits[i].Index >= s.index.Len() {
			return nil, fmt.Errorf("database returned unknown fact position %d, is the mirror stale?", hits[i].Index)
		}
		hits[i].Fact = s.index.Fact(hits[i].Index)
	}

	return hits, nil
}

// Name returns the strategy name
func (s *DatabaseStrategy) Name() string {
	return "database"
}

// Publish mirrors all facts and vectors of the index into the database,
// replacing whatever was stored before.
func Publish(ctx context.Context, facts *database.FactsDBHandler, idx *index.Index) error {
	embeddings := make([][]float32, idx.Len())
	for i := range embeddings {
		embeddings[i] = idx.Vector(i)
	}

	err := facts.ReplaceFacts(ctx, idx.Facts(), embeddings)
	if err != nil {
		return helper.NewError("publish index", err)
	}
	return nil
}
