package index

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/siherrmann/factual/core/pipeline"
	"github.com/siherrmann/factual/helper"
	"github.com/siherrmann/factual/model"
)

// DefaultBatchSize is the number of texts sent to the embedder at once
const DefaultBatchSize = 32

// Option configures the index build
type Option func(*buildOptions)

type buildOptions struct {
	batchSize int
}

// WithBatchSize sets the number of texts per embedder call
func WithBatchSize(size int) Option {
	return func(o *buildOptions) {
		if size > 0 {
			o.batchSize = size
		}
	}
}

// Index holds the corpus facts and one unit length embedding per fact.
// It is read-only after Build and safe for concurrent use.
type Index struct {
	facts   []model.FactRecord
	vectors []float32
	dim     int
}

// Build embeds every fact text in batches and stores the L2 normalized vectors in corpus order.
// An empty corpus gives an empty index without calling the embedder.
func Build(ctx context.Context, facts []model.FactRecord, embedder pipeline.Embedder, opts ...Option) (*Index, error) {
	options := buildOptions{batchSize: DefaultBatchSize}
	for _, opt := range opts {
		opt(&options)
	}

	idx := &Index{
		facts: make([]model.FactRecord, len(facts)),
	}
	copy(idx.facts, facts)

	if len(facts) == 0 {
		return idx, nil
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	for start := 0; start < len(facts); start += options.batchSize {
		end := min(start+options.batchSize, len(facts))

		texts := make([]string, 0, end-start)
		for _, fact := range facts[start:end] {
			texts = append(texts, fact.Text)
		}

		embeddings, err := embedder.Embed(ctx, texts)
		if err != nil {
			return nil, helper.NewError(fmt.Sprintf("embed batch %d-%d", start, end), err)
		}
		if len(embeddings) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(embeddings), len(texts))
		}

		for i, embedding := range embeddings {
			if idx.dim == 0 {
				if len(embedding) == 0 {
					return nil, fmt.Errorf("embedder returned empty vector for fact %d", start+i)
				}
				idx.dim = len(embedding)
				idx.vectors = make([]float32, 0, len(facts)*idx.dim)
			}
			if len(embedding) != idx.dim {
				return nil, fmt.Errorf("fact %d has dimension %d, expected %d", start+i, len(embedding), idx.dim)
			}
			idx.vectors = append(idx.vectors, Normalize(embedding)...)
		}
	}

	return idx, nil
}

// Len returns the number of facts
func (idx *Index) Len() int {
	return len(idx.facts)
}

// Dim returns the embedding dimension, 0 for an empty index
func (idx *Index) Dim() int {
	return idx.dim
}

// Fact returns the fact at position i
func (idx *Index) Fact(i int) *model.FactRecord {
	return &idx.facts[i]
}

// Facts returns a copy of all facts in corpus order
func (idx *Index) Facts() []model.FactRecord {
	facts := make([]model.FactRecord, len(idx.facts))
	copy(facts, idx.facts)
	return facts
}

// Vector returns a copy of the normalized embedding at position i
func (idx *Index) Vector(i int) []float32 {
	vector := make([]float32, idx.dim)
	copy(vector, idx.vectors[i*idx.dim:(i+1)*idx.dim])
	return vector
}

// Search scores the query against every fact and returns at most topK hits with
// similarity >= minSim, most similar first. Ties keep corpus order.
// The query is expected to be normalized already.
func (idx *Index) Search(query []float32, topK int, minSim float64) ([]model.RetrievalHit, error) {
	if idx.Len() == 0 || topK <= 0 {
		return []model.RetrievalHit{}, nil
	}
	if len(query) != idx.dim {
		return nil, fmt.Errorf("query has dimension %d, expected %d", len(query), idx.dim)
	}

	hits := make([]model.RetrievalHit, idx.Len())
	for i := range idx.facts {
		hits[i] = model.RetrievalHit{
			Index:      i,
			Fact:       &idx.facts[i],
			Similarity: dot(query, idx.vectors[i*idx.dim:(i+1)*idx.dim]),
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}

	result := make([]model.RetrievalHit, 0, len(hits))
	for _, hit := range hits {
		if hit.Similarity >= minSim {
			result = append(result, hit)
		}
	}
	return result, nil
}

// Normalize returns a unit length copy of v. The zero vector stays zero.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}

	normalized := make([]float32, len(v))
	if sum == 0 {
		return normalized
	}

	norm := math.Sqrt(sum)
	for i, x := range v {
		normalized[i] = float32(float64(x) / norm)
	}
	return normalized
}

func dot(a []float32, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
