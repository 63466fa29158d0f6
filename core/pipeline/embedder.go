package pipeline

import (
	"context"
	"fmt"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/siherrmann/factual/helper"
)

// DefaultEmbeddingModel is the sentence transformer the corpus is indexed with
const DefaultEmbeddingModel = "sentence-transformers/all-MiniLM-L6-v2"

// HugotEmbedder embeds texts in batches with a local sentence transformer
type HugotEmbedder struct {
	name     string
	session  *hugot.Session
	pipeline *pipelines.FeatureExtractionPipeline
}

// DefaultEmbedder creates an embedder using a real sentence transformer model
// Uses the all-MiniLM-L6-v2 model which produces 384-dimensional embeddings
func DefaultEmbedder() (*HugotEmbedder, error) {
	return NewHugotEmbedder(DefaultEmbeddingModel)
}

// NewHugotEmbedder creates an embedder for any feature extraction model on the hub
func NewHugotEmbedder(modelName string) (*HugotEmbedder, error) {
	// Prepare model (download if needed)
	modelPath, err := helper.PrepareModel(modelName, "")
	if err != nil {
		return nil, err
	}

	// Initialize hugot session with Go backend
	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "embedder-pipeline",
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
	}

	return &HugotEmbedder{
		name:     modelName,
		session:  session,
		pipeline: sentencePipeline,
	}, nil
}

// Embed generates one embedding per text in input order
func (e *HugotEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := e.pipeline.RunPipeline(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}

	return result.Embeddings, nil
}

// EmbedFunc returns the embedder as a single text EmbedFunc
func (e *HugotEmbedder) EmbedFunc() EmbedFunc {
	return func(text string) ([]float32, error) {
		embeddings, err := e.Embed(context.Background(), []string{text})
		if err != nil {
			return nil, err
		}
		return embeddings[0], nil
	}
}

// ModelName returns the hub name of the model
func (e *HugotEmbedder) ModelName() string {
	return e.name
}

// Close releases the hugot session
func (e *HugotEmbedder) Close() error {
	return e.session.Destroy()
}
