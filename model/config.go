package model

import "fmt"

// VerifyConfig holds the fixed constants of the verification pipeline
type VerifyConfig struct {
	// Retrieval
	TopK          int     `json:"top_k" yaml:"top_k"`
	MinSimilarity float64 `json:"min_similarity" yaml:"min_similarity"`

	// Decision thresholds
	EntailmentThreshold    float64 `json:"entailment_threshold" yaml:"entailment_threshold"`
	ContradictionThreshold float64 `json:"contradiction_threshold" yaml:"contradiction_threshold"`
	MaxSupporting          int     `json:"max_supporting" yaml:"max_supporting"`

	// Numerics
	Epsilon float64 `json:"epsilon" yaml:"epsilon"`

	// Oracle identity, echoed in the result notes
	NLIModel       string       `json:"nli_model" yaml:"nli_model"`
	EmbeddingModel string       `json:"embedding_model" yaml:"embedding_model"`
	LabelMapping   LabelMapping `json:"label_mapping" yaml:"label_mapping"`
}

// DefaultVerifyConfig returns the configuration the pipeline was calibrated with
func DefaultVerifyConfig() VerifyConfig {
	return VerifyConfig{
		TopK:                   8,
		MinSimilarity:          0.25,
		EntailmentThreshold:    0.60,
		ContradictionThreshold: 0.75,
		MaxSupporting:          5,
		Epsilon:                1e-9,
		NLIModel:               "roberta-large-mnli",
		EmbeddingModel:         "sentence-transformers/all-MiniLM-L6-v2",
		LabelMapping:           DefaultLabelMapping(),
	}
}

// Validate checks the configuration for values the pipeline cannot work with
func (c VerifyConfig) Validate() error {
	if c.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", c.TopK)
	}
	if c.MinSimilarity < -1 || c.MinSimilarity > 1 {
		return fmt.Errorf("min_similarity must be within [-1, 1], got %v", c.MinSimilarity)
	}
	if c.EntailmentThreshold < 0 || c.EntailmentThreshold > 1 {
		return fmt.Errorf("entailment_threshold must be within [0, 1], got %v", c.EntailmentThreshold)
	}
	if c.ContradictionThreshold < 0 || c.ContradictionThreshold > 1 {
		return fmt.Errorf("contradiction_threshold must be within [0, 1], got %v", c.ContradictionThreshold)
	}
	if c.MaxSupporting <= 0 {
		return fmt.Errorf("max_supporting must be positive, got %d", c.MaxSupporting)
	}
	if c.Epsilon <= 0 {
		return fmt.Errorf("epsilon must be positive, got %v", c.Epsilon)
	}
	if err := c.LabelMapping.Validate(); err != nil {
		return fmt.Errorf("label_mapping: %w", err)
	}
	return nil
}

// Thresholds returns the decision thresholds as they are echoed in results
func (c VerifyConfig) Thresholds() Thresholds {
	return Thresholds{
		Entailment:    c.EntailmentThreshold,
		Contradiction: c.ContradictionThreshold,
		MinSimilarity: c.MinSimilarity,
	}
}
