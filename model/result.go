package model

// Verdict is the final categorical outcome for one claim
type Verdict string

const (
	VerdictLikelyTrue   Verdict = "likely_true"
	VerdictLikelyFalse  Verdict = "likely_false"
	VerdictCannotVerify Verdict = "cannot_verify"
)

// RetrievalHit is a corpus fact returned for a claim together with its cosine similarity
type RetrievalHit struct {
	Index      int         `json:"index"`
	Fact       *FactRecord `json:"fact"`
	Similarity float64     `json:"similarity"`
}

// SentimentScores are the raw sentiment oracle outputs
type SentimentScores struct {
	Negative float64 `json:"neg"`
	Neutral  float64 `json:"neu"`
	Positive float64 `json:"pos"`
	Compound float64 `json:"compound"`
}

// Tone is the descriptive sentiment read on a claim
type Tone struct {
	Summary string          `json:"summary"`
	Raw     SentimentScores `json:"raw"`
}

// Probabilities is the confidence split between true and false
type Probabilities struct {
	True  float64 `json:"true"`
	False float64 `json:"false"`
}

// SourceRef is a corpus fact as it is reported back to the caller
type SourceRef struct {
	Text          string   `json:"text"`
	Label         string   `json:"label,omitempty"`
	Source        string   `json:"source"`
	Date          string   `json:"date"`
	Topic         string   `json:"topic"`
	Similarity    float64  `json:"similarity"`
	ShortText     string   `json:"short_text,omitempty"`
	Entailment    *float64 `json:"entailment,omitempty"`
	Contradiction *float64 `json:"contradiction,omitempty"`
}

// Thresholds echoes the decision constants used for a verification
type Thresholds struct {
	Entailment    float64 `json:"entailment"`
	Contradiction float64 `json:"contradiction"`
	MinSimilarity float64 `json:"min_similarity"`
}

// Notes carries diagnostic information about how a result was produced
type Notes struct {
	NLIModel       string     `json:"nli_model"`
	EmbeddingModel string     `json:"embedding_model,omitempty"`
	TopK           int        `json:"top_k"`
	Thresholds     Thresholds `json:"thresholds"`
}

// VerificationResult is the response for one verified claim
type VerificationResult struct {
	Input             string        `json:"input"`
	Verdict           Verdict       `json:"verdict"`
	Message           string        `json:"message"`
	Probabilities     Probabilities `json:"probabilities"`
	Tone              Tone          `json:"tone"`
	SupportingTrue    []SourceRef   `json:"supporting_sources_true"`
	SupportingFalse   []SourceRef   `json:"supporting_sources_false"`
	NearestConsidered []SourceRef   `json:"nearest_sources_considered"`
	Notes             Notes         `json:"notes"`
}
