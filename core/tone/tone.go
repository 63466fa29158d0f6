package tone

import (
	"context"
	"fmt"
	"math"

	"github.com/siherrmann/factual/core/pipeline"
	"github.com/siherrmann/factual/helper"
	"github.com/siherrmann/factual/model"
)

// Compound score boundaries of the tone summary
const (
	PolarityThreshold = 0.3
	VeryThreshold     = 0.7
	FairlyThreshold   = 0.45
)

// Analyzer reads the tone of a claim. It has no influence on the verdict.
type Analyzer struct {
	sentiment pipeline.SentimentFunc
}

// NewAnalyzer creates a new tone analyzer
func NewAnalyzer(sentiment pipeline.SentimentFunc) (*Analyzer, error) {
	if sentiment == nil {
		return nil, fmt.Errorf("sentiment analyzer is required")
	}
	return &Analyzer{sentiment: sentiment}, nil
}

// Analyze returns the raw sentiment scores of the claim with their summary
func (a *Analyzer) Analyze(ctx context.Context, claim string) (model.Tone, error) {
	scores, err := a.sentiment(ctx, claim)
	if err != nil {
		return model.Tone{}, helper.NewError("sentiment", &model.OracleError{Oracle: "sentiment", Err: err})
	}

	return model.Tone{
		Summary: Summarize(scores.Compound),
		Raw:     scores,
	}, nil
}

// Summarize maps a compound score in [-1, 1] to a human readable tone
func Summarize(compound float64) string {
	var base string
	switch {
	case compound >= PolarityThreshold:
		base = "positive"
	case compound <= -PolarityThreshold:
		base = "negative"
	default:
		return "neutral"
	}

	magnitude := math.Abs(compound)
	switch {
	case magnitude >= VeryThreshold:
		return "very " + base
	case magnitude >= FairlyThreshold:
		return "fairly " + base
	default:
		return "slightly " + base
	}
}
