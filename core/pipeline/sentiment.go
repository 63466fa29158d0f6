package pipeline

import (
	"context"

	"github.com/jonreiter/govader"
	"github.com/siherrmann/factual/model"
)

// DefaultSentiment creates a VADER based sentiment analyzer.
// VADER is lexicon based, so no model has to be downloaded.
func DefaultSentiment() SentimentFunc {
	analyzer := govader.NewSentimentIntensityAnalyzer()

	return func(ctx context.Context, text string) (model.SentimentScores, error) {
		if err := ctx.Err(); err != nil {
			return model.SentimentScores{}, err
		}

		scores := analyzer.PolarityScores(text)
		return model.SentimentScores{
			Negative: scores.Negative,
			Neutral:  scores.Neutral,
			Positive: scores.Positive,
			Compound: scores.Compound,
		}, nil
	}
}
