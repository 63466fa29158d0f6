package factual

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/siherrmann/factual/core/pipeline"
	"github.com/siherrmann/factual/core/verdict"
	"github.com/siherrmann/factual/helper"
	"github.com/siherrmann/factual/model"
	"github.com/siherrmann/factual/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keywords span the embedding space of the fake embedder
var keywords = []string{"meal", "class", "aid"}

type fakeOracles struct {
	embedCalls     atomic.Int32
	nliCalls       atomic.Int32
	sentimentCalls atomic.Int32
	// nli maps a premise to its raw scores, unknown premises are neutral
	nli          map[string][]model.LabelScore
	embedErr     error
	sentimentErr error
}

func (f *fakeOracles) oracles() pipeline.Oracles {
	return pipeline.Oracles{
		Embedder: pipeline.NewFuncEmbedder("fake", func(text string) ([]float32, error) {
			f.embedCalls.Add(1)
			if f.embedErr != nil {
				return nil, f.embedErr
			}
			vector := make([]float32, len(keywords)+1)
			for i, keyword := range keywords {
				if strings.Contains(strings.ToLower(text), keyword) {
					vector[i] = 1
				}
			}
			vector[len(keywords)] = 0.01
			return vector, nil
		}),
		NLI: func(ctx context.Context, premise string, hypothesis string) ([]model.LabelScore, error) {
			f.nliCalls.Add(1)
			if scores, ok := f.nli[premise]; ok {
				return scores, nil
			}
			return scoresOf(0.1, 0.8, 0.1), nil
		},
		Sentiment: func(ctx context.Context, text string) (model.SentimentScores, error) {
			f.sentimentCalls.Add(1)
			if f.sentimentErr != nil {
				return model.SentimentScores{}, f.sentimentErr
			}
			return model.SentimentScores{Negative: 0, Neutral: 0.4, Positive: 0.6, Compound: 0.8}, nil
		},
	}
}

func scoresOf(entailment float64, neutral float64, contradiction float64) []model.LabelScore {
	return []model.LabelScore{
		{Label: "ENTAILMENT", Score: entailment},
		{Label: "NEUTRAL", Score: neutral},
		{Label: "CONTRADICTION", Score: contradiction},
	}
}

func testCorpus() []model.FactRecord {
	texts := []string{
		"The unlimited meal plan costs 3000 dollars per semester.",
		"The intro class CS 1110 has four credits.",
		"Financial aid applications are due in February.",
	}
	facts := make([]model.FactRecord, len(texts))
	for i, text := range texts {
		facts[i] = model.FactRecord{
			ID:       model.NewFactID("test.json", text),
			Text:     text,
			Label:    model.LabelTrue,
			Source:   "test.json",
			Date:     "2025-01-01",
			Topic:    keywords[i],
			Position: i,
		}
	}
	return facts
}

func newTestVerifier(t *testing.T, facts []model.FactRecord, fake *fakeOracles, opts ...Option) *Verifier {
	opts = append([]Option{WithLogger(helper.DiscardLogger())}, opts...)
	v, err := NewVerifier(context.Background(), facts, fake.oracles(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, v.Close()) })
	return v
}

func TestNewVerifier(t *testing.T) {
	t.Run("Create verifier", func(t *testing.T) {
		fake := &fakeOracles{}
		v := newTestVerifier(t, testCorpus(), fake)

		assert.Equal(t, 3, v.Len())
		assert.Equal(t, 4, v.Index.Dim())
		assert.Equal(t, int32(3), fake.embedCalls.Load(), "Every fact should be embedded once")
		assert.Nil(t, v.DB)
	})

	t.Run("Empty corpus does not call the embedder", func(t *testing.T) {
		fake := &fakeOracles{}
		v := newTestVerifier(t, nil, fake)

		assert.Equal(t, 0, v.Len())
		assert.Equal(t, int32(0), fake.embedCalls.Load())
	})

	t.Run("Missing oracle", func(t *testing.T) {
		oracles := (&fakeOracles{}).oracles()
		oracles.NLI = nil

		_, err := NewVerifier(context.Background(), testCorpus(), oracles, WithLogger(helper.DiscardLogger()))
		assert.Error(t, err)
	})

	t.Run("Invalid config", func(t *testing.T) {
		config := model.DefaultVerifyConfig()
		config.TopK = 0

		_, err := NewVerifier(context.Background(), testCorpus(), (&fakeOracles{}).oracles(), WithConfig(config), WithLogger(helper.DiscardLogger()))
		assert.Error(t, err)
	})

	t.Run("Embedding failure while building the index", func(t *testing.T) {
		fake := &fakeOracles{embedErr: errors.New("model unavailable")}

		_, err := NewVerifier(context.Background(), testCorpus(), fake.oracles(), WithLogger(helper.DiscardLogger()))
		assert.ErrorContains(t, err, "model unavailable")
	})
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	facts := testCorpus()

	t.Run("Entailed claim is likely true", func(t *testing.T) {
		fake := &fakeOracles{nli: map[string][]model.LabelScore{
			facts[0].Text: scoresOf(0.9, 0.05, 0.05),
		}}
		v := newTestVerifier(t, facts, fake)

		result, err := v.Verify(ctx, "  The meal plan costs 3000 dollars.  ")
		require.NoError(t, err)

		assert.Equal(t, "The meal plan costs 3000 dollars.", result.Input, "Input should be trimmed")
		assert.Equal(t, model.VerdictLikelyTrue, result.Verdict)
		assert.Equal(t, verdict.MessageLikelyTrue, result.Message)
		require.Len(t, result.SupportingTrue, 1)
		assert.Equal(t, facts[0].Text, result.SupportingTrue[0].Text)
		assert.Empty(t, result.SupportingFalse)
		require.NotEmpty(t, result.NearestConsidered)
		assert.Equal(t, facts[0].Text, result.NearestConsidered[0].Text, "Nearest fact should come first")
		assert.Greater(t, result.Probabilities.True, result.Probabilities.False)
		assert.InDelta(t, 1.0, result.Probabilities.True+result.Probabilities.False, 1e-6)
	})

	t.Run("Contradicted claim is likely false", func(t *testing.T) {
		fake := &fakeOracles{nli: map[string][]model.LabelScore{
			facts[1].Text: scoresOf(0.05, 0.1, 0.85),
		}}
		v := newTestVerifier(t, facts, fake)

		result, err := v.Verify(ctx, "The intro class has two credits.")
		require.NoError(t, err)

		assert.Equal(t, model.VerdictLikelyFalse, result.Verdict)
		assert.Equal(t, verdict.MessageLikelyFalse, result.Message)
		require.Len(t, result.SupportingFalse, 1)
		assert.Equal(t, facts[1].Text, result.SupportingFalse[0].Text)
		assert.Empty(t, result.SupportingTrue)
		assert.Greater(t, result.Probabilities.False, result.Probabilities.True)
	})

	t.Run("Neutral evidence cannot be verified", func(t *testing.T) {
		fake := &fakeOracles{}
		v := newTestVerifier(t, facts, fake)

		result, err := v.Verify(ctx, "Financial aid is generous.")
		require.NoError(t, err)

		assert.Equal(t, model.VerdictCannotVerify, result.Verdict)
		assert.Equal(t, verdict.MessageCannotVerify, result.Message)
		assert.NotNil(t, result.SupportingTrue)
		assert.NotNil(t, result.SupportingFalse)
		assert.Equal(t, int32(len(result.NearestConsidered)), fake.nliCalls.Load(), "Every hit should be scored once")
	})

	t.Run("Claim without any similar fact", func(t *testing.T) {
		fake := &fakeOracles{}
		v := newTestVerifier(t, facts, fake)

		result, err := v.Verify(ctx, "The weather is nice today.")
		require.NoError(t, err)

		assert.Equal(t, model.VerdictCannotVerify, result.Verdict)
		assert.Empty(t, result.NearestConsidered)
		assert.Equal(t, int32(0), fake.nliCalls.Load())
		assert.Equal(t, model.Probabilities{True: 0.5, False: 0.5}, result.Probabilities)
	})

	t.Run("Empty corpus cannot be verified", func(t *testing.T) {
		fake := &fakeOracles{}
		v := newTestVerifier(t, nil, fake)

		result, err := v.Verify(ctx, "The meal plan costs 3000 dollars.")
		require.NoError(t, err)

		assert.Equal(t, model.VerdictCannotVerify, result.Verdict)
		assert.Empty(t, result.NearestConsidered)
		assert.Equal(t, int32(0), fake.embedCalls.Load())
	})

	t.Run("Blank claim is rejected before any oracle call", func(t *testing.T) {
		fake := &fakeOracles{}
		v := newTestVerifier(t, facts, fake)
		embedCalls := fake.embedCalls.Load()

		_, err := v.Verify(ctx, " \n\t ")
		assert.ErrorIs(t, err, model.ErrEmptyClaim)
		assert.Equal(t, embedCalls, fake.embedCalls.Load())
		assert.Equal(t, int32(0), fake.sentimentCalls.Load())
		assert.Equal(t, int32(0), fake.nliCalls.Load())
	})

	t.Run("Tone and notes are reported", func(t *testing.T) {
		fake := &fakeOracles{}
		v := newTestVerifier(t, facts, fake)

		result, err := v.Verify(ctx, "The meal plan is great.")
		require.NoError(t, err)

		assert.Equal(t, "very positive", result.Tone.Summary)
		assert.Equal(t, 0.8, result.Tone.Raw.Compound)
		assert.Equal(t, "roberta-large-mnli", result.Notes.NLIModel)
		assert.Equal(t, "fake", result.Notes.EmbeddingModel)
		assert.Equal(t, 8, result.Notes.TopK)
		assert.Equal(t, v.Config.Thresholds(), result.Notes.Thresholds)
	})

	t.Run("Sentiment failure degrades to neutral tone", func(t *testing.T) {
		fake := &fakeOracles{sentimentErr: errors.New("sentiment down")}
		v := newTestVerifier(t, facts, fake)

		result, err := v.Verify(ctx, "The meal plan is great.")
		require.NoError(t, err)

		assert.Equal(t, "neutral", result.Tone.Summary)
		assert.Equal(t, 1.0, result.Tone.Raw.Neutral)
	})

	t.Run("Embedding failure is a pipeline error", func(t *testing.T) {
		fake := &fakeOracles{}
		v := newTestVerifier(t, facts, fake)
		fake.embedErr = errors.New("embedder crashed")

		_, err := v.Verify(ctx, "The meal plan costs 3000 dollars.")
		var pipelineErr *model.PipelineError
		require.ErrorAs(t, err, &pipelineErr)
		assert.Equal(t, "retrieve", pipelineErr.Op)
		assert.ErrorContains(t, err, "embedder crashed")
	})

	t.Run("Cancelled context is a pipeline error", func(t *testing.T) {
		fake := &fakeOracles{}
		v := newTestVerifier(t, facts, fake)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := v.Verify(cancelled, "The meal plan costs 3000 dollars.")
		var pipelineErr *model.PipelineError
		assert.ErrorAs(t, err, &pipelineErr)
	})

	t.Run("Failing NLI degrades to neutral", func(t *testing.T) {
		fake := &fakeOracles{}
		oracles := fake.oracles()
		oracles.NLI = func(ctx context.Context, premise string, hypothesis string) ([]model.LabelScore, error) {
			panic("nli crashed")
		}
		v, err := NewVerifier(ctx, facts, oracles, WithLogger(helper.DiscardLogger()))
		require.NoError(t, err)

		result, err := v.Verify(ctx, "The meal plan costs 3000 dollars.")
		require.NoError(t, err)
		assert.Equal(t, model.VerdictCannotVerify, result.Verdict)
		assert.InDelta(t, 0.5, result.Probabilities.True, 1e-9)
	})

	t.Run("Verification is deterministic", func(t *testing.T) {
		fake := &fakeOracles{nli: map[string][]model.LabelScore{
			facts[0].Text: scoresOf(0.7, 0.2, 0.1),
		}}
		v := newTestVerifier(t, facts, fake, WithConcurrency(2))

		first, err := v.Verify(ctx, "Meal plan and class costs")
		require.NoError(t, err)
		second, err := v.Verify(ctx, "Meal plan and class costs")
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})
}

func TestVerifyMetrics(t *testing.T) {
	fake := &fakeOracles{sentimentErr: errors.New("sentiment down")}
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	v := newTestVerifier(t, testCorpus(), fake, WithMetrics(metrics))

	_, err := v.Verify(context.Background(), "The meal plan costs 3000 dollars.")
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), "")
	assert.ErrorIs(t, err, model.ErrEmptyClaim)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := []string{}
	for _, family := range families {
		names = append(names, family.GetName())
	}
	assert.Contains(t, names, "factual_verifications_total")
	assert.Contains(t, names, "factual_oracle_failures_total")
	assert.Contains(t, names, "factual_corpus_facts")
}
