package verdict

import (
	"fmt"

	"github.com/siherrmann/factual/model"
)

// Fixed messages per verdict
const (
	MessageLikelyTrue   = "This appears likely true based on entailment with trusted facts from your dataset."
	MessageLikelyFalse  = "This appears likely false because it contradicts trusted facts from your dataset."
	MessageCannotVerify = "I can't verify this with enough confidence. Review the closest sources below."
)

// Short text rendering of supporting facts
const (
	shortTextRunes = 180
	shortTextLimit = 200
	ellipsis       = "…"
)

// Decision is the categorical outcome with the facts backing it
type Decision struct {
	Verdict         model.Verdict
	Message         string
	SupportingTrue  []model.SourceRef
	SupportingFalse []model.SourceRef
}

// Decide applies the thresholds to the per-hit scores. Any entailment at or above the
// entailment threshold wins over any contradiction at or above the contradiction threshold.
// Both supporting lists are kept in hit order and capped at config.MaxSupporting.
func Decide(hits []model.RetrievalHit, scores []model.EntailmentScore, config model.VerifyConfig) (*Decision, error) {
	if len(hits) != len(scores) {
		return nil, fmt.Errorf("got %d hits but %d scores", len(hits), len(scores))
	}

	decision := &Decision{
		SupportingTrue:  []model.SourceRef{},
		SupportingFalse: []model.SourceRef{},
	}

	entailed, contradicted := false, false
	for i, hit := range hits {
		score := scores[i]

		if score.Entailment >= config.EntailmentThreshold {
			entailed = true
			if len(decision.SupportingTrue) < config.MaxSupporting {
				ref := SupportingSource(hit)
				ref.Entailment = &score.Entailment
				decision.SupportingTrue = append(decision.SupportingTrue, ref)
			}
		}

		if score.Contradiction >= config.ContradictionThreshold {
			contradicted = true
			if len(decision.SupportingFalse) < config.MaxSupporting {
				ref := SupportingSource(hit)
				ref.Contradiction = &score.Contradiction
				decision.SupportingFalse = append(decision.SupportingFalse, ref)
			}
		}
	}

	switch {
	case entailed:
		decision.Verdict = model.VerdictLikelyTrue
		decision.Message = MessageLikelyTrue
	case contradicted:
		decision.Verdict = model.VerdictLikelyFalse
		decision.Message = MessageLikelyFalse
	default:
		decision.Verdict = model.VerdictCannotVerify
		decision.Message = MessageCannotVerify
	}

	return decision, nil
}

// Source renders a retrieval hit as it is listed among the facts considered
func Source(hit model.RetrievalHit) model.SourceRef {
	ref := model.SourceRef{Similarity: hit.Similarity}
	if hit.Fact != nil {
		ref.Text = hit.Fact.Text
		ref.Label = hit.Fact.Label
		ref.Source = hit.Fact.Source
		ref.Date = hit.Fact.Date
		ref.Topic = hit.Fact.Topic
	}
	return ref
}

// SupportingSource is Source with the short text preview
func SupportingSource(hit model.RetrievalHit) model.SourceRef {
	ref := Source(hit)
	ref.ShortText = ShortText(ref.Text)
	return ref
}

// Sources renders all hits in order
func Sources(hits []model.RetrievalHit) []model.SourceRef {
	refs := make([]model.SourceRef, 0, len(hits))
	for _, hit := range hits {
		refs = append(refs, Source(hit))
	}
	return refs
}

// ShortText returns the first 180 runes of text, followed by an ellipsis if the
// text is longer than 200 runes.
func ShortText(text string) string {
	runes := []rune(text)
	if len(runes) <= shortTextRunes {
		return text
	}

	short := string(runes[:shortTextRunes])
	if len(runes) > shortTextLimit {
		short += ellipsis
	}
	return short
}
