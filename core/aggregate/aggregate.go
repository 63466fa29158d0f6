package aggregate

import "github.com/siherrmann/factual/model"

// Aggregate combines the per-fact entailment scores into a true/false confidence split.
//
// pTrue is the mean entailment. pFalse is the larger of the mean contradiction and the
// mass left after entailment and neutral. Both are clipped to [0, 1] and renormalized
// by their sum plus eps. Without evidence, or when all evidence is neutral, the
// neutral prior (0.5, 0.5) is returned.
func Aggregate(scores []model.EntailmentScore, eps float64) (pTrue float64, pFalse float64) {
	if len(scores) == 0 {
		return 0.5, 0.5
	}

	var sumEnt, sumNeu, sumCon float64
	for _, score := range scores {
		sumEnt += score.Entailment
		sumNeu += score.Neutral
		sumCon += score.Contradiction
	}
	n := float64(len(scores))
	meanEnt := sumEnt / n
	meanNeu := sumNeu / n
	meanCon := sumCon / n

	pTrue = clip(meanEnt)
	altFalse := 1.0 - (meanEnt + meanNeu)
	pFalse = clip(max(meanCon, altFalse))

	total := pTrue + pFalse
	if total <= eps {
		return 0.5, 0.5
	}

	total += eps
	return pTrue / total, pFalse / total
}

// Probabilities is Aggregate returning the result model
func Probabilities(scores []model.EntailmentScore, eps float64) model.Probabilities {
	pTrue, pFalse := Aggregate(scores, eps)
	return model.Probabilities{True: pTrue, False: pFalse}
}

func clip(v float64) float64 {
	return min(max(v, 0), 1)
}
