package model

import "fmt"

// NLIClass is one of the three canonical natural language inference classes
type NLIClass string

const (
	ClassEntailment    NLIClass = "entailment"
	ClassNeutral       NLIClass = "neutral"
	ClassContradiction NLIClass = "contradiction"
)

// LabelScore is a single raw class score as returned by an NLI oracle
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// EntailmentScore is the normalized 3-way distribution for one (fact, claim) pair
type EntailmentScore struct {
	Entailment    float64 `json:"entailment"`
	Neutral       float64 `json:"neutral"`
	Contradiction float64 `json:"contradiction"`
}

// Sum returns the total mass of the distribution
func (s EntailmentScore) Sum() float64 {
	return s.Entailment + s.Neutral + s.Contradiction
}

// Get returns the score of the given class
func (s EntailmentScore) Get(class NLIClass) float64 {
	switch class {
	case ClassEntailment:
		return s.Entailment
	case ClassNeutral:
		return s.Neutral
	case ClassContradiction:
		return s.Contradiction
	}
	return 0
}

// LabelMapping maps the label taxonomy of a concrete NLI model onto the canonical classes.
// Labels are matched case-insensitively. ClassOrder is the documented output order of
// the model and is used when it reports exactly three classes under unknown labels.
type LabelMapping struct {
	Labels     map[string]NLIClass `json:"labels" yaml:"labels"`
	ClassOrder []NLIClass          `json:"class_order" yaml:"class_order"`
}

// DefaultLabelMapping returns the mapping for MNLI models ordered
// contradiction, neutral, entailment (e.g. roberta-large-mnli).
func DefaultLabelMapping() LabelMapping {
	return LabelMapping{
		Labels: map[string]NLIClass{
			"entailment":    ClassEntailment,
			"neutral":       ClassNeutral,
			"contradiction": ClassContradiction,
			"label_0":       ClassContradiction,
			"label_1":       ClassNeutral,
			"label_2":       ClassEntailment,
		},
		ClassOrder: []NLIClass{ClassContradiction, ClassNeutral, ClassEntailment},
	}
}

// Validate checks that ClassOrder is a permutation of the three classes
// and that every label maps onto a known class.
func (m LabelMapping) Validate() error {
	if len(m.ClassOrder) != 3 {
		return fmt.Errorf("class order must list exactly 3 classes, got %d", len(m.ClassOrder))
	}

	seen := map[NLIClass]bool{}
	for _, class := range m.ClassOrder {
		if !class.Valid() {
			return fmt.Errorf("unknown class %q in class order", class)
		}
		if seen[class] {
			return fmt.Errorf("duplicate class %q in class order", class)
		}
		seen[class] = true
	}

	for label, class := range m.Labels {
		if !class.Valid() {
			return fmt.Errorf("label %q maps to unknown class %q", label, class)
		}
	}

	return nil
}

// Valid reports whether c is one of the canonical classes
func (c NLIClass) Valid() bool {
	return c == ClassEntailment || c == ClassNeutral || c == ClassContradiction
}
