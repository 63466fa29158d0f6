package nli

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/siherrmann/factual/core/pipeline"
	"github.com/siherrmann/factual/model"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of pairs scored at the same time by ScoreAll
const DefaultConcurrency = 4

// Option configures a Scorer
type Option func(*Scorer)

// WithConcurrency limits the number of concurrent oracle calls in ScoreAll
func WithConcurrency(n int) Option {
	return func(s *Scorer) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scorer) {
		s.logger = logger
	}
}

// WithFailureHook is called for every oracle call that degraded to neutral evidence
func WithFailureHook(hook func(err error)) Option {
	return func(s *Scorer) {
		s.onFailure = hook
	}
}

// Scorer turns raw NLI oracle outputs into normalized entailment scores
type Scorer struct {
	nli         pipeline.NLIFunc
	labels      map[string]model.NLIClass
	classOrder  []model.NLIClass
	eps         float64
	concurrency int
	logger      *slog.Logger
	onFailure   func(err error)
}

// NewScorer creates a new scorer. The label mapping is validated here
// so a misconfigured model fails at startup instead of per request.
func NewScorer(nli pipeline.NLIFunc, mapping model.LabelMapping, eps float64, opts ...Option) (*Scorer, error) {
	if nli == nil {
		return nil, fmt.Errorf("nli classifier is required")
	}
	if err := mapping.Validate(); err != nil {
		return nil, fmt.Errorf("invalid label mapping: %w", err)
	}
	if eps <= 0 {
		return nil, fmt.Errorf("epsilon must be positive, got %v", eps)
	}

	labels := make(map[string]model.NLIClass, len(mapping.Labels))
	for label, class := range mapping.Labels {
		labels[strings.ToLower(strings.TrimSpace(label))] = class
	}

	s := &Scorer{
		nli:         nli,
		labels:      labels,
		classOrder:  append([]model.NLIClass{}, mapping.ClassOrder...),
		eps:         eps,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Score returns the normalized entailment distribution for one (premise, hypothesis) pair.
// It never fails: oracle errors and unusable outputs degrade to neutral evidence.
func (s *Scorer) Score(ctx context.Context, premise string, hypothesis string) (score model.EntailmentScore) {
	defer func() {
		if r := recover(); r != nil {
			score = s.degrade(&model.OracleError{Oracle: "nli", Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	raw, err := s.nli(ctx, premise, hypothesis)
	if err != nil {
		return s.degrade(&model.OracleError{Oracle: "nli", Err: err})
	}

	triple, err := s.mapScores(raw)
	if err != nil {
		return s.degrade(&model.OracleError{Oracle: "nli", Err: err})
	}

	return Normalize(triple, s.eps)
}

// ScoreAll scores every premise against the hypothesis concurrently.
// The output has the same length and order as premises.
func (s *Scorer) ScoreAll(ctx context.Context, premises []string, hypothesis string) []model.EntailmentScore {
	scores := make([]model.EntailmentScore, len(premises))
	if len(premises) == 0 {
		return scores
	}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, premise := range premises {
		g.Go(func() error {
			scores[i] = s.Score(ctx, premise, hypothesis)
			return nil
		})
	}
	_ = g.Wait()

	return scores
}

// mapScores maps raw label scores onto the three classes
func (s *Scorer) mapScores(raw []model.LabelScore) (model.EntailmentScore, error) {
	if len(raw) == 0 {
		return model.EntailmentScore{}, fmt.Errorf("empty output")
	}

	for _, labelScore := range raw {
		if math.IsNaN(labelScore.Score) || math.IsInf(labelScore.Score, 0) || labelScore.Score < 0 {
			return model.EntailmentScore{}, fmt.Errorf("invalid score %v for label %q", labelScore.Score, labelScore.Label)
		}
	}

	triple := model.EntailmentScore{}
	known := true
	for _, labelScore := range raw {
		class, ok := s.labels[strings.ToLower(strings.TrimSpace(labelScore.Label))]
		if !ok {
			known = false
			break
		}
		add(&triple, class, labelScore.Score)
	}

	if !known {
		// Unrecognized labels are only usable in the documented output order of the model
		if len(raw) != len(s.classOrder) {
			return model.EntailmentScore{}, fmt.Errorf("unknown labels in output of %d classes", len(raw))
		}
		triple = model.EntailmentScore{}
		for i, labelScore := range raw {
			add(&triple, s.classOrder[i], labelScore.Score)
		}
	}

	// Totals at or below eps would not normalize to a distribution
	if triple.Sum() <= s.eps {
		return model.EntailmentScore{}, fmt.Errorf("all class scores are zero")
	}

	return triple, nil
}

// degrade logs the failure and returns neutral evidence
func (s *Scorer) degrade(err error) model.EntailmentScore {
	s.logger.Warn("NLI scoring degraded to neutral", slog.Any("error", err))
	if s.onFailure != nil {
		s.onFailure(err)
	}
	return Neutral()
}

// Normalize divides every class by the sum of all classes plus eps
func Normalize(raw model.EntailmentScore, eps float64) model.EntailmentScore {
	total := raw.Sum() + eps
	return model.EntailmentScore{
		Entailment:    raw.Entailment / total,
		Neutral:       raw.Neutral / total,
		Contradiction: raw.Contradiction / total,
	}
}

// Neutral is the distribution used when no usable oracle output exists
func Neutral() model.EntailmentScore {
	return model.EntailmentScore{Neutral: 1}
}

func add(triple *model.EntailmentScore, class model.NLIClass, value float64) {
	switch class {
	case model.ClassEntailment:
		triple.Entailment += value
	case model.ClassNeutral:
		triple.Neutral += value
	case model.ClassContradiction:
		triple.Contradiction += value
	}
}
