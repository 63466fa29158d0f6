package pipeline

import (
	"context"
	"fmt"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/siherrmann/factual/helper"
	"github.com/siherrmann/factual/model"
)

const (
	// DefaultNLIModel is the onnx export of roberta-large-mnli
	DefaultNLIModel = "roberta-large-mnli"
	// DefaultPairSeparator joins premise and hypothesis the way roberta encodes sentence pairs
	DefaultPairSeparator = "</s></s>"
)

// HugotNLIClassifier runs a local sequence classification model on (premise, hypothesis) pairs
type HugotNLIClassifier struct {
	name      string
	separator string
	session   *hugot.Session
	pipeline  *pipelines.TextClassificationPipeline
}

// DefaultNLIClassifier creates an NLI classifier using roberta-large-mnli
func DefaultNLIClassifier() (*HugotNLIClassifier, error) {
	return NewHugotNLIClassifier(DefaultNLIModel, DefaultPairSeparator)
}

// NewHugotNLIClassifier creates an NLI classifier for any MNLI style model on the hub.
// The classifier returns the softmax scores of all classes of the model.
func NewHugotNLIClassifier(modelName string, separator string) (*HugotNLIClassifier, error) {
	modelPath, err := helper.PrepareModel(modelName, "model.onnx")
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.TextClassificationConfig{
		ModelPath: modelPath,
		Name:      "nli-pipeline",
		Options: []hugot.TextClassificationOption{
			pipelines.WithSoftmax(),
			pipelines.WithMultiLabel(), // Return scores for every class, not only the best one
		},
	}
	nliPipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create NLI pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create NLI pipeline: %w", err)
	}

	return &HugotNLIClassifier{
		name:      modelName,
		separator: separator,
		session:   session,
		pipeline:  nliPipeline,
	}, nil
}

// Classify returns the raw class scores for one pair
func (c *HugotNLIClassifier) Classify(ctx context.Context, premise string, hypothesis string) ([]model.LabelScore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := c.pipeline.RunPipeline([]string{JoinPair(premise, hypothesis, c.separator)})
	if err != nil {
		return nil, fmt.Errorf("failed to run NLI: %w", err)
	}

	if len(result.ClassificationOutputs) == 0 {
		return nil, fmt.Errorf("no classification output")
	}

	scores := make([]model.LabelScore, 0, len(result.ClassificationOutputs[0]))
	for _, output := range result.ClassificationOutputs[0] {
		scores = append(scores, model.LabelScore{
			Label: output.Label,
			Score: float64(output.Score),
		})
	}

	return scores, nil
}

// NLIFunc returns the classifier as an NLIFunc
func (c *HugotNLIClassifier) NLIFunc() NLIFunc {
	return c.Classify
}

// ModelName returns the hub name of the model
func (c *HugotNLIClassifier) ModelName() string {
	return c.name
}

// Close releases the hugot session
func (c *HugotNLIClassifier) Close() error {
	return c.session.Destroy()
}

// JoinPair encodes a sentence pair as a single sequence
func JoinPair(premise string, hypothesis string, separator string) string {
	return premise + separator + hypothesis
}
