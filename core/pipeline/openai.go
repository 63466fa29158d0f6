package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/siherrmann/factual/model"
	"golang.org/x/time/rate"
)

// OpenAIConfig configures the OpenAI compatible oracles
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIOption configures an OpenAI oracle
type OpenAIOption func(*openAIClient)

// WithRateLimit throttles calls to the API to requestsPerSecond with the given burst
func WithRateLimit(requestsPerSecond float64, burst int) OpenAIOption {
	return func(c *openAIClient) {
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

type openAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
}

func newOpenAIClient(config OpenAIConfig, defaultModel string, opts ...OpenAIOption) (*openAIClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	c := &openAIClient{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   config.Model,
		timeout: config.Timeout,
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.timeout == 0 {
		c.timeout = 30 * time.Second
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// wait blocks until the rate limiter allows the next call
func (c *openAIClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// OpenAIEmbedder embeds texts through the embeddings endpoint
type OpenAIEmbedder struct {
	*openAIClient
}

// NewOpenAIEmbedder creates an embedder backed by an OpenAI compatible API
func NewOpenAIEmbedder(config OpenAIConfig, opts ...OpenAIOption) (*OpenAIEmbedder, error) {
	c, err := newOpenAIClient(config, string(openai.SmallEmbedding3), opts...)
	if err != nil {
		return nil, err
	}
	return &OpenAIEmbedder{openAIClient: c}, nil
}

// Embed generates one embedding per text in input order
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := e.wait(ctx); err != nil {
		return nil, err
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateEmbeddings(ctxWithTimeout, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	// The API reports the input index of each embedding
	sort.SliceStable(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })

	embeddings := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		embeddings[i] = data.Embedding
	}
	return embeddings, nil
}

// ModelName returns the embedding model name
func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}

const nliSystemPrompt = `You are a natural language inference classifier.
Given a PREMISE and a HYPOTHESIS, estimate the probability that the premise entails the hypothesis,
is neutral to it, or contradicts it.
Reply only with a JSON object of the form {"entailment": 0.0, "neutral": 0.0, "contradiction": 0.0}.`

// OpenAINLIClassifier scores sentence pairs through a chat completion model
type OpenAINLIClassifier struct {
	*openAIClient
}

// NewOpenAINLIClassifier creates an NLI classifier backed by an OpenAI compatible API
func NewOpenAINLIClassifier(config OpenAIConfig, opts ...OpenAIOption) (*OpenAINLIClassifier, error) {
	c, err := newOpenAIClient(config, openai.GPT4oMini, opts...)
	if err != nil {
		return nil, err
	}
	return &OpenAINLIClassifier{openAIClient: c}, nil
}

// Classify returns the class scores the model reports for one pair
func (c *OpenAINLIClassifier) Classify(ctx context.Context, premise string, hypothesis string) ([]model.LabelScore, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctxWithTimeout, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: nliSystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("PREMISE: %s\nHYPOTHESIS: %s", premise, hypothesis),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	return ParseLabelScores(resp.Choices[0].Message.Content)
}

// NLIFunc returns the classifier as an NLIFunc
func (c *OpenAINLIClassifier) NLIFunc() NLIFunc {
	return c.Classify
}

// ModelName returns the chat model name
func (c *OpenAINLIClassifier) ModelName() string {
	return c.model
}

// ParseLabelScores parses a JSON object of label to score into label scores sorted by label.
// Markdown code fences around the object are ignored. Only the class names entailment,
// neutral and contradiction are accepted since object keys carry no positional order.
func ParseLabelScores(content string) ([]model.LabelScore, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	raw := map[string]float64{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse label scores: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("no label scores in response")
	}

	scores := make([]model.LabelScore, 0, len(raw))
	for label, score := range raw {
		class := model.NLIClass(strings.ToLower(strings.TrimSpace(label)))
		if !class.Valid() {
			return nil, fmt.Errorf("unknown label %q in response", label)
		}
		scores = append(scores, model.LabelScore{Label: string(class), Score: score})
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].Label < scores[j].Label })

	return scores, nil
}
