package factual

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/siherrmann/factual/core/aggregate"
	"github.com/siherrmann/factual/core/index"
	"github.com/siherrmann/factual/core/nli"
	"github.com/siherrmann/factual/core/pipeline"
	"github.com/siherrmann/factual/core/retrieval"
	"github.com/siherrmann/factual/core/tone"
	"github.com/siherrmann/factual/core/verdict"
	"github.com/siherrmann/factual/database"
	"github.com/siherrmann/factual/helper"
	"github.com/siherrmann/factual/model"
	"github.com/siherrmann/factual/observability"
	loadSql "github.com/siherrmann/factual/sql"
)

// Option configures a Verifier
type Option func(*options)

type options struct {
	config      model.VerifyConfig
	logger      *slog.Logger
	metrics     *observability.Metrics
	batchSize   int
	concurrency int
	dbConfig    *helper.DatabaseConfiguration
	indexType   database.IndexType
	closers     []io.Closer
}

// WithConfig replaces the default verification constants
func WithConfig(config model.VerifyConfig) Option {
	return func(o *options) {
		o.config = config
	}
}

// WithLogger sets the logger, the default is a pretty info logger on stdout
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics records Prometheus metrics for every verification
func WithMetrics(metrics *observability.Metrics) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

// WithBatchSize sets the embedding batch size used to build the index
func WithBatchSize(size int) Option {
	return func(o *options) {
		o.batchSize = size
	}
}

// WithConcurrency limits the concurrent NLI calls per claim
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithDatabase mirrors the index into pgvector and retrieves through it
func WithDatabase(config *helper.DatabaseConfiguration, indexType database.IndexType) Option {
	return func(o *options) {
		o.dbConfig = config
		o.indexType = indexType
	}
}

// WithClosers registers resources released by Close, like oracle model sessions
func WithClosers(closers ...io.Closer) Option {
	return func(o *options) {
		o.closers = append(o.closers, closers...)
	}
}

// Verifier checks claims against an immutable corpus of trusted facts
type Verifier struct {
	Config    model.VerifyConfig
	Index     *index.Index
	Retriever *retrieval.Retriever
	Scorer    *nli.Scorer
	Tone      *tone.Analyzer
	DB        *helper.Database         // Optional pgvector mirror
	Facts     *database.FactsDBHandler // Optional pgvector mirror
	// Internal
	embedder pipeline.Embedder
	metrics  *observability.Metrics
	closers  []io.Closer
	log      *slog.Logger
}

// NewVerifier embeds the corpus once and wires the verification pipeline around the oracles
func NewVerifier(ctx context.Context, facts []model.FactRecord, oracles pipeline.Oracles, opts ...Option) (*Verifier, error) {
	o := &options{
		config:    model.DefaultVerifyConfig(),
		batchSize: index.DefaultBatchSize,
		indexType: database.IndexNone,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(helper.NewPrettyHandler(os.Stdout, helper.PrettyHandlerOptions{
			SlogOpts: slog.HandlerOptions{
				Level: slog.LevelInfo,
			},
		}))
	}

	if err := o.config.Validate(); err != nil {
		return nil, helper.NewError("validate config", err)
	}
	if err := oracles.Validate(); err != nil {
		return nil, helper.NewError("validate oracles", err)
	}

	v := &Verifier{
		Config:   o.config,
		embedder: oracles.Embedder,
		metrics:  o.metrics,
		closers:  o.closers,
		log:      o.logger,
	}

	start := time.Now()
	idx, err := index.Build(ctx, facts, oracles.Embedder, index.WithBatchSize(o.batchSize))
	if err != nil {
		return nil, helper.NewError("build index", err)
	}
	v.Index = idx
	v.metrics.SetCorpusSize(idx.Len())
	v.log.Info("Built embedding index", slog.Int("facts", idx.Len()), slog.Int("dim", idx.Dim()), slog.Duration("took", time.Since(start)))

	retrieverOpts := []retrieval.Option{retrieval.WithLogger(o.logger)}
	if o.dbConfig != nil && idx.Len() > 0 {
		strategy, err := v.connectDatabase(ctx, o.dbConfig, o.indexType)
		if err != nil {
			return nil, errors.Join(err, v.DB.Close())
		}
		retrieverOpts = append(retrieverOpts, retrieval.WithStrategy(strategy))
	}

	v.Retriever, err = retrieval.NewRetriever(idx, oracles.Embedder, o.config, retrieverOpts...)
	if err != nil {
		return nil, helper.NewError("create retriever", err)
	}

	scorerOpts := []nli.Option{
		nli.WithLogger(o.logger),
		nli.WithFailureHook(func(err error) { v.metrics.ObserveOracleFailure("nli") }),
	}
	if o.concurrency > 0 {
		scorerOpts = append(scorerOpts, nli.WithConcurrency(o.concurrency))
	}
	v.Scorer, err = nli.NewScorer(oracles.NLI, o.config.LabelMapping, o.config.Epsilon, scorerOpts...)
	if err != nil {
		return nil, helper.NewError("create scorer", err)
	}

	v.Tone, err = tone.NewAnalyzer(oracles.Sentiment)
	if err != nil {
		return nil, helper.NewError("create tone analyzer", err)
	}

	return v, nil
}

// NewDefaultVerifier creates a verifier with the local default models:
// all-MiniLM-L6-v2 embeddings, roberta-large-mnli and VADER sentiment.
func NewDefaultVerifier(ctx context.Context, facts []model.FactRecord, opts ...Option) (*Verifier, error) {
	embedder, err := pipeline.DefaultEmbedder()
	if err != nil {
		return nil, helper.NewError("create default embedder", err)
	}

	classifier, err := pipeline.DefaultNLIClassifier()
	if err != nil {
		return nil, errors.Join(helper.NewError("create default nli classifier", err), embedder.Close())
	}

	oracles := pipeline.Oracles{
		Embedder:  embedder,
		NLI:       classifier.NLIFunc(),
		Sentiment: pipeline.DefaultSentiment(),
	}

	opts = append(opts, WithClosers(embedder, classifier))
	v, err := NewVerifier(ctx, facts, oracles, opts...)
	if err != nil {
		return nil, errors.Join(err, embedder.Close(), classifier.Close())
	}
	return v, nil
}

// connectDatabase publishes the index into pgvector and returns the database strategy
func (v *Verifier) connectDatabase(ctx context.Context, config *helper.DatabaseConfiguration, indexType database.IndexType) (retrieval.Strategy, error) {
	db := helper.NewDatabase("factual", config, v.log)
	v.DB = db

	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	facts, err := database.NewFactsDBHandler(db, v.Index.Dim(), false)
	if err != nil {
		return nil, helper.NewError("create facts handler", err)
	}
	v.Facts = facts

	err = retrieval.Publish(ctx, facts, v.Index)
	if err != nil {
		return nil, err
	}

	err = facts.ChangeIndexType(ctx, indexType, database.IndexParams{})
	if err != nil {
		return nil, helper.NewError("change index type", err)
	}

	return retrieval.NewDatabaseStrategy(facts, v.Index), nil
}

// Verify checks one claim against the corpus.
// Blank claims fail with model.ErrEmptyClaim before any oracle runs. Every other
// failure, including a panic inside the pipeline, is returned as *model.PipelineError.
func (v *Verifier) Verify(ctx context.Context, claim string) (result *model.VerificationResult, err error) {
	claim = strings.TrimSpace(claim)
	if claim == "" {
		return nil, model.ErrEmptyClaim
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &model.PipelineError{Op: "verify", Err: fmt.Errorf("panic: %v", r)}
		}
		if err != nil {
			v.metrics.ObserveError(time.Since(start))
			v.log.Error("Verification failed", slog.String("claim", claim), slog.Any("error", err))
		}
	}()

	claimTone := v.analyzeTone(ctx, claim)

	hits, err := v.Retriever.Retrieve(ctx, claim)
	if err != nil {
		return nil, &model.PipelineError{Op: "retrieve", Err: err}
	}

	premises := make([]string, len(hits))
	for i, hit := range hits {
		premises[i] = hit.Fact.Text
	}
	scores := v.Scorer.ScoreAll(ctx, premises, claim)
	if err := ctx.Err(); err != nil {
		return nil, &model.PipelineError{Op: "score", Err: err}
	}

	decision, err := verdict.Decide(hits, scores, v.Config)
	if err != nil {
		return nil, &model.PipelineError{Op: "decide", Err: err}
	}

	result = &model.VerificationResult{
		Input:             claim,
		Verdict:           decision.Verdict,
		Message:           decision.Message,
		Probabilities:     aggregate.Probabilities(scores, v.Config.Epsilon),
		Tone:              claimTone,
		SupportingTrue:    decision.SupportingTrue,
		SupportingFalse:   decision.SupportingFalse,
		NearestConsidered: verdict.Sources(hits),
		Notes: model.Notes{
			NLIModel:       v.Config.NLIModel,
			EmbeddingModel: v.embedder.ModelName(),
			TopK:           v.Config.TopK,
			Thresholds:     v.Config.Thresholds(),
		},
	}

	v.metrics.ObserveVerification(result.Verdict, len(hits), time.Since(start))
	v.log.Info("Verified claim", slog.String("verdict", string(result.Verdict)), slog.Int("hits", len(hits)), slog.Duration("took", time.Since(start)))

	return result, nil
}

// analyzeTone degrades to a neutral tone when the sentiment oracle fails
func (v *Verifier) analyzeTone(ctx context.Context, claim string) model.Tone {
	claimTone, err := v.Tone.Analyze(ctx, claim)
	if err != nil {
		v.log.Warn("Tone analysis degraded to neutral", slog.Any("error", err))
		v.metrics.ObserveOracleFailure("sentiment")
		return model.Tone{
			Summary: tone.Summarize(0),
			Raw:     model.SentimentScores{Neutral: 1},
		}
	}
	return claimTone
}

// Len returns the number of facts in the corpus
func (v *Verifier) Len() int {
	return v.Index.Len()
}

// Close releases the model sessions and the database connection
func (v *Verifier) Close() error {
	var errs []error
	for _, closer := range v.closers {
		errs = append(errs, closer.Close())
	}
	errs = append(errs, v.DB.Close())
	return errors.Join(errs...)
}
