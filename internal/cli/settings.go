package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/siherrmann/factual"
	"github.com/siherrmann/factual/core/corpus"
	"github.com/siherrmann/factual/core/pipeline"
	"github.com/siherrmann/factual/database"
	"github.com/siherrmann/factual/helper"
	"github.com/siherrmann/factual/model"
	"github.com/siherrmann/factual/observability"
	"github.com/spf13/viper"
)

// Oracle backends
const (
	BackendLocal  = "local"
	BackendOpenAI = "openai"
)

// DefaultCorpus are the corpus files loaded when none are given
var DefaultCorpus = []string{
	"financial_aid_facts.json",
	"cornell_mealplans_2025.json",
	"cornell_classes_2025.json",
}

var envKeyReplacer = strings.NewReplacer(".", "_", "-", "_")

// OpenAISettings configure the openai backend
type OpenAISettings struct {
	APIKey         string        `yaml:"api_key,omitempty"`
	BaseURL        string        `yaml:"base_url,omitempty"`
	EmbeddingModel string        `yaml:"embedding_model"`
	NLIModel       string        `yaml:"nli_model"`
	RateLimit      float64       `yaml:"rate_limit"`
	Timeout        time.Duration `yaml:"timeout"`
}

// DatabaseSettings configure the optional pgvector mirror, the connection comes from DB_* env
type DatabaseSettings struct {
	Enabled bool   `yaml:"enabled"`
	Index   string `yaml:"index"`
}

// Settings is the resolved configuration of one command run
type Settings struct {
	LogLevel    string             `yaml:"log_level"`
	Corpus      []string           `yaml:"corpus"`
	Backend     string             `yaml:"backend"`
	Concurrency int                `yaml:"concurrency"`
	Verify      model.VerifyConfig `yaml:"verify"`
	OpenAI      OpenAISettings     `yaml:"openai"`
	Database    DatabaseSettings   `yaml:"database"`
	Server      ServerSettings     `yaml:"server"`
}

// ServerSettings configure the serve command
type ServerSettings struct {
	Addr    string        `yaml:"addr"`
	Timeout time.Duration `yaml:"timeout"`
}

// loadSettings resolves flags, FACTUAL_* env, the config file and defaults
func loadSettings() (*Settings, error) {
	defaults := model.DefaultVerifyConfig()
	viper.SetDefault("verify.top_k", defaults.TopK)
	viper.SetDefault("verify.min_similarity", defaults.MinSimilarity)
	viper.SetDefault("verify.entailment_threshold", defaults.EntailmentThreshold)
	viper.SetDefault("verify.contradiction_threshold", defaults.ContradictionThreshold)
	viper.SetDefault("verify.max_supporting", defaults.MaxSupporting)
	viper.SetDefault("verify.epsilon", defaults.Epsilon)
	viper.SetDefault("verify.nli_model", defaults.NLIModel)
	viper.SetDefault("verify.embedding_model", defaults.EmbeddingModel)
	viper.SetDefault("openai.nli_model", "gpt-4o-mini")
	viper.SetDefault("openai.embedding_model", "text-embedding-3-small")
	viper.SetDefault("openai.rate_limit", 5.0)
	viper.SetDefault("openai.timeout", 30*time.Second)
	viper.SetDefault("server.addr", "0.0.0.0:5000")
	viper.SetDefault("server.timeout", 60*time.Second)

	verify := defaults
	verify.TopK = viper.GetInt("verify.top_k")
	verify.MinSimilarity = viper.GetFloat64("verify.min_similarity")
	verify.EntailmentThreshold = viper.GetFloat64("verify.entailment_threshold")
	verify.ContradictionThreshold = viper.GetFloat64("verify.contradiction_threshold")
	verify.MaxSupporting = viper.GetInt("verify.max_supporting")
	verify.Epsilon = viper.GetFloat64("verify.epsilon")
	verify.NLIModel = viper.GetString("verify.nli_model")
	verify.EmbeddingModel = viper.GetString("verify.embedding_model")

	s := &Settings{
		LogLevel:    viper.GetString("log_level"),
		Corpus:      viper.GetStringSlice("corpus"),
		Backend:     strings.ToLower(viper.GetString("backend")),
		Concurrency: viper.GetInt("concurrency"),
		Verify:      verify,
		OpenAI: OpenAISettings{
			APIKey:         viper.GetString("openai.api_key"),
			BaseURL:        viper.GetString("openai.base_url"),
			EmbeddingModel: viper.GetString("openai.embedding_model"),
			NLIModel:       viper.GetString("openai.nli_model"),
			RateLimit:      viper.GetFloat64("openai.rate_limit"),
			Timeout:        viper.GetDuration("openai.timeout"),
		},
		Database: DatabaseSettings{
			Enabled: viper.GetBool("database.enabled"),
			Index:   viper.GetString("database.index"),
		},
		Server: ServerSettings{
			Addr:    viper.GetString("server.addr"),
			Timeout: viper.GetDuration("server.timeout"),
		},
	}

	if len(s.Corpus) == 0 {
		s.Corpus = DefaultCorpus
	}
	if s.Backend == "" {
		s.Backend = BackendLocal
	}
	if s.Backend != BackendLocal && s.Backend != BackendOpenAI {
		return nil, fmt.Errorf("unknown backend %q, expected %s or %s", s.Backend, BackendLocal, BackendOpenAI)
	}
	if s.Backend == BackendOpenAI {
		if s.OpenAI.APIKey == "" {
			s.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		s.Verify.NLIModel = s.OpenAI.NLIModel
		s.Verify.EmbeddingModel = s.OpenAI.EmbeddingModel
	}
	if err := s.Verify.Validate(); err != nil {
		return nil, helper.NewError("verify config", err)
	}

	return s, nil
}

// redacted returns a copy safe to print
func (s Settings) redacted() Settings {
	if s.OpenAI.APIKey != "" {
		s.OpenAI.APIKey = "***"
	}
	return s
}

// logger builds the pretty logger for the configured level.
// Commands pass stderr so stdout only carries their output.
func (s *Settings) logger(out io.Writer) *slog.Logger {
	return helper.NewLogger(out, helper.ParseLevel(s.LogLevel))
}

// indexType maps the configured pgvector index name
func (s *Settings) indexType() (database.IndexType, error) {
	switch strings.ToLower(s.Database.Index) {
	case "", "none":
		return database.IndexNone, nil
	case "hnsw":
		return database.IndexHNSW, nil
	case "ivfflat":
		return database.IndexIVFFlat, nil
	default:
		return database.IndexNone, fmt.Errorf("unknown index type %q", s.Database.Index)
	}
}

// oracles creates the embedding, NLI and sentiment oracles of the configured backend.
// The returned options register the local model sessions for release on Close.
func (s *Settings) oracles() (pipeline.Oracles, []factual.Option, error) {
	oracles := pipeline.Oracles{Sentiment: pipeline.DefaultSentiment()}

	switch s.Backend {
	case BackendOpenAI:
		config := pipeline.OpenAIConfig{
			APIKey:  s.OpenAI.APIKey,
			BaseURL: s.OpenAI.BaseURL,
			Timeout: s.OpenAI.Timeout,
		}
		limits := []pipeline.OpenAIOption{}
		if s.OpenAI.RateLimit > 0 {
			limits = append(limits, pipeline.WithRateLimit(s.OpenAI.RateLimit, 1))
		}

		config.Model = s.OpenAI.EmbeddingModel
		embedder, err := pipeline.NewOpenAIEmbedder(config, limits...)
		if err != nil {
			return oracles, nil, helper.NewError("openai embedder", err)
		}

		config.Model = s.OpenAI.NLIModel
		classifier, err := pipeline.NewOpenAINLIClassifier(config, limits...)
		if err != nil {
			return oracles, nil, helper.NewError("openai nli classifier", err)
		}

		oracles.Embedder = embedder
		oracles.NLI = classifier.NLIFunc()
		return oracles, nil, nil
	default:
		embedder, err := pipeline.NewHugotEmbedder(s.Verify.EmbeddingModel)
		if err != nil {
			return oracles, nil, helper.NewError("local embedder", err)
		}

		classifier, err := pipeline.NewHugotNLIClassifier(s.Verify.NLIModel, pipeline.DefaultPairSeparator)
		if err != nil {
			_ = embedder.Close()
			return oracles, nil, helper.NewError("local nli classifier", err)
		}

		oracles.Embedder = embedder
		oracles.NLI = classifier.NLIFunc()
		return oracles, []factual.Option{factual.WithClosers(embedder, classifier)}, nil
	}
}

// buildVerifier loads the corpus and creates the verifier
func (s *Settings) buildVerifier(ctx context.Context, logger *slog.Logger, metrics *observability.Metrics) (*factual.Verifier, error) {
	facts, err := corpus.NewLoader(logger).LoadFiles(s.Corpus...)
	if err != nil {
		return nil, err
	}

	oracles, opts, err := s.oracles()
	if err != nil {
		return nil, err
	}

	opts = append(opts,
		factual.WithConfig(s.Verify),
		factual.WithLogger(logger),
		factual.WithConcurrency(s.Concurrency),
		factual.WithMetrics(metrics),
	)

	if s.Database.Enabled {
		dbConfig, err := helper.NewDatabaseConfiguration()
		if err != nil {
			return nil, err
		}
		indexType, err := s.indexType()
		if err != nil {
			return nil, err
		}
		opts = append(opts, factual.WithDatabase(dbConfig, indexType))
	}

	return factual.NewVerifier(ctx, facts, oracles, opts...)
}
