package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hr-screener/internal/ai/gemini"
	"github.com/spigell/hr-screener/internal/cache"
	"github.com/spigell/hr-screener/internal/calendar"
	"github.com/spigell/hr-screener/internal/credentials"
	"github.com/spigell/hr-screener/internal/decision"
	"github.com/spigell/hr-screener/internal/extract"
	"github.com/spigell/hr-screener/internal/jobpost"
	"github.com/spigell/hr-screener/internal/pipeline"
	"github.com/spigell/hr-screener/internal/secrets"
	"github.com/spigell/hr-screener/internal/similarity"
)

func newFetcher(config *Config, logger *zap.Logger) pipeline.JobFetcher {
	if strings.TrimSpace(config.JobURL) == "" {
		logger.Info("no job url given, using the built-in job description")
		return jobpost.Static{Title: config.JobTitle, Text: defaultJobDescription}
	}

	return jobpost.New(logger,
		jobpost.WithTimeout(config.Fetch.Timeout),
		jobpost.WithUserAgent(config.Fetch.UserAgent),
		jobpost.WithRateLimit(config.Fetch.RequestsPerSecond, config.Fetch.Burst),
	)
}

func newExtractor(config *Config, logger *zap.Logger) *extract.Extractor {
	if !config.Extract.OCR {
		return extract.New(nil, logger)
	}

	return extract.New(&extract.Tesseract{
		Binary:   config.Extract.Tesseract,
		PDFToPPM: config.Extract.PDFToPPM,
		Language: config.Extract.Language,
	}, logger)
}

func newGenerator(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (*gemini.Generator, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	gcfg := gemini.Config{
		Backend:        cfg.Gemini.Backend,
		Project:        cfg.Gemini.Project,
		Location:       cfg.Gemini.Location,
		Model:          cfg.Gemini.Model,
		EmbeddingModel: cfg.Gemini.EmbeddingModel,
		MaxRetries:     cfg.Gemini.MaxRetries,
	}

	if !strings.EqualFold(strings.TrimSpace(cfg.Gemini.Backend), gemini.BackendVertexAI) {
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			File:  cfg.Gemini.APIKeyFile,
			Value: cfg.Gemini.APIKey,
			Env:   "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set GEMINI_API_KEY, GEMINI_API_KEY_FILE or ai.gemini.api-key-file)", err)
		}
		gcfg.APIKey = apiKey
	}

	genLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", cfg.Gemini.Model),
		zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
	)

	return gemini.NewGenerator(ctx, gcfg, genLogger)
}

func newPipeline(ctx context.Context, config *Config, scheduler *calendar.Scheduler, logger *zap.Logger) (*pipeline.Pipeline, error) {
	generator, err := newGenerator(ctx, &config.AI, logger)
	if err != nil {
		return nil, fmt.Errorf("building gemini client: %w", err)
	}

	logger.Info("ai backend ready",
		zap.String("model", generator.Model()),
		zap.String("embedding_model", generator.EmbeddingModel()),
	)

	policy, err := decision.NewPolicy(config.AI.MinimumPassingScore)
	if err != nil {
		return nil, err
	}

	deps := pipeline.Deps{
		Fetcher:    newFetcher(config, logger),
		Extractor:  newExtractor(config, logger),
		Similarity: similarity.New(generator),
		Evaluator:  gemini.NewEvaluator(generator, config.AI.Gemini.MaxLogLength, logger),
		Policy:     policy,
		Logger:     logger,
	}
	// a nil *calendar.Scheduler must stay a nil interface
	if scheduler != nil {
		deps.Scheduler = scheduler
	}

	var opts []pipeline.Option
	if config.Screening.GateOnSimilarity {
		threshold := config.Screening.MinimumSimilarity
		if threshold <= 0 {
			threshold = similarity.DefaultThreshold
		}
		opts = append(opts, pipeline.WithSimilarityGate(threshold))
	}

	return pipeline.New(deps, opts...)
}

func newTokenStore(cfg *CalendarConfig) (credentials.TokenStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.TokenStore)) {
	case "", "file":
		if strings.TrimSpace(cfg.TokenFile) == "" {
			return nil, errors.New("calendar.token-file is required for the file token store")
		}
		return &credentials.FileStore{Path: cfg.TokenFile}, nil
	case "keyring":
		return &credentials.KeyringStore{Account: cfg.KeyringAccount}, nil
	default:
		return nil, fmt.Errorf("unsupported token store: %s", cfg.TokenStore)
	}
}

func newCredentialProvider(cfg *CalendarConfig, logger *zap.Logger) (*credentials.Provider, error) {
	clientJSON, err := secrets.ReadFile("calendar credentials", cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("%w (set HR_CALENDAR_CREDENTIALS or calendar.credentials-file)", err)
	}

	store, err := newTokenStore(cfg)
	if err != nil {
		return nil, err
	}

	return credentials.NewProvider(clientJSON, store, logger, calendar.Scope)
}

func newScheduler(cfg *CalendarConfig, logger *zap.Logger) (*calendar.Scheduler, error) {
	provider, err := newCredentialProvider(cfg, logger)
	if err != nil {
		return nil, err
	}

	return calendar.New(calendar.NewGoogleEvents(provider), calendar.Config{
		CalendarID:     cfg.CalendarID,
		Timezone:       cfg.Timezone,
		Duration:       cfg.Duration,
		RecruiterEmail: cfg.RecruiterEmail,
	}, logger)
}

// storeCloser is returned by newStore so callers close sqlite stores.
type storeCloser func() error

func newStore(ctx context.Context, cfg *CacheConfig) (cache.Store, storeCloser, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "memory":
		return cache.NewMemory(cfg.MaxEntries), func() error { return nil }, nil
	case "sqlite":
		store, err := cache.OpenSQLite(ctx, cfg.Path, cfg.MaxEntries)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
}
