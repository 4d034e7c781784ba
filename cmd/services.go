package cmd

import (
	"errors"
	"log/slog"

	"github.com/lehigh-university-libraries/shelfsense/internal/analysis"
	"github.com/lehigh-university-libraries/shelfsense/internal/cache"
	"github.com/lehigh-university-libraries/shelfsense/internal/config"
	"github.com/lehigh-university-libraries/shelfsense/internal/gemini"
	"github.com/lehigh-university-libraries/shelfsense/internal/lookup"
	"github.com/lehigh-university-libraries/shelfsense/internal/ocr"
	"github.com/lehigh-university-libraries/shelfsense/internal/ollama"
	"github.com/lehigh-university-libraries/shelfsense/internal/openai"
	"github.com/lehigh-university-libraries/shelfsense/internal/orchestrator"
)

// services is everything a command needs to look up and analyze products
type services struct {
	cfg      *config.Config
	store    cache.Store
	llm      *orchestrator.Orchestrator
	lookup   *lookup.Chain
	ocr      *ocr.Service
	analysis *analysis.Service
	intents  *cache.Intents
}

// tiers returns the enabled provider tiers in priority order
func tiers(p config.ProvidersConfig) []orchestrator.Tier {
	var out []orchestrator.Tier
	if p.GeminiKey != "" {
		out = append(out, orchestrator.Tier{Provider: gemini.New(p.GeminiKey), Models: p.GeminiModels})
	}
	if p.OpenRouterKey != "" {
		out = append(out, orchestrator.Tier{Provider: openai.NewOpenRouter(p.OpenRouterKey), Models: p.OpenRouterModels})
	}
	if p.GroqKey != "" {
		out = append(out, orchestrator.Tier{Provider: openai.NewGroq(p.GroqKey), Models: p.GroqModels})
	}
	if p.OllamaURL != "" {
		out = append(out, orchestrator.Tier{Provider: ollama.New(p.OllamaURL), Models: p.OllamaModels})
	}
	return out
}

func newServices(cfg *config.Config) (*services, error) {
	cfg.WarnMissing()

	t := tiers(cfg.Providers)
	if len(t) == 0 {
		return nil, errors.New("no AI provider configured: set GEMINI_API_KEY, OPENROUTER_API_KEY, GROQ_API_KEY or OLLAMA_URL")
	}

	store, err := cache.New(cfg.Cache)
	if err != nil {
		return nil, err
	}

	llm := orchestrator.New(t, orchestrator.Options{
		AttemptTimeout: cfg.AI.AttemptTimeout,
		Temperature:    cfg.AI.Temperature,
		MaxImageWidth:  cfg.AI.MaxImageWidth,
		JPEGQuality:    cfg.AI.JPEGQuality,
		Cache:          store,
	})
	slog.Debug("AI candidates ready", "count", len(llm.Candidates()), "cache", cfg.Cache.Backend)

	return &services{
		cfg:      cfg,
		store:    store,
		llm:      llm,
		lookup:   lookup.NewDefaultChain(),
		ocr:      ocr.NewService(cfg.Providers.OCRSpaceKey, llm),
		analysis: analysis.NewService(llm),
		intents:  cache.NewIntents(store, cfg.Intent),
	}, nil
}

// candidateLabels lists every (provider, model) pair in the order tried
func (s *services) candidateLabels() []string {
	var labels []string
	for _, c := range s.llm.Candidates() {
		labels = append(labels, c.Label())
	}
	return labels
}

func (s *services) Close() {
	if err := s.store.Close(); err != nil {
		slog.Error("Unable to close cache", "err", err)
	}
}
