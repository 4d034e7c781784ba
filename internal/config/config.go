package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/shelfsense/internal/cache"
	"github.com/lehigh-university-libraries/shelfsense/internal/models"
	"github.com/spf13/viper"
)

// Provider model lists in priority order
var (
	DefaultGeminiModels = []string{
		"gemini-2.0-flash-exp",
		"gemini-2.0-flash-lite-preview-02-05",
		"gemini-1.5-flash",
		"gemini-1.5-flash-8b",
		"gemini-1.5-pro",
	}
	DefaultOpenRouterModels = []string{
		"google/gemini-2.0-flash-exp:free",
		"google/gemini-2.0-flash-lite-preview-02-05:free",
		"google/gemini-2.0-pro-exp-02-05:free",
		"meta-llama/llama-3.3-70b-instruct:free",
		"deepseek/deepseek-r1:free",
		"deepseek/deepseek-v3:free",
		"qwen/qwen-2.5-vl-72b-instruct:free",
		"qwen/qwen-2.5-72b-instruct:free",
		"microsoft/phi-3-medium-128k-instruct:free",
		"mistralai/mistral-large-2411:free",
		"google/gemini-2.0-flash-001",
		"anthropic/claude-3.5-sonnet",
		"anthropic/claude-3-haiku",
		"openai/gpt-4o-mini",
		"openai/gpt-4o",
		"meta-llama/llama-3.2-90b-vision-instruct",
	}
	DefaultGroqModels = []string{
		"llama-3.3-70b-versatile",
		"llama-3.1-8b-instant",
		"mixtral-8x7b-32768",
		"gemma2-9b-it",
	}
	DefaultOllamaModels = []string{"llava"}
)

// Config is the resolved application configuration
type Config struct {
	Port      int
	Cache     cache.Config
	AI        AIConfig
	Providers ProvidersConfig
	Scan      ScanConfig
	Intent    models.Intent
	Eval      EvalConfig
}

type AIConfig struct {
	AttemptTimeout time.Duration
	Temperature    float64
	MaxImageWidth  int
	JPEGQuality    int
}

// ProvidersConfig holds vendor credentials and model lists. A tier whose
// credential is empty is disabled.
type ProvidersConfig struct {
	GeminiKey        string
	GeminiModels     []string
	OpenRouterKey    string
	OpenRouterModels []string
	GroqKey          string
	GroqModels       []string
	OllamaURL        string
	OllamaModels     []string
	OCRSpaceKey      string
}

type ScanConfig struct {
	ConfirmFrames int
	SettleDelay   time.Duration
}

type EvalConfig struct {
	Concurrency int
	OutputDir   string
}

// SetDefaults registers every key with its default value
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8888)
	v.SetDefault("cache.backend", cache.BackendMemory)
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "shelfsense:")
	v.SetDefault("ai.attempt_timeout", 15*time.Second)
	v.SetDefault("ai.temperature", 0.3)
	v.SetDefault("ai.max_image_width", 800)
	v.SetDefault("ai.jpeg_quality", 80)
	v.SetDefault("providers.gemini.models", DefaultGeminiModels)
	v.SetDefault("providers.openrouter.models", DefaultOpenRouterModels)
	v.SetDefault("providers.groq.models", DefaultGroqModels)
	v.SetDefault("providers.ollama.models", DefaultOllamaModels)
	v.SetDefault("scan.confirm_frames", 5)
	v.SetDefault("scan.settle_delay", time.Duration(0))
	v.SetDefault("intent.default", string(models.IntentGeneral))
	v.SetDefault("eval.concurrency", 4)
	v.SetDefault("eval.output_dir", "evals")
}

// vendorEnv maps keys to the vendor environment variable names, first match wins
var vendorEnv = map[string][]string{
	"providers.gemini.api_key":     {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"providers.openrouter.api_key": {"OPENROUTER_API_KEY"},
	"providers.groq.api_key":       {"GROQ_API_KEY"},
	"providers.ollama.url":         {"OLLAMA_URL"},
	"ocr.api_key":                  {"OCR_SPACE_API_KEY"},
}

// New returns a viper instance with defaults, the SHELFSENSE_ environment
// prefix and the vendor credential variables bound. file may be empty to
// search ./shelfsense.yaml and $HOME/.config/shelfsense/shelfsense.yaml.
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("SHELFSENSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range vendorEnv {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("shelfsense")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "shelfsense"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

// Load resolves the configuration from v
func Load(v *viper.Viper) (*Config, error) {
	intent, err := models.ParseIntent(v.GetString("intent.default"))
	if err != nil {
		return nil, fmt.Errorf("invalid intent.default: %w", err)
	}

	cfg := &Config{
		Port: v.GetInt("server.port"),
		Cache: cache.Config{
			Backend: v.GetString("cache.backend"),
			TTL:     v.GetDuration("cache.ttl"),
			Redis: cache.RedisConfig{
				Addr:     v.GetString("redis.addr"),
				Password: v.GetString("redis.password"),
				DB:       v.GetInt("redis.db"),
				Prefix:   v.GetString("redis.prefix"),
			},
		},
		AI: AIConfig{
			AttemptTimeout: v.GetDuration("ai.attempt_timeout"),
			Temperature:    v.GetFloat64("ai.temperature"),
			MaxImageWidth:  v.GetInt("ai.max_image_width"),
			JPEGQuality:    v.GetInt("ai.jpeg_quality"),
		},
		Providers: ProvidersConfig{
			GeminiKey:        v.GetString("providers.gemini.api_key"),
			GeminiModels:     v.GetStringSlice("providers.gemini.models"),
			OpenRouterKey:    v.GetString("providers.openrouter.api_key"),
			OpenRouterModels: v.GetStringSlice("providers.openrouter.models"),
			GroqKey:          v.GetString("providers.groq.api_key"),
			GroqModels:       v.GetStringSlice("providers.groq.models"),
			OllamaURL:        v.GetString("providers.ollama.url"),
			OllamaModels:     v.GetStringSlice("providers.ollama.models"),
			OCRSpaceKey:      v.GetString("ocr.api_key"),
		},
		Scan: ScanConfig{
			ConfirmFrames: v.GetInt("scan.confirm_frames"),
			SettleDelay:   v.GetDuration("scan.settle_delay"),
		},
		Intent: intent,
		Eval: EvalConfig{
			Concurrency: v.GetInt("eval.concurrency"),
			OutputDir:   v.GetString("eval.output_dir"),
		},
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid server.port: %d", cfg.Port)
	}
	if cfg.Scan.ConfirmFrames < 1 {
		return nil, fmt.Errorf("invalid scan.confirm_frames: %d", cfg.Scan.ConfirmFrames)
	}
	if cfg.Eval.Concurrency < 1 {
		cfg.Eval.Concurrency = 1
	}
	return cfg, nil
}

// WarnMissing logs every provider tier disabled for lack of a credential
func (c *Config) WarnMissing() {
	p := c.Providers
	if p.GeminiKey == "" {
		slog.Warn("Gemini API key missing, tier disabled", "env", "GEMINI_API_KEY")
	}
	if p.OpenRouterKey == "" {
		slog.Warn("OpenRouter API key missing, tier disabled", "env", "OPENROUTER_API_KEY")
	}
	if p.GroqKey == "" {
		slog.Warn("Groq API key missing, tier disabled", "env", "GROQ_API_KEY")
	}
	if p.OCRSpaceKey == "" {
		slog.Info("OCR.space key not set, OCR falls back to vision models")
	}
}
