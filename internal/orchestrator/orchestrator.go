package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/shelfsense/internal/cache"
	"github.com/lehigh-university-libraries/shelfsense/internal/imaging"
	"github.com/lehigh-university-libraries/shelfsense/internal/providers"
	"golang.org/x/sync/singleflight"
)

// ImageFallbackNote is appended to prompts sent to text-only providers when
// the request carried an image
const ImageFallbackNote = "\n\n[Note: Image upload failed, please analyze based on text context only if possible.]"

// Tier is one provider with its models in priority order
type Tier struct {
	Provider providers.Provider
	Models   []string
}

// Candidate is a single (provider, model) pair
type Candidate struct {
	Provider providers.Provider
	Model    string
}

// Label is the provenance string shown with results, e.g. "Gemini (gemini-1.5-flash)"
func (c Candidate) Label() string {
	return fmt.Sprintf("%s (%s)", c.Provider.Name(), c.Model)
}

// Request is a provider-independent generation request
type Request struct {
	Prompt string
	System string
	Image  []byte
	JSON   bool
}

// Response is the first usable answer and who produced it
type Response struct {
	Content       string `json:"content"`
	ProviderLabel string `json:"provider_label"`
}

// Options tune the orchestrator
type Options struct {
	AttemptTimeout time.Duration
	Temperature    float64
	MaxImageWidth  int
	JPEGQuality    int
	// Cache holds text-only responses; nil disables caching
	Cache cache.Store
}

// Orchestrator tries every candidate in order until one answers
type Orchestrator struct {
	candidates []Candidate
	opts       Options
	group      singleflight.Group
}

// New flattens the tiers into the ordered candidate list
func New(tiers []Tier, opts Options) *Orchestrator {
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 15 * time.Second
	}
	if opts.MaxImageWidth <= 0 {
		opts.MaxImageWidth = imaging.DefaultMaxWidth
	}
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = imaging.DefaultQuality
	}

	var candidates []Candidate
	for _, tier := range tiers {
		if tier.Provider == nil {
			continue
		}
		for _, model := range tier.Models {
			candidates = append(candidates, Candidate{Provider: tier.Provider, Model: model})
		}
	}

	return &Orchestrator{candidates: candidates, opts: opts}
}

// Candidates returns the ordered candidate list
func (o *Orchestrator) Candidates() []Candidate {
	return append([]Candidate(nil), o.candidates...)
}

type cacheKey struct {
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	JSON   bool   `json:"json"`
}

// Call returns the first non-empty response. Text-only requests are cached
// and identical concurrent ones share a single upstream call. Requests with
// an image are never cached.
func (o *Orchestrator) Call(ctx context.Context, req Request) (Response, error) {
	if len(req.Image) > 0 {
		req.Image = imaging.Downscale(req.Image, o.opts.MaxImageWidth, o.opts.JPEGQuality)
		return o.call(ctx, req)
	}

	key, err := cache.Key(cacheKey{Prompt: req.Prompt, System: req.System, JSON: req.JSON})
	if err != nil {
		return Response{}, err
	}

	if o.opts.Cache != nil {
		entry, ok, err := cache.GetEntry(ctx, o.opts.Cache, key)
		if err != nil {
			slog.Warn("Cache read failed", "err", err)
		} else if ok {
			slog.Debug("Cache hit", "key", key[:12], "label", entry.ProviderLabel)
			return Response{Content: entry.Content, ProviderLabel: entry.ProviderLabel}, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return Response{}, fmt.Errorf("fallback canceled: %w", err)
	}

	// The shared call outlives any single caller; attempt timeouts bound it.
	shared := context.WithoutCancel(ctx)
	ch := o.group.DoChan(key, func() (interface{}, error) {
		resp, err := o.call(shared, req)
		if err != nil {
			return Response{}, err
		}
		if o.opts.Cache != nil {
			entry := cache.Entry{Content: resp.Content, ProviderLabel: resp.ProviderLabel}
			if err := cache.SetEntry(shared, o.opts.Cache, key, entry); err != nil {
				slog.Warn("Cache write failed", "err", err)
			}
		}
		return resp, nil
	})

	select {
	case <-ctx.Done():
		return Response{}, fmt.Errorf("fallback canceled: %w", ctx.Err())
	case res := <-ch:
		if res.Shared {
			slog.Debug("Shared in-flight request", "key", key[:12])
		}
		if res.Err != nil {
			return Response{}, res.Err
		}
		return res.Val.(Response), nil
	}
}

func (o *Orchestrator) call(ctx context.Context, req Request) (Response, error) {
	attempts := make([]Attempt[Response], 0, len(o.candidates))
	for _, c := range o.candidates {
		c := c
		attempts = append(attempts, Attempt[Response]{
			Label:   c.Label(),
			Timeout: o.opts.AttemptTimeout,
			Run: func(ctx context.Context) (Response, error) {
				return o.try(ctx, c, req)
			},
		})
	}
	return FirstSuccess(ctx, attempts)
}

func (o *Orchestrator) try(ctx context.Context, c Candidate, req Request) (Response, error) {
	slog.Info("Trying model", "provider", c.Provider.Name(), "model", c.Model)

	preq := providers.Request{
		Model:       c.Model,
		Prompt:      req.Prompt,
		System:      req.System,
		JSON:        req.JSON,
		Temperature: o.opts.Temperature,
	}
	if len(req.Image) > 0 {
		if c.Provider.SupportsImages() {
			preq.Image = req.Image
		} else {
			preq.Prompt += ImageFallbackNote
		}
	}

	content, err := c.Provider.Generate(ctx, preq)
	if err != nil {
		return Response{}, err
	}
	if strings.TrimSpace(content) == "" {
		return Response{}, providers.ErrEmptyResponse
	}

	slog.Info("Model answered", "label", c.Label())
	return Response{Content: content, ProviderLabel: c.Label()}, nil
}

// PingResult is the health of one candidate
type PingResult struct {
	Label   string        `json:"label"`
	Kind    Kind          `json:"kind"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// Ping sends a short prompt to every candidate and reports each outcome
func (o *Orchestrator) Ping(ctx context.Context) []PingResult {
	results := make([]PingResult, 0, len(o.candidates))
	for _, c := range o.candidates {
		start := time.Now()
		_, err := runAttempt(ctx, Attempt[Response]{
			Label:   c.Label(),
			Timeout: o.opts.AttemptTimeout,
			Run: func(ctx context.Context) (Response, error) {
				return o.try(ctx, c, Request{Prompt: "Reply with the single word OK."})
			},
		})
		r := PingResult{Label: c.Label(), Kind: Classify(err), Latency: time.Since(start)}
		if err != nil {
			r.Error = err.Error()
		}
		results = append(results, r)
	}
	return results
}
