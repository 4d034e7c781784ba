package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/shelfsense/internal/providers"
	goopenai "github.com/sashabaranov/go-openai"
)

const (
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	GroqBaseURL       = "https://api.groq.com/openai/v1"
)

// Options configure an OpenAI-compatible chat completions vendor
type Options struct {
	Name    string
	APIKey  string
	BaseURL string
	Vision  bool
	Headers map[string]string
	// HTTPClient overrides the transport, mostly for tests
	HTTPClient *http.Client
}

// Compatible is a provider for any vendor that speaks the OpenAI chat
// completions protocol (OpenRouter, Groq, OpenAI itself).
type Compatible struct {
	name   string
	vision bool
	hasKey bool
	client *goopenai.Client
}

// New returns a new OpenAI-compatible provider
func New(opts Options) *Compatible {
	cfg := goopenai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if len(opts.Headers) > 0 {
		base := httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		wrapped := *httpClient
		wrapped.Transport = &headerTransport{base: base, headers: opts.Headers}
		httpClient = &wrapped
	}
	cfg.HTTPClient = httpClient

	name := opts.Name
	if name == "" {
		name = "OpenAI"
	}

	return &Compatible{
		name:   name,
		vision: opts.Vision,
		hasKey: opts.APIKey != "",
		client: goopenai.NewClientWithConfig(cfg),
	}
}

// NewOpenRouter returns the model-aggregation vendor
func NewOpenRouter(apiKey string) *Compatible {
	return New(Options{
		Name:    "OpenRouter",
		APIKey:  apiKey,
		BaseURL: OpenRouterBaseURL,
		Vision:  true,
		Headers: map[string]string{
			"HTTP-Referer": "https://shelf-sense.vercel.app",
			"X-Title":      "ShelfSense",
		},
	})
}

// NewGroq returns the fast-inference vendor. Images are not forwarded.
func NewGroq(apiKey string) *Compatible {
	return New(Options{
		Name:    "Groq",
		APIKey:  apiKey,
		BaseURL: GroqBaseURL,
	})
}

func (c *Compatible) Name() string { return c.name }

func (c *Compatible) SupportsImages() bool { return c.vision }

// Generate sends a chat completion request and returns the first choice
func (c *Compatible) Generate(ctx context.Context, req providers.Request) (string, error) {
	if !c.hasKey {
		return "", fmt.Errorf("no %s API key configured", c.name)
	}

	var messages []goopenai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	user := goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser}
	if c.vision && len(req.Image) > 0 {
		user.MultiContent = []goopenai.ChatMessagePart{
			{Type: goopenai.ChatMessagePartTypeText, Text: req.Prompt},
			{
				Type: goopenai.ChatMessagePartTypeImageURL,
				ImageURL: &goopenai.ChatMessageImageURL{
					URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(req.Image),
				},
			},
		}
	} else {
		user.Content = req.Prompt
	}
	messages = append(messages, user)

	chatReq := goopenai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
	}
	if req.JSON {
		chatReq.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", c.translateError(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from %s: %w", c.name, providers.ErrEmptyResponse)
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("empty response from %s: %w", c.name, providers.ErrEmptyResponse)
	}

	return content, nil
}

func (c *Compatible) translateError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &providers.StatusError{Provider: c.name, StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &providers.StatusError{Provider: c.name, StatusCode: reqErr.HTTPStatusCode, Body: string(reqErr.Body)}
	}
	return fmt.Errorf("failed to create chat completion: %w", err)
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	for k, v := range t.headers {
		r.Header.Set(k, v)
	}
	return t.base.RoundTrip(r)
}
