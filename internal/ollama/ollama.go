package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/shelfsense/internal/providers"
)

// Ollama is a provider for a local Ollama server
type Ollama struct {
	baseURL string
	client  *http.Client
}

// New returns a new Ollama provider. An empty URL means http://localhost:11434.
func New(baseURL string) *Ollama {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &Ollama{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
	}
}

func (o *Ollama) Name() string { return "Ollama" }

func (o *Ollama) SupportsImages() bool { return true }

// Generate sends the prompt to Ollama's generate endpoint
func (o *Ollama) Generate(ctx context.Context, req providers.Request) (string, error) {
	body := map[string]interface{}{
		"model":  req.Model,
		"prompt": req.Prompt,
		"stream": false,
		"options": map[string]interface{}{
			"temperature": req.Temperature,
		},
	}
	if req.System != "" {
		body["system"] = req.System
	}
	if req.JSON {
		body["format"] = "json"
	}
	if len(req.Image) > 0 {
		body["images"] = []string{base64.StdEncoding.EncodeToString(req.Image)}
	}

	requestBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/api/generate", bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &providers.StatusError{Provider: o.Name(), StatusCode: resp.StatusCode, Body: string(body)}
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}
	if strings.TrimSpace(response.Response) == "" {
		return "", providers.ErrEmptyResponse
	}

	return response.Response, nil
}
