package providers

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned when a model answers with no usable text
var ErrEmptyResponse = errors.New("empty response")

// Request is a single generation request sent to one model of a provider
type Request struct {
	Model       string
	Prompt      string
	System      string
	Image       []byte // JPEG, optional
	JSON        bool
	Temperature float64
}

// Provider defines the interface for an LLM provider
type Provider interface {
	// Name is the display name used in provider labels, e.g. "Gemini"
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
	// SupportsImages reports whether Request.Image is forwarded to the model
	SupportsImages() bool
}

// StatusError is returned when a provider answers with a non-2xx status
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned HTTP %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s returned HTTP %d: %s", e.Provider, e.StatusCode, e.Body)
}
