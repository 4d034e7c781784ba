package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/shelfsense/internal/imaging"
	"github.com/lehigh-university-libraries/shelfsense/internal/orchestrator"
)

const OCRSpaceURL = "https://api.ocr.space/parse/image"

// ErrNoImage is returned when there is nothing to read
var ErrNoImage = errors.New("no image to read")

// Caller is the subset of the orchestrator used for vision transcription
type Caller interface {
	Call(ctx context.Context, req orchestrator.Request) (orchestrator.Response, error)
}

// Service handles OCR extraction from label images
type Service struct {
	apiKey   string
	endpoint string
	client   *http.Client
	llm      Caller
}

// NewService creates a new OCR service. OCR.space is used when apiKey is
// set, otherwise the label is transcribed by a vision model through llm.
func NewService(apiKey string, llm Caller) *Service {
	return &Service{
		apiKey:   apiKey,
		endpoint: OCRSpaceURL,
		client:   &http.Client{Timeout: 30 * time.Second},
		llm:      llm,
	}
}

// WithEndpoint overrides the OCR.space URL
func (s *Service) WithEndpoint(endpoint string) *Service {
	s.endpoint = endpoint
	return s
}

// ExtractText reads the text printed on a label image
func (s *Service) ExtractText(ctx context.Context, image []byte) (string, error) {
	if imaging.IsBlank(image) {
		return "", ErrNoImage
	}

	if s.apiKey != "" {
		text, err := s.extractWithOCRSpace(ctx, image)
		if err == nil {
			return text, nil
		}
		if s.llm == nil {
			return "", err
		}
		slog.Warn("Cloud OCR failed, falling back to vision model", "error", err)
	}

	if s.llm == nil {
		return "", fmt.Errorf("no OCR backend configured")
	}
	return s.extractWithVision(ctx, image)
}

type ocrSpaceResponse struct {
	ParsedResults []struct {
		ParsedText string `json:"ParsedText"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool            `json:"IsErroredOnProcessing"`
	ErrorMessage          json.RawMessage `json:"ErrorMessage"`
}

// ErrorMessage is a string or a list of strings depending on the failure
func (r *ocrSpaceResponse) firstError() string {
	var list []string
	if err := json.Unmarshal(r.ErrorMessage, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	var single string
	if err := json.Unmarshal(r.ErrorMessage, &single); err == nil && single != "" {
		return single
	}
	return "OCR Parsing Error"
}

func (s *Service) extractWithOCRSpace(ctx context.Context, image []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	fields := [][2]string{
		{"base64Image", imaging.DataURL(image)},
		{"language", "eng"},
		{"isOverlayRequired", "false"},
		{"OCREngine", "2"},
	}
	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return "", fmt.Errorf("failed to write form field %s: %w", f[0], err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("apikey", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send OCR request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OCR.space returned status %d", resp.StatusCode)
	}

	var parsed ocrSpaceResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode OCR response: %w", err)
	}
	if parsed.IsErroredOnProcessing {
		return "", fmt.Errorf("OCR.space: %s", parsed.firstError())
	}

	texts := make([]string, 0, len(parsed.ParsedResults))
	for _, r := range parsed.ParsedResults {
		texts = append(texts, r.ParsedText)
	}
	slog.Info("OCR completed", "backend", "ocr.space", "regions", len(texts))
	return strings.Join(texts, "\n"), nil
}

func (s *Service) extractWithVision(ctx context.Context, image []byte) (string, error) {
	resp, err := s.llm.Call(ctx, orchestrator.Request{
		Prompt: buildOCRPrompt(),
		Image:  image,
	})
	if err != nil {
		return "", fmt.Errorf("failed to transcribe label: %w", err)
	}
	slog.Info("OCR completed", "backend", resp.ProviderLabel)
	return strings.TrimSpace(resp.Content), nil
}

func buildOCRPrompt() string {
	return `You are performing OCR (Optical Character Recognition) on a photo of a product label.

Extract ALL visible text exactly as it appears, preserving:
- Line breaks
- Capitalization
- Punctuation and percentages

Do not add any interpretation, commentary, or explanations.
Return only the transcribed text.`
}
