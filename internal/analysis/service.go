package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/lehigh-university-libraries/shelfsense/internal/imaging"
	"github.com/lehigh-university-libraries/shelfsense/internal/lookup"
	"github.com/lehigh-university-libraries/shelfsense/internal/models"
	"github.com/lehigh-university-libraries/shelfsense/internal/orchestrator"
)

// ErrParse is returned when the model answer is not a usable analysis
var ErrParse = errors.New("failed to parse analysis JSON")

// minIngredientsForTextOnly is the ingredient text length above which the
// image is not sent to the model
const minIngredientsForTextOnly = 20

// LLM is the orchestrator as seen by the analysis service
type LLM interface {
	Call(ctx context.Context, req orchestrator.Request) (orchestrator.Response, error)
}

// Service turns product data and label photos into health verdicts
type Service struct {
	llm LLM
}

// NewService creates a new analysis service
func NewService(llm LLM) *Service {
	return &Service{llm: llm}
}

// AnalyzeInput is everything known about a product when it is analyzed
type AnalyzeInput struct {
	Image       []byte
	ProductName string
	Ingredients string
	Intent      models.Intent
	Session     *models.SessionContext
}

// TextOnly reports whether the analysis can skip the image
func (in AnalyzeInput) TextOnly() bool {
	return imaging.IsBlank(in.Image) || len(in.Ingredients) > minIngredientsForTextOnly
}

// AnalyzeImage produces a verdict from a label photo and whatever text is
// known. With enough ingredient text, or without a real photo, the request is
// text-only.
func (s *Service) AnalyzeImage(ctx context.Context, in AnalyzeInput) (*models.AnalysisResult, error) {
	req := orchestrator.Request{
		Prompt: BuildAnalysisPrompt(in.ProductName, in.Ingredients, in.Intent, in.Session),
		JSON:   true,
	}
	if in.TextOnly() {
		slog.Info("Analyzing product", "mode", "text", "product", in.ProductName, "intent", in.Intent)
	} else {
		slog.Info("Analyzing product", "mode", "vision", "product", in.ProductName, "intent", in.Intent)
		req.Image = in.Image
	}

	resp, err := s.llm.Call(ctx, req)
	if err != nil {
		return nil, err
	}

	result, err := ParseAnalysis(resp.Content)
	if err != nil {
		slog.Error("Failed to parse analysis", "label", resp.ProviderLabel, "content", resp.Content)
		return nil, err
	}
	result.ModelUsed = resp.ProviderLabel
	return result, nil
}

// AnalyzeProductData analyzes a product from database nutrition data. The
// data is authoritative, so uncertainty is always 0.
func (s *Service) AnalyzeProductData(ctx context.Context, product *lookup.OFFProduct, intent models.Intent) (*models.AnalysisResult, error) {
	if product == nil {
		return nil, fmt.Errorf("no product data")
	}
	resp, err := s.llm.Call(ctx, orchestrator.Request{
		Prompt: BuildLabDataPrompt(product.Summary(), intent),
		JSON:   true,
	})
	if err != nil {
		return nil, err
	}

	result, err := ParseAnalysis(resp.Content)
	if err != nil {
		return nil, err
	}
	result.Uncertainty = models.Uncertainty{Score: 0}
	result.ModelUsed = resp.ProviderLabel
	return result, nil
}

// Identification is a product recognized from its front packaging
type Identification struct {
	Brand   string `json:"brand"`
	Product string `json:"product"`
	Link    string `json:"link,omitempty"`
}

// Known reports whether the model recognized the product
func (i Identification) Known() bool {
	return i.Brand != "Unknown" && (i.Brand != "" || i.Product != "")
}

// Name joins brand and product
func (i Identification) Name() string {
	return strings.TrimSpace(i.Brand + " " + i.Product)
}

// IdentifyProduct asks a vision model for "Brand - Product Name"
func (s *Service) IdentifyProduct(ctx context.Context, image []byte) (Identification, error) {
	resp, err := s.llm.Call(ctx, orchestrator.Request{Prompt: identifyPrompt, Image: image})
	if err != nil {
		return Identification{}, err
	}
	id := ParseIdentification(resp.Content)
	slog.Info("Product identified", "brand", id.Brand, "product", id.Product, "label", resp.ProviderLabel)
	return id, nil
}

// ParseIdentification interprets the "Brand - Product Name" answer
func ParseIdentification(text string) Identification {
	text = strings.Trim(strings.TrimSpace(text), `"'`)
	if len(text) <= 3 || strings.Contains(strings.ToLower(text), "unknown") {
		return Identification{Brand: "Unknown"}
	}
	brand, product, found := strings.Cut(text, "-")
	if !found {
		return Identification{Product: text}
	}
	brand, product = strings.TrimSpace(brand), strings.TrimSpace(product)
	return Identification{
		Brand:   brand,
		Product: product,
		Link:    models.SearchLink(brand, product),
	}
}

// VerifyIngredients asks for the official ingredient list of a named product
func (s *Service) VerifyIngredients(ctx context.Context, productName string) (string, error) {
	resp, err := s.llm.Call(ctx, orchestrator.Request{Prompt: buildVerifyPrompt(productName)})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// ChatWithProduct answers a question about the scanned product
func (s *Service) ChatWithProduct(ctx context.Context, productName, ingredients string, history []models.ChatMessage, question string) (string, error) {
	resp, err := s.llm.Call(ctx, orchestrator.Request{
		Prompt: buildProductChatPrompt(productName, ingredients, history, question),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// Chat sends a query to a voice persona
func (s *Service) Chat(ctx context.Context, persona Persona, query string, history []models.ChatMessage) (string, error) {
	resp, err := s.llm.Call(ctx, orchestrator.Request{
		Prompt: buildPersonaPrompt(query, history),
		System: persona.SystemPrompt(),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

var fenceRe = regexp.MustCompile("```(?:json)?\\n?|\\n?```")

// CleanJSON strips markdown fences and any prose around the JSON object
func CleanJSON(content string) string {
	cleaned := strings.TrimSpace(fenceRe.ReplaceAllString(content, ""))
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		return cleaned[start : end+1]
	}
	return cleaned
}

// ParseAnalysis decodes a model answer into an AnalysisResult
func ParseAnalysis(content string) (*models.AnalysisResult, error) {
	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(CleanJSON(content)), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if result.Verdict == "" {
		return nil, fmt.Errorf("%w: missing verdict", ErrParse)
	}
	verdict, err := models.ParseVerdict(string(result.Verdict))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	result.Verdict = verdict
	result.Normalize()
	return &result, nil
}
