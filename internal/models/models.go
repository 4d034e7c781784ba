package models

import (
	"fmt"
	"math"
	"net/url"
	"strings"
)

// Verdict is the model's top-level judgment of a product
type Verdict string

const (
	VerdictHealthy   Verdict = "HEALTHY"
	VerdictModerate  Verdict = "MODERATE"
	VerdictUnhealthy Verdict = "UNHEALTHY"
	VerdictAvoid     Verdict = "AVOID"
)

// ParseVerdict normalizes a verdict string returned by a model
func ParseVerdict(s string) (Verdict, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	v = strings.ReplaceAll(v, " ", "_")
	switch Verdict(v) {
	case VerdictHealthy, VerdictModerate, VerdictUnhealthy, VerdictAvoid:
		return Verdict(v), nil
	}
	return "", fmt.Errorf("unknown verdict: %q", s)
}

// IsGood reports whether the verdict is HEALTHY
func (v Verdict) IsGood() bool {
	return v == VerdictHealthy
}

// IsBad reports whether the verdict is UNHEALTHY or AVOID
func (v Verdict) IsBad() bool {
	return v == VerdictAvoid || v == VerdictUnhealthy
}

// Tradeoffs lists the pros and cons of a product for the selected intent
type Tradeoffs struct {
	Pros []string `json:"pros"`
	Cons []string `json:"cons"`
}

// Uncertainty is the model-reported inverse confidence, 0-100
type Uncertainty struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason,omitempty"`
}

// SwapSuggestion is an alternative product attached to non-healthy verdicts
type SwapSuggestion struct {
	ProductName string `json:"product_name"`
	ReasonWhy   string `json:"reason_why"`
	Savings     string `json:"savings,omitempty"`
}

// AnalysisResult is the health verdict produced by one analysis call
type AnalysisResult struct {
	Verdict           Verdict         `json:"verdict"`
	VerdictShort      string          `json:"verdict_short"`
	Score             float64         `json:"score"`
	Explanation       string          `json:"explanation"`
	Tradeoffs         Tradeoffs       `json:"tradeoffs"`
	Uncertainty       Uncertainty     `json:"uncertainty"`
	SwapSuggestion    *SwapSuggestion `json:"swap_suggestion,omitempty"`
	SourcesCited      []string        `json:"sources_cited"`
	FollowUpQuestions []string        `json:"followUpQuestions"`
	ModelUsed         string          `json:"model_used,omitempty"`
}

// Confidence is 100 minus the rounded uncertainty score
func (r *AnalysisResult) Confidence() int {
	return 100 - int(math.Round(r.Uncertainty.Score))
}

// ShowSwap reports whether a swap suggestion should be offered
func (r *AnalysisResult) ShowSwap() bool {
	return r.SwapSuggestion != nil && r.SwapSuggestion.ProductName != "" && !r.Verdict.IsGood()
}

// UncertaintyReason returns the flag shown under the confidence bar, or ""
// when the model was confident enough that no flag is shown.
func (r *AnalysisResult) UncertaintyReason() string {
	if r.Uncertainty.Score <= 20 {
		return ""
	}
	if r.Uncertainty.Reason == "" {
		return "Some text was hard to read."
	}
	return r.Uncertainty.Reason
}

// Normalize clamps the numeric fields into their 0-100 ranges
func (r *AnalysisResult) Normalize() {
	r.Score = clamp(r.Score, 0, 100)
	r.Uncertainty.Score = clamp(r.Uncertainty.Score, 0, 100)
	if r.Tradeoffs.Pros == nil {
		r.Tradeoffs.Pros = []string{}
	}
	if r.Tradeoffs.Cons == nil {
		r.Tradeoffs.Cons = []string{}
	}
	if r.SourcesCited == nil {
		r.SourcesCited = []string{}
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// ProductSource tags which database produced a ProductResult
type ProductSource string

const (
	SourceOpenFoodFacts ProductSource = "OpenFoodFacts"
	SourceUPCitemdb     ProductSource = "UPCitemdb"
	SourceUnknown       ProductSource = "Unknown"
)

// ProductResult is a normalized hit from the product lookup chain
type ProductResult struct {
	Brand           string        `json:"brand"`
	ProductName     string        `json:"product_name"`
	ImageURL        string        `json:"image_url,omitempty"`
	IngredientsText string        `json:"ingredients_text,omitempty"`
	Source          ProductSource `json:"source"`
}

// DisplayName joins brand and product name
func (p *ProductResult) DisplayName() string {
	return strings.TrimSpace(p.Brand + " " + p.ProductName)
}

// ScanData is the transient per-session scan record
type ScanData struct {
	Barcode          string          `json:"barcode,omitempty"`
	Brand            string          `json:"brand,omitempty"`
	ProductName      string          `json:"product_name,omitempty"`
	IngredientsText  string          `json:"ingredients_text,omitempty"`
	FrontImage       []byte          `json:"-"`
	IngredientsImage []byte          `json:"-"`
	Analysis         *AnalysisResult `json:"analysis,omitempty"`
	Link             string          `json:"link,omitempty"`
	ForceFullScan    bool            `json:"force_full_scan,omitempty"`
}

// ContextName is the "brand product" string used in prompts
func (d *ScanData) ContextName() string {
	return strings.TrimSpace(d.Brand + " " + d.ProductName)
}

// SessionContext carries the previous analysis of a session so that the
// prompt builder can ask for a comparison.
type SessionContext struct {
	LastProduct  string          `json:"last_product,omitempty"`
	LastAnalysis *AnalysisResult `json:"last_analysis,omitempty"`
}

// Remember records a completed analysis
func (c *SessionContext) Remember(product string, result *AnalysisResult) {
	if result == nil {
		return
	}
	c.LastProduct = product
	c.LastAnalysis = result
}

// ChatMessage is one turn of a conversation
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SearchLink builds a web search link for an identified product
func SearchLink(brand, product string) string {
	q := strings.TrimSpace(brand + " " + product + " buy online")
	return "https://www.google.com/search?q=" + url.QueryEscape(q)
}
