package render

import (
	"errors"
	"net/url"
	"strings"

	"github.com/lehigh-university-libraries/shelfsense/internal/models"
)

// ErrNoAnalysis is returned when a result card is requested before any
// analysis has completed
var ErrNoAnalysis = errors.New("Analysis Data Missing.")

// Color is the verdict color class
type Color string

const (
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
	ColorRed    Color = "red"
)

const (
	defaultProductName = "Scanned Product"
	defaultSwapQuery   = "Healthy Scan"
	defaultSources     = "General Nutrition Knowledge Base"
	defaultModel       = "Auto-Switch"
	maxTradeoffs       = 2
)

// Swap is the alternative product offered for non-healthy verdicts
type Swap struct {
	ProductName string `json:"product_name"`
	ReasonWhy   string `json:"reason_why"`
	Savings     string `json:"savings,omitempty"`
	Link        string `json:"link"`
}

// Provenance is the reasoning detail behind a verdict
type Provenance struct {
	Sources     []string `json:"sources"`
	Generic     bool     `json:"generic"`
	DataQuality int      `json:"data_quality"`
	Flag        string   `json:"flag,omitempty"`
	Intent      string   `json:"intent"`
	Model       string   `json:"model"`
}

// Card is the view model of one analysis result
type Card struct {
	ProductName string         `json:"product_name"`
	Verdict     models.Verdict `json:"verdict"`
	Label       string         `json:"label"`
	Short       string         `json:"short"`
	Color       Color          `json:"color"`
	Score       int            `json:"score"`
	Explanation string         `json:"explanation"`

	// Confidence is 100 minus the rounded uncertainty score
	Confidence int `json:"confidence"`
	// HighConfidence is above 80%
	HighConfidence bool `json:"high_confidence"`
	// UncertaintyNote is only set when uncertainty exceeds 20
	UncertaintyNote string `json:"uncertainty_note,omitempty"`

	Cons       []string   `json:"cons"`
	Pros       []string   `json:"pros"`
	Swap       *Swap      `json:"swap,omitempty"`
	FollowUps  []string   `json:"follow_ups,omitempty"`
	Provenance Provenance `json:"provenance"`
}

// ColorFor maps a verdict to its color class
func ColorFor(v models.Verdict) Color {
	switch {
	case v.IsGood():
		return ColorGreen
	case v.IsBad():
		return ColorRed
	}
	return ColorYellow
}

// SwapLink is a store search for the suggested swap product
func SwapLink(productName string) string {
	if strings.TrimSpace(productName) == "" {
		productName = defaultSwapQuery
	}
	return "https://www.amazon.com/s?k=" + url.QueryEscape(productName)
}

// NewCard builds the result card for an analysis of productName under intent
func NewCard(productName string, r *models.AnalysisResult, intent models.Intent) (*Card, error) {
	if r == nil || r.Verdict == "" {
		return nil, ErrNoAnalysis
	}
	if strings.TrimSpace(productName) == "" {
		productName = defaultProductName
	}
	if intent == "" {
		intent = models.IntentGeneral
	}

	c := &Card{
		ProductName:     productName,
		Verdict:         r.Verdict,
		Label:           strings.ReplaceAll(string(r.Verdict), "_", " "),
		Short:           r.VerdictShort,
		Color:           ColorFor(r.Verdict),
		Score:           int(r.Score + 0.5),
		Explanation:     r.Explanation,
		Confidence:      r.Confidence(),
		UncertaintyNote: r.UncertaintyReason(),
		Cons:            top(r.Tradeoffs.Cons),
		Pros:            top(r.Tradeoffs.Pros),
		FollowUps:       r.FollowUpQuestions,
	}
	c.HighConfidence = c.Confidence > 80

	if r.ShowSwap() {
		s := r.SwapSuggestion
		c.Swap = &Swap{
			ProductName: s.ProductName,
			ReasonWhy:   s.ReasonWhy,
			Savings:     s.Savings,
			Link:        SwapLink(s.ProductName),
		}
	}

	c.Provenance = Provenance{
		Sources:     r.SourcesCited,
		DataQuality: int(r.Uncertainty.Score + 0.5),
		Flag:        r.Uncertainty.Reason,
		Intent:      intent.Label(),
		Model:       r.ModelUsed,
	}
	if len(c.Provenance.Sources) == 0 {
		c.Provenance.Sources = []string{defaultSources}
		c.Provenance.Generic = true
	}
	if c.Provenance.Model == "" {
		c.Provenance.Model = defaultModel
	}
	return c, nil
}

func top(items []string) []string {
	if len(items) > maxTradeoffs {
		items = items[:maxTradeoffs]
	}
	return append([]string{}, items...)
}
