package render

import (
	"strings"
	"testing"

	"github.com/lehigh-university-libraries/shelfsense/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *models.AnalysisResult {
	return &models.AnalysisResult{
		Verdict:      models.VerdictUnhealthy,
		VerdictShort: "Sugar bomb",
		Score:        31.6,
		Explanation:  "High added sugar for a breakfast cereal.",
		Tradeoffs: models.Tradeoffs{
			Pros: []string{"Fortified", "Cheap", "Crunchy"},
			Cons: []string{"12g sugar", "Palm oil", "Artificial color"},
		},
		Uncertainty:    models.Uncertainty{Score: 34.4, Reason: "Blurry label"},
		SwapSuggestion: &models.SwapSuggestion{ProductName: "Plain Oats & Honey", ReasonWhy: "Less sugar", Savings: "-8g sugar"},
		ModelUsed:      "Gemini (gemini-2.0-flash-exp)",
	}
}

func TestColorFor(t *testing.T) {
	tests := []struct {
		verdict models.Verdict
		want    Color
	}{
		{models.VerdictHealthy, ColorGreen},
		{models.VerdictModerate, ColorYellow},
		{models.VerdictUnhealthy, ColorRed},
		{models.VerdictAvoid, ColorRed},
	}
	for _, tt := range tests {
		t.Run(string(tt.verdict), func(t *testing.T) {
			assert.Equal(t, tt.want, ColorFor(tt.verdict))
		})
	}
}

func TestNewCard(t *testing.T) {
	c, err := NewCard("Choco Crunch", sample(), models.IntentLowSugar)
	require.NoError(t, err)

	assert.Equal(t, "UNHEALTHY", c.Label)
	assert.Equal(t, ColorRed, c.Color)
	assert.Equal(t, 32, c.Score)
	assert.Equal(t, 66, c.Confidence)
	assert.False(t, c.HighConfidence)
	assert.Equal(t, "Blurry label", c.UncertaintyNote)
	assert.Equal(t, []string{"12g sugar", "Palm oil"}, c.Cons)
	assert.Equal(t, []string{"Fortified", "Cheap"}, c.Pros)

	require.NotNil(t, c.Swap)
	assert.Equal(t, "https://www.amazon.com/s?k=Plain+Oats+%26+Honey", c.Swap.Link)

	assert.True(t, c.Provenance.Generic)
	assert.Equal(t, []string{"General Nutrition Knowledge Base"}, c.Provenance.Sources)
	assert.Equal(t, 34, c.Provenance.DataQuality)
	assert.Equal(t, "Low Sugar", c.Provenance.Intent)
	assert.Equal(t, "Gemini (gemini-2.0-flash-exp)", c.Provenance.Model)
}

func TestNewCardHealthyHidesSwap(t *testing.T) {
	r := sample()
	r.Verdict = models.VerdictHealthy
	r.Uncertainty = models.Uncertainty{Score: 5}
	r.SourcesCited = []string{"WHO sugar guideline"}
	r.ModelUsed = ""

	c, err := NewCard("", r, "")
	require.NoError(t, err)
	assert.Nil(t, c.Swap)
	assert.Equal(t, "Scanned Product", c.ProductName)
	assert.True(t, c.HighConfidence)
	assert.Empty(t, c.UncertaintyNote)
	assert.False(t, c.Provenance.Generic)
	assert.Equal(t, "Auto-Switch", c.Provenance.Model)
	assert.Equal(t, "General", c.Provenance.Intent)
}

func TestNewCardMissingAnalysis(t *testing.T) {
	_, err := NewCard("x", nil, models.IntentGeneral)
	assert.ErrorIs(t, err, ErrNoAnalysis)

	_, err = NewCard("x", &models.AnalysisResult{}, models.IntentGeneral)
	assert.ErrorIs(t, err, ErrNoAnalysis)
}

func TestSwapLinkDefault(t *testing.T) {
	assert.Equal(t, "https://www.amazon.com/s?k=Healthy+Scan", SwapLink(" "))
}

func TestText(t *testing.T) {
	c, err := NewCard("Choco Crunch", sample(), models.IntentLowSugar)
	require.NoError(t, err)

	var b strings.Builder
	require.NoError(t, Text(&b, c))
	out := b.String()

	assert.Contains(t, out, "[RED] UNHEALTHY - Sugar bomb (score 32)")
	assert.Contains(t, out, "Confidence: 66%")
	assert.Contains(t, out, "  - 12g sugar\n")
	assert.Contains(t, out, "  + Cheap\n")
	assert.NotContains(t, out, "Artificial color")
	assert.Contains(t, out, "Try instead: Plain Oats & Honey (-8g sugar)")
	assert.Contains(t, out, "FLAG: Blurry label")
	assert.Contains(t, out, `Intent: "Low Sugar" | Model: Gemini (gemini-2.0-flash-exp)`)
}
