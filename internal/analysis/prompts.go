package analysis

import (
	"fmt"
	"strings"

	"github.com/lehigh-university-libraries/shelfsense/internal/models"
)

const analysisSchema = `{
  "verdict": "HEALTHY" | "MODERATE" | "UNHEALTHY" | "AVOID",
  "verdict_short": "Short summary (5 words max)",
  "score": 0-100,
  "explanation": "Detailed explanation (2 sentences)",
  "tradeoffs": { "pros": ["pro1", "pro2"], "cons": ["con1", "con2"] },
  "uncertainty": { "score": 10-90, "reason": "Why uncertain?" },
  "swap_suggestion": { "product_name": "Better Alternative", "reason_why": "Why better?" },
  "sources_cited": ["Generic Knowledge"],
  "followUpQuestions": ["question1", "question2"]
}`

// BuildAnalysisPrompt renders the health analysis prompt for one product.
// When session holds an earlier analysis the model is asked to compare.
func BuildAnalysisPrompt(productName, ingredients string, intent models.Intent, session *models.SessionContext) string {
	if productName == "" {
		productName = "Unknown"
	}
	if ingredients == "" {
		ingredients = "Not found"
	}
	if intent == "" {
		intent = models.IntentGeneral
	}

	var sb strings.Builder
	sb.WriteString("You are ShelfSense, an expert health analyzer.\n")
	fmt.Fprintf(&sb, "User Intent: %q.\n", string(intent))
	fmt.Fprintf(&sb, "Context: Product=%q, Ingredients=%q.\n", productName, ingredients)
	if line := comparisonLine(session); line != "" {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	sb.WriteString("\nAnalyze health impact for this intent.\n")
	sb.WriteString("CRITICAL: You MUST return a valid JSON object.\n")
	sb.WriteString("STRICT JSON STRUCTURE:\n")
	sb.WriteString(analysisSchema)
	sb.WriteString("\nDO NOT RETURN MARKDOWN. DO NOT USE ```json. JUST RETURN RAW JSON.")
	return sb.String()
}

func comparisonLine(session *models.SessionContext) string {
	if session == nil || session.LastAnalysis == nil {
		return ""
	}
	prev := session.LastAnalysis
	name := session.LastProduct
	if name == "" {
		name = "the previous product"
	}
	return fmt.Sprintf("Previously scanned: %q rated %s (score %.0f). Briefly say whether this product is a better or worse choice.",
		name, prev.Verdict, prev.Score)
}

// BuildLabDataPrompt renders the prompt for products with database nutrition data
func BuildLabDataPrompt(summary string, intent models.Intent) string {
	if intent == "" {
		intent = models.IntentGeneral
	}
	return fmt.Sprintf(`You are ShelfSense. User Goal: %q.
Precise lab data provided:
%s
Analyze thoroughly. Uncertainty MUST be 0.
Use this JSON structure:
%s
RETURN JSON ONLY.`, string(intent), summary, analysisSchema)
}

const identifyPrompt = `Identify the Brand and Product Name from this image.
Return strictly in this format: "Brand - Product Name".
If unsure or generic, return "Unknown".`

func buildVerifyPrompt(productName string) string {
	return fmt.Sprintf("Return the official ingredients list for %q. Plain text only.", productName)
}

func formatHistory(history []models.ChatMessage) string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, m.Role+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

func buildProductChatPrompt(productName, ingredients string, history []models.ChatMessage, question string) string {
	context := fmt.Sprintf("Product: %q. Ingredients: %q. Answer accurately and concisely (<50 words).", productName, ingredients)
	return fmt.Sprintf("%s\n\nHistory:\n%s\n\nUser: %s", context, formatHistory(history), question)
}

func buildPersonaPrompt(query string, history []models.ChatMessage) string {
	return fmt.Sprintf("History:\n%s\n\nUser: %s", formatHistory(history), query)
}
