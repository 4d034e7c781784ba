package voice

import (
	"context"
	"strings"

	"github.com/lehigh-university-libraries/shelfsense/internal/analysis"
	"github.com/lehigh-university-libraries/shelfsense/internal/models"
	"github.com/lehigh-university-libraries/shelfsense/internal/scan"
)

// State is the assistant's conversational state
type State string

const (
	StateSleeping   State = "SLEEPING"
	StateListening  State = "LISTENING"
	StateProcessing State = "PROCESSING"
	StateSpeaking   State = "SPEAKING"
)

// TopicUpdate is the EventBus topic assistant updates are published on
const TopicUpdate = "voice:update"

// Sentiment colors the assistant while it speaks a reply
type Sentiment string

const (
	SentimentNeutral  Sentiment = "neutral"
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentCaution  Sentiment = "caution"
)

// Transcript is one recognition result. Interim results are superseded by
// later ones; final results are committed text.
type Transcript struct {
	Text  string
	Final bool
}

// Recognizer produces transcripts until stopped or its input ends,
// at which point the channel is closed.
type Recognizer interface {
	Start(ctx context.Context) (<-chan Transcript, error)
	Stop() error
}

// Synthesizer speaks text, blocking until playback is done or ctx is canceled
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
}

// Chatter answers a user query in a persona's voice
type Chatter interface {
	Chat(ctx context.Context, persona analysis.Persona, query string, history []models.ChatMessage) (string, error)
}

// Update is published whenever the assistant changes state, hears
// something or replies.
type Update struct {
	Persona     analysis.Persona `json:"persona"`
	State       State            `json:"state"`
	Heard       string           `json:"heard,omitempty"`
	Reply       string           `json:"reply,omitempty"`
	Suggestions []string         `json:"suggestions,omitempty"`
	Sentiment   Sentiment        `json:"sentiment,omitempty"`
	Navigate    scan.State       `json:"navigate,omitempty"`
}

// ParseReply splits "speech | chip | chip" into the spoken part and the
// non-empty suggestion chips.
func ParseReply(reply string) (string, []string) {
	parts := strings.Split(reply, "|")
	speech := strings.TrimSpace(parts[0])
	var chips []string
	for _, p := range parts[1:] {
		if c := strings.TrimSpace(p); c != "" {
			chips = append(chips, c)
		}
	}
	return speech, chips
}

// DetectSentiment is a keyword match over the spoken reply. Negative
// keywords win over positive ones, so "unhealthy" never reads as "healthy".
func DetectSentiment(speech string) Sentiment {
	lower := strings.ToLower(speech)
	switch {
	case containsAny(lower, "avoid", "unhealthy", "bad", "high sugar"):
		return SentimentNegative
	case containsAny(lower, "healthy", "good", "great", "excellent"):
		return SentimentPositive
	case containsAny(lower, "moderate", "caution", "limit"):
		return SentimentCaution
	}
	return SentimentNeutral
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
