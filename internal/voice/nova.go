package voice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/lehigh-university-libraries/shelfsense/internal/analysis"
	"github.com/lehigh-university-libraries/shelfsense/internal/models"
)

// NovaOptions tunes the Nexus assistant. Zero values take the defaults.
type NovaOptions struct {
	// Silence after buffered speech before the command is processed
	Silence time.Duration
	// Inactivity in LISTENING before going to sleep
	Inactivity time.Duration
	// HistoryLimit is the number of chat messages kept
	HistoryLimit int
	// WakeOnSpeech wakes a sleeping assistant on a final transcript
	// instead of ignoring it
	WakeOnSpeech bool
	Bus          evbus.Bus
}

const (
	DefaultNovaSilence    = 5 * time.Second
	DefaultNovaInactivity = 15 * time.Second
	DefaultHistoryLimit   = 10
)

// Nova is the continuous-listening assistant speaking as "Nexus". Speech is
// buffered until the user has been silent for a while, then sent with the
// recent chat history. Replies carry suggestion chips and a sentiment.
type Nova struct {
	loop
	opts    NovaOptions
	wake    chan struct{}
	trigger chan string

	buffer     string
	history    []models.ChatMessage
	silence    timer
	inactivity timer
}

func NewNova(chat Chatter, rec Recognizer, synth Synthesizer, opts NovaOptions) *Nova {
	if opts.Silence <= 0 {
		opts.Silence = DefaultNovaSilence
	}
	if opts.Inactivity <= 0 {
		opts.Inactivity = DefaultNovaInactivity
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	return &Nova{
		loop:       newLoop(analysis.PersonaNova, chat, rec, synth, opts.Bus),
		opts:       opts,
		wake:       make(chan struct{}),
		trigger:    make(chan string),
		silence:    timer{d: opts.Silence},
		inactivity: timer{d: opts.Inactivity},
	}
}

// Wake moves a sleeping assistant to LISTENING. It blocks until Run accepts it.
func (n *Nova) Wake() {
	send(&n.loop, n.wake, struct{}{})
}

// Trigger processes command as if it had been spoken, e.g. a tapped
// suggestion chip. Ignored while processing or speaking.
func (n *Nova) Trigger(command string) {
	send(&n.loop, n.trigger, command)
}

// History returns a copy of the retained conversation
func (n *Nova) History() []models.ChatMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.ChatMessage(nil), n.history...)
}

// Run drives the assistant until ctx is canceled, or until the recognizer
// input ends and pending work has finished. Run may be called once.
func (n *Nova) Run(ctx context.Context) error {
	ctx, transcripts, stop, err := n.start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start recognizer: %w", err)
	}
	defer stop()
	defer n.silence.stop()
	defer n.inactivity.stop()

	for {
		if transcripts == nil && n.idle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-n.wake:
			if n.State() == StateSleeping {
				n.listen()
			}
		case cmd := <-n.trigger:
			if s := n.State(); s == StateProcessing || s == StateSpeaking {
				slog.Debug("Ignoring trigger while busy", "state", s)
				continue
			}
			n.silence.stop()
			n.process(ctx, strings.TrimSpace(cmd))
		case t, ok := <-transcripts:
			if !ok {
				transcripts = nil
				continue
			}
			n.hear(t)
		case <-n.silence.C():
			n.silence.fired()
			cmd := strings.TrimSpace(n.buffer)
			n.buffer = ""
			if cmd != "" && n.State() == StateListening {
				n.process(ctx, cmd)
			}
		case <-n.inactivity.C():
			n.inactivity.fired()
			if n.State() == StateListening {
				slog.Debug("No response, sleeping", "persona", n.persona)
				n.sleep()
			}
		case res := <-n.chatDone:
			n.reply(ctx, res)
		case id := <-n.speechDone:
			if n.finishSpeech(id) {
				n.listen()
			}
		}
	}
}

func (n *Nova) idle() bool {
	s := n.State()
	return !n.speaking() && !n.silence.active() && s != StateProcessing && s != StateSpeaking
}

func (n *Nova) listen() {
	n.setState(StateListening)
	n.buffer = ""
	n.inactivity.reset()
	n.publish(Update{})
}

func (n *Nova) sleep() {
	n.setState(StateSleeping)
	n.buffer = ""
	n.silence.stop()
	n.inactivity.stop()
	n.publish(Update{})
}

func (n *Nova) hear(t Transcript) {
	if n.State() == StateSleeping && n.opts.WakeOnSpeech && t.Final {
		n.listen()
	}
	if n.State() != StateListening {
		return
	}
	n.inactivity.reset()

	interim := ""
	if t.Final {
		n.buffer += " " + t.Text
	} else {
		interim = t.Text
	}
	live := strings.TrimSpace(n.buffer + " " + interim)
	if live == "" {
		return
	}
	n.silence.reset()
	n.publish(Update{Heard: live})
}

func (n *Nova) process(ctx context.Context, cmd string) {
	if cmd == "" {
		return
	}
	n.inactivity.stop()
	n.setState(StateProcessing)
	n.publish(Update{Heard: cmd})
	n.ask(ctx, cmd, n.History())
}

func (n *Nova) reply(ctx context.Context, res chatResult) {
	if n.State() != StateProcessing {
		return
	}
	if res.err != nil {
		slog.Warn("Assistant chat failed", "persona", n.persona, "err", res.err)
		n.listen()
		return
	}

	speech, chips := ParseReply(res.reply)
	n.mu.Lock()
	n.history = append(n.history,
		models.ChatMessage{Role: "user", Content: res.query},
		models.ChatMessage{Role: "assistant", Content: speech},
	)
	if over := len(n.history) - n.opts.HistoryLimit; over > 0 {
		n.history = append([]models.ChatMessage(nil), n.history[over:]...)
	}
	n.mu.Unlock()

	n.setState(StateSpeaking)
	n.publish(Update{Reply: speech, Suggestions: chips, Sentiment: DetectSentiment(speech)})
	n.speak(ctx, speech)
}
