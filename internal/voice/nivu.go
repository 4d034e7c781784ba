package voice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/lehigh-university-libraries/shelfsense/internal/analysis"
	"github.com/lehigh-university-libraries/shelfsense/internal/scan"
)

const (
	DefaultNivuAwake    = 8 * time.Second
	DefaultNivuDebounce = 1500 * time.Millisecond
	DefaultNivuMinInput = 2
)

const (
	nivuGreeting  = "Hey there, I am Nivu, your personal assistant."
	nivuListening = "I'm listening."
	nivuSleep     = "Going to sleep."
	nivuNoConnect = "I couldn't connect."
)

// NivuOptions tunes the push-to-wake assistant. Zero values take the defaults.
type NivuOptions struct {
	// Awake is how long the assistant stays awake without speech
	Awake time.Duration
	// Debounce is the pause after the last transcript before acting on it
	Debounce time.Duration
	// MinInput is the length a command must exceed to be processed
	MinInput     int
	WakeOnSpeech bool
	Bus          evbus.Bus
}

// Nivu is the short-window assistant. It is woken explicitly, stays awake
// while the user keeps talking and understands "stop" and "scan" locally.
type Nivu struct {
	loop
	opts      NivuOptions
	wake      chan struct{}
	sleepReq  chan struct{}
	greeted   bool
	pending   string
	awake     timer
	debouncer timer
}

func NewNivu(chat Chatter, rec Recognizer, synth Synthesizer, opts NivuOptions) *Nivu {
	if opts.Awake <= 0 {
		opts.Awake = DefaultNivuAwake
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultNivuDebounce
	}
	if opts.MinInput <= 0 {
		opts.MinInput = DefaultNivuMinInput
	}
	return &Nivu{
		loop:      newLoop(analysis.PersonaNivu, chat, rec, synth, opts.Bus),
		opts:      opts,
		wake:      make(chan struct{}),
		sleepReq:  make(chan struct{}),
		awake:     timer{d: opts.Awake},
		debouncer: timer{d: opts.Debounce},
	}
}

// Wake greets the user and starts the awake window. Blocks until Run accepts it.
func (n *Nivu) Wake() {
	send(&n.loop, n.wake, struct{}{})
}

// Sleep says goodbye and stops listening
func (n *Nivu) Sleep() {
	send(&n.loop, n.sleepReq, struct{}{})
}

// Run drives the assistant until ctx is canceled, or until the recognizer
// input ends and pending work has finished. Run may be called once.
func (n *Nivu) Run(ctx context.Context) error {
	ctx, transcripts, stop, err := n.start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start recognizer: %w", err)
	}
	defer stop()
	defer n.awake.stop()
	defer n.debouncer.stop()

	for {
		if transcripts == nil && n.idle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-n.wake:
			if n.State() == StateSleeping {
				n.greet(ctx)
			}
		case <-n.sleepReq:
			if n.State() != StateSleeping {
				n.sleep(ctx)
			}
		case t, ok := <-transcripts:
			if !ok {
				transcripts = nil
				continue
			}
			n.hear(t)
		case <-n.debouncer.C():
			n.debouncer.fired()
			text := strings.TrimSpace(n.pending)
			n.pending = ""
			n.handle(ctx, text)
		case <-n.awake.C():
			n.awake.fired()
			if n.State() == StateListening {
				n.sleep(ctx)
			}
		case res := <-n.chatDone:
			if n.State() != StateProcessing {
				continue
			}
			if res.err != nil {
				slog.Warn("Assistant chat failed", "persona", n.persona, "err", res.err)
				n.say(ctx, nivuNoConnect)
				continue
			}
			n.say(ctx, strings.TrimSpace(res.reply))
		case id := <-n.speechDone:
			if n.finishSpeech(id) && n.State() == StateSpeaking {
				n.listen()
			}
		}
	}
}

func (n *Nivu) idle() bool {
	return !n.speaking() && !n.debouncer.active() && n.State() != StateProcessing
}

func (n *Nivu) greet(ctx context.Context) {
	text := nivuListening
	if !n.greeted {
		text = nivuGreeting
		n.greeted = true
	}
	n.say(ctx, text)
}

// say speaks text with the awake window paused until playback ends
func (n *Nivu) say(ctx context.Context, text string) {
	n.awake.stop()
	n.setState(StateSpeaking)
	n.publish(Update{Reply: text})
	n.speak(ctx, text)
}

func (n *Nivu) listen() {
	n.setState(StateListening)
	n.awake.reset()
	n.publish(Update{})
}

func (n *Nivu) sleep(ctx context.Context) {
	n.stopSpeech()
	n.awake.stop()
	n.debouncer.stop()
	n.pending = ""
	n.setState(StateSleeping)
	n.publish(Update{Reply: nivuSleep})
	n.speak(ctx, nivuSleep)
}

func (n *Nivu) hear(t Transcript) {
	text := strings.TrimSpace(t.Text)
	switch n.State() {
	case StateSpeaking:
		if t.Final && isStop(text) {
			slog.Debug("Speech interrupted", "persona", n.persona)
			n.stopSpeech()
			n.listen()
		}
		return
	case StateSleeping:
		if !n.opts.WakeOnSpeech || !t.Final {
			return
		}
		n.greeted = true
		n.listen()
	}
	if text == "" {
		return
	}
	n.awake.reset()
	n.pending = text
	n.debouncer.reset()
	n.publish(Update{Heard: text})
}

func (n *Nivu) handle(ctx context.Context, text string) {
	if n.State() != StateListening || len(text) <= n.opts.MinInput {
		return
	}
	lower := strings.ToLower(text)
	switch {
	case isStop(lower):
		n.stopSpeech()
		return
	case strings.Contains(lower, "scan"):
		n.publish(Update{Heard: text, Navigate: scan.StateScanBarcode})
		return
	}
	n.awake.stop()
	n.setState(StateProcessing)
	n.publish(Update{Heard: text})
	n.ask(ctx, text, nil)
}

func isStop(text string) bool {
	return strings.Contains(strings.ToLower(text), "stop")
}
