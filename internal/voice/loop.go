package voice

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/lehigh-university-libraries/shelfsense/internal/analysis"
	"github.com/lehigh-university-libraries/shelfsense/internal/models"
)

// timer is a restartable one-shot owned by a single loop goroutine.
// C returns nil while stopped so a select case on it never fires.
type timer struct {
	d time.Duration
	t *time.Timer
}

func (t *timer) reset() {
	t.stop()
	t.t = time.NewTimer(t.d)
}

func (t *timer) stop() {
	if t.t != nil {
		t.t.Stop()
		t.t = nil
	}
}

// fired marks the timer as consumed after its channel delivered
func (t *timer) fired() {
	t.t = nil
}

func (t *timer) active() bool {
	return t.t != nil
}

func (t *timer) C() <-chan time.Time {
	if t.t == nil {
		return nil
	}
	return t.t.C
}

type chatResult struct {
	query string
	reply string
	err   error
}

// loop holds the collaborators and the async plumbing shared by both
// personas. Everything except state is owned by the Run goroutine.
type loop struct {
	persona analysis.Persona
	chat    Chatter
	rec     Recognizer
	synth   Synthesizer
	bus     evbus.Bus

	mu    sync.Mutex
	state State

	wg           sync.WaitGroup
	done         chan struct{}
	speechID     int
	cancelSpeech context.CancelFunc
	speechDone   chan int
	chatDone     chan chatResult
}

func newLoop(persona analysis.Persona, chat Chatter, rec Recognizer, synth Synthesizer, bus evbus.Bus) loop {
	if bus == nil {
		bus = evbus.New()
	}
	return loop{
		persona:    persona,
		chat:       chat,
		rec:        rec,
		synth:      synth,
		bus:        bus,
		state:      StateSleeping,
		done:       make(chan struct{}),
		speechDone: make(chan int),
		chatDone:   make(chan chatResult),
	}
}

// State returns the current conversational state
func (l *loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *loop) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

func (l *loop) publish(u Update) {
	u.Persona = l.persona
	u.State = l.State()
	l.bus.Publish(TopicUpdate, u)
}

// send hands v to the Run goroutine, giving up once the loop has exited
func send[T any](l *loop, ch chan T, v T) {
	select {
	case ch <- v:
	case <-l.done:
	}
}

func (l *loop) speaking() bool {
	return l.cancelSpeech != nil
}

// speak starts playback in the background, interrupting any current speech.
// Completion is reported on speechDone with the speech id.
func (l *loop) speak(ctx context.Context, text string) {
	l.stopSpeech()
	l.speechID++
	id := l.speechID
	sctx, cancel := context.WithCancel(ctx)
	l.cancelSpeech = cancel

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := l.synth.Speak(sctx, text); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("Speech failed", "persona", l.persona, "err", err)
		}
		select {
		case l.speechDone <- id:
		case <-ctx.Done():
		}
	}()
}

func (l *loop) stopSpeech() {
	if l.cancelSpeech != nil {
		l.cancelSpeech()
		l.cancelSpeech = nil
	}
}

// finishSpeech reports whether id is the speech currently playing,
// clearing it if so. Interrupted speeches report stale ids.
func (l *loop) finishSpeech(id int) bool {
	if id != l.speechID || l.cancelSpeech == nil {
		return false
	}
	l.cancelSpeech()
	l.cancelSpeech = nil
	return true
}

func (l *loop) ask(ctx context.Context, query string, history []models.ChatMessage) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		reply, err := l.chat.Chat(ctx, l.persona, query, history)
		select {
		case l.chatDone <- chatResult{query: query, reply: reply, err: err}:
		case <-ctx.Done():
		}
	}()
}

// start begins recognition and returns the loop context. The returned stop
// function cancels it, waits for background work and marks the loop done.
func (l *loop) start(ctx context.Context) (context.Context, <-chan Transcript, func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	transcripts, err := l.rec.Start(ctx)
	if err != nil {
		cancel()
		close(l.done)
		return nil, nil, nil, err
	}
	slog.Debug("Assistant started", "persona", l.persona)
	stop := func() {
		l.stopSpeech()
		cancel()
		if err := l.rec.Stop(); err != nil {
			slog.Warn("Failed to stop recognizer", "err", err)
		}
		l.wg.Wait()
		close(l.done)
		slog.Debug("Assistant stopped", "persona", l.persona)
	}
	return ctx, transcripts, stop, nil
}
