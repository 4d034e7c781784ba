package voice

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// LineRecognizer treats each non-blank line of r as a final transcript
type LineRecognizer struct {
	r      io.Reader
	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewLineRecognizer(r io.Reader) *LineRecognizer {
	return &LineRecognizer{r: r}
}

func (l *LineRecognizer) Start(ctx context.Context) (<-chan Transcript, error) {
	ctx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	l.cancel = cancel
	l.mu.Unlock()

	out := make(chan Transcript)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(l.r)
		for scanner.Scan() {
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			select {
			case out <- Transcript{Text: text, Final: true}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (l *LineRecognizer) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
	}
	return nil
}

// WriterSynthesizer "speaks" by writing "Name: text" lines to w
type WriterSynthesizer struct {
	name string
	mu   sync.Mutex
	w    io.Writer
}

func NewWriterSynthesizer(w io.Writer, name string) *WriterSynthesizer {
	return &WriterSynthesizer{name: name, w: w}
}

func (s *WriterSynthesizer) Speak(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "%s: %s\n", s.name, text); err != nil {
		return fmt.Errorf("failed to write speech: %w", err)
	}
	return nil
}

// Multi speaks through every synthesizer in order, stopping at the first error
type Multi []Synthesizer

func (m Multi) Speak(ctx context.Context, text string) error {
	for _, s := range m {
		if err := s.Speak(ctx, text); err != nil {
			return err
		}
	}
	return nil
}
