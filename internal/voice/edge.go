package voice

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/shelfsense/internal/analysis"
	"github.com/wujunwei928/edge-tts-go/edge_tts"
)

// VoiceFor returns the neural voice matching a persona
func VoiceFor(p analysis.Persona) string {
	if p == analysis.PersonaNova {
		return "en-US-GuyNeural"
	}
	return "en-IN-NeerjaNeural"
}

// EdgeSynthesizer renders speech to mp3 files in dir using Edge TTS.
// Playback is left to whatever watches the directory.
type EdgeSynthesizer struct {
	voice string
	dir   string

	mu    sync.Mutex
	count int
}

func NewEdgeSynthesizer(voice, dir string) (*EdgeSynthesizer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create speech dir: %w", err)
	}
	return &EdgeSynthesizer{voice: voice, dir: dir}, nil
}

func (s *EdgeSynthesizer) Speak(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	communicate, err := edge_tts.NewCommunicate(text, edge_tts.SetVoice(s.voice))
	if err != nil {
		return fmt.Errorf("failed to create edge tts client: %w", err)
	}

	start := time.Now()
	audio, err := communicate.Stream()
	if err != nil {
		return fmt.Errorf("edge tts synthesis failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.count++
	name := filepath.Join(s.dir, fmt.Sprintf("speech-%s-%04d.mp3", time.Now().Format("20060102-150405"), s.count))
	s.mu.Unlock()

	if err := os.WriteFile(name, audio, 0o644); err != nil {
		return fmt.Errorf("failed to write speech file: %w", err)
	}
	slog.Debug("Speech synthesized", "voice", s.voice, "file", name, "bytes", len(audio), "duration", time.Since(start))
	return nil
}
