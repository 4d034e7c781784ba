package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/lehigh-university-libraries/shelfsense/internal/analysis"
	"github.com/lehigh-university-libraries/shelfsense/internal/voice"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newChatCmd(root *rootOptions) *cobra.Command {
	var personaName string
	var speakDir string
	var wakeOnSpeech bool
	var silence time.Duration

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the Nivu or Nova voice assistant on the terminal",
		Long: `Runs a voice assistant with stdin lines as final speech transcripts and
replies written to stdout. With --speak-dir every reply is also synthesized
to an mp3 file with Edge TTS.

Nivu wakes with a greeting, stays awake while you keep talking and
understands "stop" and "scan". Nova buffers what you say until you go quiet,
then answers with suggestion chips.`,
		Example: `  shelfsense chat --persona nivu
  shelfsense chat --persona nova --silence 1s --speak-dir ./speech`,
		RunE: func(cmd *cobra.Command, args []string) error {
			persona, err := analysis.ParsePersona(personaName)
			if err != nil {
				return err
			}

			svc, err := newServices(root.cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			out := cmd.OutOrStdout()
			synth, err := synthesizer(out, persona, speakDir)
			if err != nil {
				return err
			}

			bus := evbus.New()
			if err := bus.Subscribe(voice.TopicUpdate, printUpdate(out)); err != nil {
				return fmt.Errorf("failed to subscribe to assistant updates: %w", err)
			}

			rec := voice.NewLineRecognizer(cmd.InOrStdin())
			g, ctx := errgroup.WithContext(cmd.Context())

			switch persona {
			case analysis.PersonaNova:
				nova := voice.NewNova(svc.analysis, rec, synth, voice.NovaOptions{
					Silence:      silence,
					WakeOnSpeech: wakeOnSpeech,
					Bus:          bus,
				})
				g.Go(func() error { return nova.Run(ctx) })
				if !wakeOnSpeech {
					nova.Wake()
				}
			default:
				nivu := voice.NewNivu(svc.analysis, rec, synth, voice.NivuOptions{
					WakeOnSpeech: wakeOnSpeech,
					Bus:          bus,
				})
				g.Go(func() error { return nivu.Run(ctx) })
				if !wakeOnSpeech {
					nivu.Wake()
				}
			}

			slog.Debug("Assistant started", "persona", persona, "speak_dir", speakDir)
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&personaName, "persona", string(analysis.PersonaNivu), "Assistant persona: nivu or nova")
	cmd.Flags().StringVar(&speakDir, "speak-dir", "", "Also synthesize replies to mp3 files in this directory")
	cmd.Flags().BoolVar(&wakeOnSpeech, "wake-on-speech", false, "Start asleep and wake on the first line")
	cmd.Flags().DurationVar(&silence, "silence", voice.DefaultNovaSilence, "Nova: pause after speech before answering")

	return cmd
}

func synthesizer(out io.Writer, persona analysis.Persona, speakDir string) (voice.Synthesizer, error) {
	name := strings.ToUpper(string(persona[:1])) + string(persona[1:])
	if persona == analysis.PersonaNova {
		name = "Nexus"
	}
	text := voice.NewWriterSynthesizer(out, name)
	if speakDir == "" {
		return text, nil
	}
	edge, err := voice.NewEdgeSynthesizer(voice.VoiceFor(persona), speakDir)
	if err != nil {
		return nil, err
	}
	return voice.Multi{text, edge}, nil
}

// printUpdate shows suggestion chips and navigation requests under a reply
func printUpdate(out io.Writer) func(voice.Update) {
	return func(u voice.Update) {
		if len(u.Suggestions) > 0 {
			fmt.Fprintf(out, "  [%s]\n", strings.Join(u.Suggestions, "] ["))
		}
		if u.Navigate != "" {
			fmt.Fprintf(out, "  -> %s\n", u.Navigate)
		}
		slog.Debug("Assistant update", "state", u.State, "heard", u.Heard, "sentiment", u.Sentiment)
	}
}
