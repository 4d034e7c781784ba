package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/lehigh-university-libraries/shelfsense/internal/analysis"
	"github.com/lehigh-university-libraries/shelfsense/internal/config"
	"github.com/lehigh-university-libraries/shelfsense/internal/imaging"
	"github.com/lehigh-university-libraries/shelfsense/internal/voice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCrop(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    imaging.Rect
		wantErr bool
	}{
		{name: "empty", input: "", want: imaging.Rect{}},
		{name: "valid", input: "10,25,80,50", want: imaging.DefaultCrop},
		{name: "spaces", input: " 0, 0.5 ,100,  20", want: imaging.Rect{X: 0, Y: 0.5, Width: 100, Height: 20}},
		{name: "too few", input: "10,25,80", wantErr: true},
		{name: "not a number", input: "10,a,80,50", wantErr: true},
		{name: "over 100", input: "10,25,180,50", wantErr: true},
		{name: "zero area", input: "10,25,0,50", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCrop(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, imaging.ErrInvalidRect)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTiersSkipMissingCredentials(t *testing.T) {
	p := config.ProvidersConfig{
		GroqKey:      "gsk-test",
		GroqModels:   []string{"llama-3.1-8b-instant"},
		OllamaURL:    "http://localhost:11434",
		OllamaModels: []string{"llava"},
	}

	got := tiers(p)
	require.Len(t, got, 2)
	assert.Equal(t, "Groq", got[0].Provider.Name())
	assert.Equal(t, []string{"llava"}, got[1].Models)

	assert.Empty(t, tiers(config.ProvidersConfig{}))
}

func TestNewServicesRequiresProvider(t *testing.T) {
	_, err := newServices(&config.Config{})
	assert.ErrorContains(t, err, "no AI provider configured")
}

func TestSynthesizerNames(t *testing.T) {
	var out bytes.Buffer
	synth, err := synthesizer(&out, analysis.PersonaNova, "")
	require.NoError(t, err)
	require.NoError(t, synth.Speak(t.Context(), "Hello."))
	assert.Equal(t, "Nexus: Hello.\n", out.String())

	out.Reset()
	synth, err = synthesizer(&out, analysis.PersonaNivu, filepath.Join(t.TempDir(), "speech"))
	require.NoError(t, err)
	assert.IsType(t, voice.Multi{}, synth)
}

func TestPrintUpdate(t *testing.T) {
	var out bytes.Buffer
	printUpdate(&out)(voice.Update{Reply: "Sure.", Suggestions: []string{"Compare", "Scan"}, Navigate: "SCAN_BARCODE"})
	assert.Equal(t, "  [Compare] [Scan]\n  -> SCAN_BARCODE\n", out.String())
}

func TestRootRunsInspect(t *testing.T) {
	data := filepath.Join(t.TempDir(), "rows.jsonl")
	require.NoError(t, os.WriteFile(data, []byte(`{"barcode":"737628064502","expected_verdict":"avoid"}`+"\n"), 0o644))

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"eval", "inspect", "--dataset", data})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Loaded 1 rows")
	assert.Contains(t, out.String(), "AVOID: 1")
}

func TestRootRejectsBadIntent(t *testing.T) {
	t.Setenv("SHELFSENSE_INTENT_DEFAULT", "paleo")

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"eval", "report", "--results", "missing.yaml"})
	err := root.Execute()
	assert.ErrorContains(t, err, "invalid intent.default")
}
