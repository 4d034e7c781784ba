package results

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lehigh-university-libraries/shelfsense/internal/eval/metrics"
	"gopkg.in/yaml.v3"
)

// TimestampFormat names report files
const TimestampFormat = "2006-01-02_15-04-05"

// EvalConfig is the configuration section of the eval YAML
type EvalConfig struct {
	DatasetPath string   `yaml:"datasetpath"`
	SampleSize  int      `yaml:"samplesize"`
	Concurrency int      `yaml:"concurrency"`
	Intent      string   `yaml:"intent"`
	Candidates  []string `yaml:"candidates,omitempty"`
	Timestamp   string   `yaml:"timestamp"`
}

// EvalSummary is the aggregate section of the eval YAML
type EvalSummary struct {
	Total             int            `yaml:"total"`
	Succeeded         int            `yaml:"succeeded"`
	Failed            int            `yaml:"failed"`
	NotFound          int            `yaml:"notfound"`
	Verdicts          map[string]int `yaml:"verdicts"`
	Labeled           int            `yaml:"labeled"`
	Agreement         float64        `yaml:"agreement"`
	PolarityAgreement float64        `yaml:"polarityagreement"`
	AverageScore      float64        `yaml:"averagescore"`
	Providers         map[string]int `yaml:"providers"`
}

// EvalResult is a single row of the eval YAML
type EvalResult struct {
	Identifier string  `yaml:"identifier"`
	Product    string  `yaml:"product,omitempty"`
	Source     string  `yaml:"source,omitempty"`
	Intent     string  `yaml:"intent"`
	Expected   string  `yaml:"expected,omitempty"`
	Verdict    string  `yaml:"verdict,omitempty"`
	Score      int     `yaml:"score"`
	Agrees     bool    `yaml:"agrees"`
	Provider   string  `yaml:"provider,omitempty"`
	TextOnly   bool    `yaml:"textonly"`
	Seconds    float64 `yaml:"seconds"`
	Error      string  `yaml:"error,omitempty"`
}

// EvalSpec is the complete evaluation report
type EvalSpec struct {
	Config  EvalConfig   `yaml:"config"`
	Summary EvalSummary  `yaml:"summary"`
	Results []EvalResult `yaml:"results"`
}

// NewSpec converts an aggregate into its report form
func NewSpec(cfg EvalConfig, agg *metrics.AggregateResults) *EvalSpec {
	if cfg.Timestamp == "" {
		cfg.Timestamp = agg.EvaluationDate.Format(TimestampFormat)
	}

	spec := &EvalSpec{
		Config: cfg,
		Summary: EvalSummary{
			Total:             agg.TotalRecords,
			Succeeded:         agg.SuccessCount,
			Failed:            agg.FailureCount,
			NotFound:          agg.NotFound,
			Verdicts:          make(map[string]int, len(agg.Verdicts)),
			Labeled:           agg.Labeled,
			Agreement:         agg.Agreement,
			PolarityAgreement: agg.PolarityAgreement,
			AverageScore:      agg.AverageScore,
			Providers:         agg.Providers,
		},
		Results: make([]EvalResult, 0, len(agg.Results)),
	}
	for v, n := range agg.Verdicts {
		spec.Summary.Verdicts[string(v)] = n
	}

	for _, r := range agg.Results {
		spec.Results = append(spec.Results, EvalResult{
			Identifier: r.Barcode,
			Product:    r.Product,
			Source:     string(r.Source),
			Intent:     string(r.Intent),
			Expected:   string(r.Expected),
			Verdict:    string(r.Verdict),
			Score:      r.Score,
			Agrees:     r.Agrees(),
			Provider:   r.Provider,
			TextOnly:   r.TextOnly,
			Seconds:    r.ProcessingTime.Round(time.Millisecond).Seconds(),
			Error:      r.Error,
		})
	}
	return spec
}

// SaveToYAML writes the report to <dir>/<timestamp>.yaml and returns its path
func SaveToYAML(dir string, spec *EvalSpec) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", dir, err)
	}

	filename := filepath.Join(dir, spec.Config.Timestamp+".yaml")

	data, err := yaml.Marshal(spec)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write YAML file: %w", err)
	}
	return filename, nil
}

// LoadYAML reads a report written by SaveToYAML
func LoadYAML(path string) (*EvalSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	var spec EvalSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse results YAML: %w", err)
	}
	return &spec, nil
}
