package evalcmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/shelfsense/internal/eval/metrics"
	"github.com/lehigh-university-libraries/shelfsense/internal/eval/results"
)

func executeReport(out io.Writer, path, format string, disagreementsOnly bool) error {
	spec, err := results.LoadYAML(path)
	if err != nil {
		return err
	}
	if disagreementsOnly {
		kept := spec.Results[:0]
		for _, r := range spec.Results {
			if r.Error != "" || (r.Expected != "" && !r.Agrees) {
				kept = append(kept, r)
			}
		}
		spec.Results = kept
	}

	switch format {
	case "text":
		return printTextReport(out, spec)
	case "json":
		return printJSONReport(out, spec)
	case "csv":
		return printCSVReport(out, spec)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printTextReport(out io.Writer, spec *results.EvalSpec) error {
	s := spec.Summary
	fmt.Fprintln(out, "========================================")
	fmt.Fprintln(out, "Product Verdict Evaluation Report")
	fmt.Fprintln(out, "========================================")
	fmt.Fprintf(out, "Dataset:     %s\n", spec.Config.DatasetPath)
	fmt.Fprintf(out, "Run:         %s\n", spec.Config.Timestamp)
	fmt.Fprintf(out, "Intent:      %s\n", spec.Config.Intent)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Total:       %d\n", s.Total)
	fmt.Fprintf(out, "Succeeded:   %d\n", s.Succeeded)
	fmt.Fprintf(out, "Failed:      %d (not found: %d)\n", s.Failed, s.NotFound)
	if s.Labeled > 0 {
		fmt.Fprintf(out, "Agreement:   %.2f%% of %d labeled (polarity %.2f%%)\n", s.Agreement*100, s.Labeled, s.PolarityAgreement*100)
	}
	fmt.Fprintf(out, "Avg Score:   %.1f\n", s.AverageScore)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Providers:")
	for _, p := range metrics.SortedKeys(s.Providers) {
		fmt.Fprintf(out, "  %s: %d\n", p, s.Providers[p])
	}

	fmt.Fprintln(out, "\nDetailed Results:")
	fmt.Fprintln(out, "========================================")
	for i, r := range spec.Results {
		fmt.Fprintf(out, "\n[%d] %s %s\n", i+1, r.Identifier, r.Product)
		if r.Error != "" {
			fmt.Fprintf(out, "  Error: %s\n", r.Error)
			continue
		}
		mark := ""
		if r.Expected != "" {
			mark = fmt.Sprintf(" (expected %s)", r.Expected)
			if !r.Agrees {
				mark += " MISMATCH"
			}
		}
		fmt.Fprintf(out, "  Verdict: %s, score %d%s\n", r.Verdict, r.Score, mark)
		fmt.Fprintf(out, "  Intent: %s | Model: %s\n", r.Intent, truncate(r.Provider, 60))
	}
	return nil
}

func printJSONReport(out io.Writer, spec *results.EvalSpec) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(spec)
}

func printCSVReport(out io.Writer, spec *results.EvalSpec) error {
	writer := csv.NewWriter(out)

	header := []string{"barcode", "product", "intent", "expected", "verdict", "score", "agrees", "provider", "seconds", "error"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, r := range spec.Results {
		row := []string{
			r.Identifier,
			r.Product,
			r.Intent,
			r.Expected,
			r.Verdict,
			strconv.Itoa(r.Score),
			strconv.FormatBool(r.Agrees),
			r.Provider,
			strconv.FormatFloat(r.Seconds, 'f', 3, 64),
			r.Error,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return strings.TrimSpace(s[:maxLen-3]) + "..."
}
