package evalcmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/lehigh-university-libraries/shelfsense/internal/eval/dataset"
	"github.com/lehigh-university-libraries/shelfsense/internal/eval/metrics"
	"github.com/lehigh-university-libraries/shelfsense/internal/lookup"
	"github.com/lehigh-university-libraries/shelfsense/internal/models"
)

func executeInspect(ctx context.Context, out io.Writer, datasetPath string, limit int) error {
	rows, err := dataset.NewLoader(datasetPath).LoadSample(limit)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	fmt.Fprintf(out, "Loaded %d rows from %s\n", len(rows), datasetPath)
	fmt.Fprintln(out, strings.Repeat("=", 80))

	labeled := 0
	invalid := 0
	verdicts := map[string]int{}
	intents := map[string]int{}

	for i, row := range rows {
		if ctx.Err() != nil {
			fmt.Fprintln(out, "\nInspection interrupted.")
			return nil
		}

		var problems []string
		if err := lookup.ValidateBarcode(row.Barcode); err != nil {
			problems = append(problems, "invalid barcode")
		}
		if v, ok := row.Expected(); ok {
			labeled++
			verdicts[string(v)]++
		} else if row.ExpectedVerdict != "" {
			problems = append(problems, fmt.Sprintf("unknown verdict %q", row.ExpectedVerdict))
		}
		intent, err := row.IntentOr(models.IntentGeneral)
		if err != nil {
			problems = append(problems, fmt.Sprintf("unknown intent %q", row.Intent))
		} else {
			intents[string(intent)]++
		}
		if len(problems) > 0 {
			invalid++
			fmt.Fprintf(out, "ROW %d %s: %s\n", i+1, row.Barcode, strings.Join(problems, ", "))
		}
	}

	fmt.Fprintln(out, strings.Repeat("-", 80))
	fmt.Fprintf(out, "Labeled:  %d\n", labeled)
	fmt.Fprintf(out, "Invalid:  %d\n", invalid)
	fmt.Fprintln(out, "Expected verdicts:")
	for _, k := range metrics.SortedKeys(verdicts) {
		fmt.Fprintf(out, "  %s: %d\n", k, verdicts[k])
	}
	fmt.Fprintln(out, "Intents:")
	for _, k := range metrics.SortedKeys(intents) {
		fmt.Fprintf(out, "  %s: %d\n", k, intents[k])
	}
	return nil
}
