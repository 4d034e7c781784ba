package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/shelfsense/internal/models"
)

// EvaluationResult is the outcome for a single dataset row
type EvaluationResult struct {
	Barcode  string
	Product  string
	Source   models.ProductSource
	Intent   models.Intent
	Expected models.Verdict // empty when the row is unlabeled
	Verdict  models.Verdict
	Score    int
	Provider string
	// TextOnly is set when the verdict came from database ingredients
	TextOnly       bool
	ProcessingTime time.Duration
	Error          string
}

// Agrees reports whether a labeled row got its expected verdict
func (r *EvaluationResult) Agrees() bool {
	return r.Error == "" && r.Expected != "" && r.Verdict == r.Expected
}

// AggregateResults summarizes an evaluation run
type AggregateResults struct {
	TotalRecords int
	SuccessCount int
	FailureCount int
	// NotFound counts rows no lookup source knew
	NotFound int

	Verdicts  map[models.Verdict]int
	Providers map[string]int

	Labeled   int
	Agreed    int
	Agreement float64
	// PolarityAgreement counts a good/bad match as agreement even when the
	// exact verdict differs, e.g. UNHEALTHY for AVOID
	PolarityAgreement float64
	AverageScore      float64

	AverageProcessingTime time.Duration
	TotalProcessingTime   time.Duration

	Results        []EvaluationResult
	EvaluationDate time.Time
}

// ErrNotFound is the Error recorded for rows missing from every source
const ErrNotFound = "product not found"

func samePolarity(a, b models.Verdict) bool {
	return a.IsGood() == b.IsGood() && a.IsBad() == b.IsBad()
}

// AggregateEvaluationResults aggregates the per-row results
func AggregateEvaluationResults(results []EvaluationResult) *AggregateResults {
	agg := &AggregateResults{
		TotalRecords:   len(results),
		Verdicts:       make(map[models.Verdict]int),
		Providers:      make(map[string]int),
		Results:        results,
		EvaluationDate: time.Now(),
	}

	var successDuration time.Duration
	totalScore := 0
	polarity := 0

	for _, r := range results {
		agg.TotalProcessingTime += r.ProcessingTime

		if r.Error != "" {
			agg.FailureCount++
			if r.Error == ErrNotFound {
				agg.NotFound++
			}
			continue
		}

		agg.SuccessCount++
		successDuration += r.ProcessingTime
		totalScore += r.Score
		agg.Verdicts[r.Verdict]++
		if r.Provider != "" {
			agg.Providers[r.Provider]++
		}

		if r.Expected == "" {
			continue
		}
		agg.Labeled++
		if r.Agrees() {
			agg.Agreed++
		}
		if samePolarity(r.Verdict, r.Expected) {
			polarity++
		}
	}

	if agg.SuccessCount > 0 {
		agg.AverageScore = float64(totalScore) / float64(agg.SuccessCount)
		agg.AverageProcessingTime = successDuration / time.Duration(agg.SuccessCount)
	}
	if agg.Labeled > 0 {
		agg.Agreement = float64(agg.Agreed) / float64(agg.Labeled)
		agg.PolarityAgreement = float64(polarity) / float64(agg.Labeled)
	}
	return agg
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// PrintSummary writes a human-readable summary of the evaluation
func (a *AggregateResults) PrintSummary(w io.Writer) {
	rule := strings.Repeat("=", 70)
	dash := strings.Repeat("-", 70)

	fmt.Fprintln(w, "\n"+rule)
	fmt.Fprintln(w, "SHELFSENSE EVALUATION SUMMARY")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Evaluation Date: %s\n", a.EvaluationDate.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Total Records: %d\n", a.TotalRecords)
	fmt.Fprintf(w, "Successful: %d (%.1f%%)\n", a.SuccessCount, percent(a.SuccessCount, a.TotalRecords))
	fmt.Fprintf(w, "Failed: %d (%.1f%%), not found: %d\n", a.FailureCount, percent(a.FailureCount, a.TotalRecords), a.NotFound)
	fmt.Fprintf(w, "Average Processing Time: %s\n", a.AverageProcessingTime)
	fmt.Fprintf(w, "Average Score: %.1f\n", a.AverageScore)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "VERDICTS")
	fmt.Fprintln(w, dash)
	for _, v := range []models.Verdict{models.VerdictHealthy, models.VerdictModerate, models.VerdictUnhealthy, models.VerdictAvoid} {
		fmt.Fprintf(w, "  %-10s %d\n", v, a.Verdicts[v])
	}
	fmt.Fprintln(w)

	if a.Labeled > 0 {
		fmt.Fprintln(w, "AGREEMENT")
		fmt.Fprintln(w, dash)
		fmt.Fprintf(w, "Labeled rows: %d\n", a.Labeled)
		fmt.Fprintf(w, "Exact: %d (%.1f%%)\n", a.Agreed, a.Agreement*100)
		fmt.Fprintf(w, "Good/bad polarity: %.1f%%\n", a.PolarityAgreement*100)
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "PROVIDERS")
	fmt.Fprintln(w, dash)
	for _, p := range SortedKeys(a.Providers) {
		fmt.Fprintf(w, "  %s: %d\n", p, a.Providers[p])
	}
	fmt.Fprintln(w, rule)
}

// SortedKeys returns the histogram labels by descending count, then name
func SortedKeys(h map[string]int) []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if h[keys[i]] != h[keys[j]] {
			return h[keys[i]] > h[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}
