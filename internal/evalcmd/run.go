package evalcmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/shelfsense/internal/analysis"
	"github.com/lehigh-university-libraries/shelfsense/internal/eval/dataset"
	"github.com/lehigh-university-libraries/shelfsense/internal/eval/metrics"
	"github.com/lehigh-university-libraries/shelfsense/internal/eval/results"
	"github.com/lehigh-university-libraries/shelfsense/internal/models"
	"github.com/lehigh-university-libraries/shelfsense/internal/scan"
	"golang.org/x/sync/errgroup"
)

// Analyzer is the part of the analysis service an evaluation needs
type Analyzer interface {
	AnalyzeImage(ctx context.Context, in analysis.AnalyzeInput) (*models.AnalysisResult, error)
	VerifyIngredients(ctx context.Context, productName string) (string, error)
}

// Backend is what a run analyzes rows with
type Backend struct {
	Lookup     scan.ProductLookup
	Analyzer   Analyzer
	Candidates []string
}

// Runner evaluates dataset rows with bounded concurrency
type Runner struct {
	Backend
	Concurrency int
	Intent      models.Intent
	// VerifyMissing asks the model for the ingredient list when the
	// database has none; otherwise such rows fail
	VerifyMissing bool
}

// Run evaluates every row. Results are returned in row order; per-row
// failures are recorded in the result, not returned.
func (r *Runner) Run(ctx context.Context, rows []dataset.Row) ([]metrics.EvaluationResult, error) {
	out := make([]metrics.EvaluationResult, len(rows))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.Concurrency, 1))

	for i, row := range rows {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			slog.Info("Processing item", "barcode", row.Barcode, "progress", fmt.Sprintf("%d/%d", i+1, len(rows)))
			out[i] = r.processRow(ctx, row)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, fmt.Errorf("evaluation interrupted: %w", err)
	}
	return out, nil
}

func (r *Runner) processRow(ctx context.Context, row dataset.Row) (result metrics.EvaluationResult) {
	start := time.Now()
	result.Barcode = row.Barcode
	if expected, ok := row.Expected(); ok {
		result.Expected = expected
	}
	defer func() { result.ProcessingTime = time.Since(start) }()

	intent, err := row.IntentOr(r.Intent)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Intent = intent

	product, err := r.Lookup.Lookup(ctx, row.Barcode)
	if err != nil {
		result.Error = fmt.Sprintf("lookup failed: %v", err)
		return result
	}
	if product == nil {
		result.Error = metrics.ErrNotFound
		return result
	}
	result.Product = product.DisplayName()
	result.Source = product.Source

	ingredients := strings.TrimSpace(product.IngredientsText)
	result.TextOnly = ingredients != ""
	if ingredients == "" {
		if !r.VerifyMissing {
			result.Error = "no ingredients in database"
			return result
		}
		ingredients, err = r.Analyzer.VerifyIngredients(ctx, result.Product)
		if err != nil {
			result.Error = fmt.Sprintf("failed to verify ingredients: %v", err)
			return result
		}
	}

	analyzed, err := r.Analyzer.AnalyzeImage(ctx, analysis.AnalyzeInput{
		ProductName: result.Product,
		Ingredients: ingredients,
		Intent:      intent,
	})
	if err != nil {
		result.Error = fmt.Sprintf("analysis failed: %v", err)
		return result
	}

	result.Verdict = analyzed.Verdict
	result.Score = int(analyzed.Score)
	result.Provider = analyzed.ModelUsed
	return result
}

// RunOptions are the flags of `eval run`
type RunOptions struct {
	Dataset       string
	Sample        int
	Concurrency   int
	Intent        models.Intent
	OutputDir     string
	VerifyMissing bool
	CacheDir      string
	Force         bool
}

func executeRun(ctx context.Context, out io.Writer, backend Backend, opts RunOptions) (string, error) {
	slog.Info("Starting evaluation run", "dataset", opts.Dataset, "concurrency", opts.Concurrency, "intent", opts.Intent)

	path, err := dataset.NewDownloader(dataset.DownloadConfig{CacheDir: opts.CacheDir, ForceDownload: opts.Force}).Resolve(ctx, opts.Dataset)
	if err != nil {
		return "", err
	}

	rows, err := dataset.NewLoader(path).LoadSample(opts.Sample)
	if err != nil {
		return "", fmt.Errorf("failed to load dataset: %w", err)
	}
	slog.Info("Dataset loaded", "rows", len(rows))

	runner := &Runner{
		Backend:       backend,
		Concurrency:   opts.Concurrency,
		Intent:        opts.Intent,
		VerifyMissing: opts.VerifyMissing,
	}
	evals, err := runner.Run(ctx, rows)
	if err != nil {
		return "", err
	}

	agg := metrics.AggregateEvaluationResults(evals)
	agg.PrintSummary(out)

	spec := results.NewSpec(results.EvalConfig{
		DatasetPath: opts.Dataset,
		SampleSize:  len(rows),
		Concurrency: runner.Concurrency,
		Intent:      string(opts.Intent),
		Candidates:  backend.Candidates,
	}, agg)
	file, err := results.SaveToYAML(opts.OutputDir, spec)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(out, "\nEvaluation results saved to: %s\n", file)
	return file, nil
}
