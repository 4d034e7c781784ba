package evalcmd

import (
	"fmt"
	"os"

	"github.com/lehigh-university-libraries/shelfsense/internal/eval/dataset"
	"github.com/lehigh-university-libraries/shelfsense/internal/models"
	"github.com/spf13/cobra"
)

// BackendFunc builds the lookup chain and analyzer from the loaded
// configuration and returns the configured run defaults
type BackendFunc func(cmd *cobra.Command) (Backend, RunOptions, error)

// NewRunCmd creates the run command
func NewRunCmd(setup BackendFunc) *cobra.Command {
	var opts RunOptions
	var intent string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Analyze a dataset of barcodes and save a YAML report",
		Long: `Looks up every barcode in a parquet or jsonl dataset, analyzes the
database ingredients for the row's intent and compares the verdict with the
expected_verdict label when the row has one.

Rows look like {"barcode": "737628064502", "expected_verdict": "HEALTHY", "intent": "Vegan"}.
The dataset may also be an http(s) URL; downloads are cached.`,
		Example: `  # Evaluate the first 20 rows
  shelfsense eval run --dataset ./products.jsonl --sample 20

  # Evaluate everything for a single intent, 8 rows at a time
  shelfsense eval run --dataset ./products.parquet --intent keto --concurrency 8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Dataset == "" {
				return fmt.Errorf("--dataset is required")
			}
			if _, err := os.Stat(opts.Dataset); err != nil && !dataset.IsRemote(opts.Dataset) {
				return fmt.Errorf("dataset file not found: %s", opts.Dataset)
			}

			backend, defaults, err := setup(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("concurrency") {
				opts.Concurrency = defaults.Concurrency
			}
			if !cmd.Flags().Changed("output") {
				opts.OutputDir = defaults.OutputDir
			}
			opts.Intent = defaults.Intent
			if intent != "" {
				if opts.Intent, err = models.ParseIntent(intent); err != nil {
					return err
				}
			}

			_, err = executeRun(cmd.Context(), cmd.OutOrStdout(), backend, opts)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.Dataset, "dataset", "", "Path or URL of a parquet or jsonl dataset (required)")
	cmd.Flags().IntVar(&opts.Sample, "sample", 0, "Number of rows to evaluate (0 for all)")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 4, "Rows analyzed in parallel")
	cmd.Flags().StringVar(&intent, "intent", "", "Intent for rows without one (defaults to intent.default)")
	cmd.Flags().StringVar(&opts.OutputDir, "output", "evals", "Directory for the YAML report")
	cmd.Flags().BoolVar(&opts.VerifyMissing, "verify-missing", false, "Ask the model for ingredients the database lacks")
	cmd.Flags().StringVar(&opts.CacheDir, "cache-dir", "", "Where downloaded datasets are kept")
	cmd.Flags().BoolVar(&opts.Force, "force-download", false, "Download the dataset even when cached")
	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}

// NewInspectCmd creates the inspect command
func NewInspectCmd() *cobra.Command {
	var datasetPath string
	var limit int

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Check dataset rows before a run",
		Long: `Reads a parquet or jsonl dataset and reports rows with invalid barcodes,
unknown verdict labels or unknown intents, plus the label and intent mix.`,
		Example: `  shelfsense eval inspect --dataset ./products.jsonl --limit 0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeInspect(cmd.Context(), cmd.OutOrStdout(), datasetPath, limit)
		},
	}

	cmd.Flags().StringVar(&datasetPath, "dataset", "", "Path to parquet or jsonl dataset file (required)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Number of rows to inspect (0 for all)")
	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}

// NewReportCmd creates the report command
func NewReportCmd() *cobra.Command {
	var path string
	var format string
	var mismatches bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a saved evaluation report",
		Example: `  shelfsense eval report --results evals/2026-03-01_09-30-00.yaml
  shelfsense eval report --results evals/2026-03-01_09-30-00.yaml --format csv --mismatches`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeReport(cmd.OutOrStdout(), path, format, mismatches)
		},
	}

	cmd.Flags().StringVar(&path, "results", "", "YAML report written by eval run (required)")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json or csv")
	cmd.Flags().BoolVar(&mismatches, "mismatches", false, "Only show failures and disagreements")
	_ = cmd.MarkFlagRequired("results")

	return cmd
}
