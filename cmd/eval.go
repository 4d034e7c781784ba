package cmd

import (
	"github.com/lehigh-university-libraries/shelfsense/internal/evalcmd"
	"github.com/spf13/cobra"
)

func newEvalCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Verdict accuracy evaluation tools",
		Long: `Evaluation tools for measuring how well the analysis agrees with labeled
verdicts.

Datasets are parquet or jsonl files of barcodes with optional expected
verdicts and intents. Runs are saved as YAML reports that can be printed
again as text, JSON or CSV.`,
	}

	setup := func(cmd *cobra.Command) (evalcmd.Backend, evalcmd.RunOptions, error) {
		svc, err := newServices(root.cfg)
		if err != nil {
			return evalcmd.Backend{}, evalcmd.RunOptions{}, err
		}
		// the cache store lives until the process exits
		return evalcmd.Backend{
				Lookup:     svc.lookup,
				Analyzer:   svc.analysis,
				Candidates: svc.candidateLabels(),
			}, evalcmd.RunOptions{
				Concurrency: root.cfg.Eval.Concurrency,
				OutputDir:   root.cfg.Eval.OutputDir,
				Intent:      root.cfg.Intent,
			}, nil
	}

	// Add eval subcommands
	cmd.AddCommand(evalcmd.NewRunCmd(setup))
	cmd.AddCommand(evalcmd.NewReportCmd())
	cmd.AddCommand(evalcmd.NewInspectCmd())

	return cmd
}
