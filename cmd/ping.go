package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/lehigh-university-libraries/shelfsense/internal/orchestrator"
	"github.com/spf13/cobra"
)

func newPingCmd(root *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check every configured provider model",
		Long: `Sends a short prompt to every (provider, model) candidate in the order the
orchestrator tries them and reports whether each one answered, hit a quota,
timed out or failed.`,
		Example: `  shelfsense ping
  GEMINI_API_KEY= shelfsense ping --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newServices(root.cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			results := svc.llm.Ping(cmd.Context())
			if asJSON {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(results)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CANDIDATE\tRESULT\tLATENCY\tERROR")
			ok := 0
			for _, r := range results {
				if r.Kind == orchestrator.KindSuccess {
					ok++
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Label, r.Kind, r.Latency.Round(time.Millisecond), truncateError(r.Error, 80))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d candidates available\n", ok, len(results))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")

	return cmd
}

func truncateError(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
