package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/lehigh-university-libraries/shelfsense/internal/config"
	"github.com/spf13/cobra"
)

// rootOptions are the persistent flags and the configuration they resolve to
type rootOptions struct {
	configFile string
	verbose    bool

	cfg *config.Config
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "shelfsense",
		Short: "Grocery label scanner with AI health verdicts",
		Long: `ShelfSense scans a product barcode or label photo, finds the ingredients and
asks a chain of vision-capable LLMs (Gemini, OpenRouter, Groq, Ollama) for a
health verdict tailored to a dietary intent.

It serves the scanning API used by the web client, analyzes products from the
command line, runs the Nivu and Nova voice assistants on a terminal, and
evaluates verdict accuracy against labeled barcode datasets.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			v, err := config.New(opts.configFile)
			if err != nil {
				return err
			}
			if opts.cfg, err = config.Load(v); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Config file (default ./shelfsense.yaml or ~/.config/shelfsense/shelfsense.yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newScanCmd(opts))
	cmd.AddCommand(newAnalyzeCmd(opts))
	cmd.AddCommand(newChatCmd(opts))
	cmd.AddCommand(newPingCmd(opts))
	cmd.AddCommand(newEvalCmd(opts))

	return cmd
}
