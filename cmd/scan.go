package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/shelfsense/internal/analysis"
	"github.com/lehigh-university-libraries/shelfsense/internal/images"
	"github.com/lehigh-university-libraries/shelfsense/internal/lookup"
	"github.com/lehigh-university-libraries/shelfsense/internal/models"
	"github.com/lehigh-university-libraries/shelfsense/internal/render"
	"github.com/spf13/cobra"
)

func newScanCmd(root *rootOptions) *cobra.Command {
	var intent string
	var lab bool
	var verify bool
	var photo bool
	var photoDir string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "scan <barcode>",
		Short: "Look up a barcode and print its verdict card",
		Long: `Looks the barcode up in OpenFoodFacts and UPCitemdb and analyzes the
database ingredients for the chosen intent.

With --lab the full OpenFoodFacts record (Nutri-Score, NOVA group, sugar, salt,
additives) is analyzed instead; such verdicts carry no uncertainty.

When the database has no ingredient list, --photo analyzes the product photo
the database links to, and --verify asks the model for the ingredients.`,
		Example: `  shelfsense scan 737628064502
  shelfsense scan 3017620422003 --intent "low sugar" --lab
  shelfsense scan 5449000000996 --verify --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			barcode := strings.TrimSpace(args[0])
			if err := lookup.ValidateBarcode(barcode); err != nil {
				return err
			}
			in, err := resolveIntent(root, intent)
			if err != nil {
				return err
			}

			svc, err := newServices(root.cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx := cmd.Context()
			var name string
			var result *models.AnalysisResult

			if lab {
				off := lookup.NewOpenFoodFacts(&http.Client{Timeout: 10 * time.Second}, "")
				product, err := off.FetchProduct(ctx, barcode)
				if err != nil {
					return fmt.Errorf("failed to fetch lab data: %w", err)
				}
				if product == nil {
					return fmt.Errorf("product %s not found in OpenFoodFacts", barcode)
				}
				name = strings.TrimSpace(product.Brands + " " + product.ProductName)
				if result, err = svc.analysis.AnalyzeProductData(ctx, product, in); err != nil {
					return fmt.Errorf("failed to analyze lab data: %w", err)
				}
			} else {
				product, err := svc.lookup.Lookup(ctx, barcode)
				if err != nil {
					return fmt.Errorf("failed to look up product: %w", err)
				}
				if product == nil {
					return fmt.Errorf("product %s not found, try: shelfsense analyze --image <photo>", barcode)
				}
				name = product.DisplayName()

				var label []byte
				ingredients := strings.TrimSpace(product.IngredientsText)
				switch {
				case ingredients != "":
				case photo:
					if label, err = images.NewFetcher().Fetch(ctx, product.ImageURL); err != nil {
						return fmt.Errorf("failed to fetch product photo: %w", err)
					}
					if photoDir != "" {
						path, err := images.Save(photoDir, barcode, label)
						if err != nil {
							return err
						}
						slog.Info("Product photo saved", "path", path)
					}
				case verify:
					if ingredients, err = svc.analysis.VerifyIngredients(ctx, name); err != nil {
						return fmt.Errorf("failed to verify ingredients: %w", err)
					}
				default:
					return fmt.Errorf("no ingredients for %s in %s, rerun with --photo or --verify", name, product.Source)
				}

				result, err = svc.analysis.AnalyzeImage(ctx, analysis.AnalyzeInput{
					Image:       label,
					ProductName: name,
					Ingredients: ingredients,
					Intent:      in,
				})
				if err != nil {
					return fmt.Errorf("failed to analyze product: %w", err)
				}
			}

			card, err := render.NewCard(name, result, in)
			if err != nil {
				return err
			}
			if asJSON {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(card)
			}
			return render.Text(cmd.OutOrStdout(), card)
		},
	}

	cmd.Flags().StringVarP(&intent, "intent", "i", "", "Dietary intent (defaults to intent.default)")
	cmd.Flags().BoolVar(&lab, "lab", false, "Analyze OpenFoodFacts nutrition data instead of the ingredient list")
	cmd.Flags().BoolVar(&verify, "verify", false, "Ask the model for the ingredients when the database has none")
	cmd.Flags().BoolVar(&photo, "photo", false, "Analyze the database product photo when the ingredients are missing")
	cmd.Flags().StringVar(&photoDir, "save-photo", "", "Keep downloaded product photos in this directory")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the card as JSON")

	return cmd
}

// resolveIntent parses the --intent flag, falling back to intent.default
func resolveIntent(root *rootOptions, flag string) (models.Intent, error) {
	if strings.TrimSpace(flag) == "" {
		return root.cfg.Intent, nil
	}
	return models.ParseIntent(flag)
}
