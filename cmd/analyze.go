package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/shelfsense/internal/analysis"
	"github.com/lehigh-university-libraries/shelfsense/internal/imaging"
	"github.com/lehigh-university-libraries/shelfsense/internal/render"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	var frontPath string
	var ingredientsPath string
	var crop string
	var name string
	var intent string
	var useOCR bool

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze label photos when the barcode is unknown",
		Long: `Runs the visual scan path from the command line: the front of the package
identifies the product, the ingredients photo (optionally cropped to the
ingredient list) is analyzed for the chosen intent.

Crop rectangles are percentages of the image: x,y,width,height.`,
		Example: `  shelfsense analyze --image front.jpg --ingredients-image back.jpg --crop 10,25,80,50
  shelfsense analyze --ingredients-image back.jpg --ocr --name "Acme Granola" --intent vegan`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if frontPath == "" && ingredientsPath == "" {
				return errors.New("at least one of --image or --ingredients-image is required")
			}
			in, err := resolveIntent(root, intent)
			if err != nil {
				return err
			}
			rect, err := parseCrop(crop)
			if err != nil {
				return err
			}

			svc, err := newServices(root.cfg)
			if err != nil {
				return err
			}
			defer svc.Close()
			ctx := cmd.Context()

			var front []byte
			if frontPath != "" {
				if front, err = os.ReadFile(frontPath); err != nil {
					return fmt.Errorf("failed to read front image: %w", err)
				}
				if name == "" {
					id, err := svc.analysis.IdentifyProduct(ctx, front)
					if err != nil {
						slog.Warn("Unable to identify product", "err", err)
					} else if id.Known() {
						name = id.Name()
						fmt.Fprintf(cmd.OutOrStdout(), "Identified: %s\n  %s\n\n", name, id.Link)
					}
				}
			}

			label := front
			if ingredientsPath != "" {
				if label, err = os.ReadFile(ingredientsPath); err != nil {
					return fmt.Errorf("failed to read ingredients image: %w", err)
				}
			}
			if !rect.IsZero() {
				if label, err = imaging.Crop(label, rect); err != nil {
					return fmt.Errorf("failed to crop image: %w", err)
				}
			}

			var ingredients string
			if useOCR {
				if ingredients, err = svc.ocr.ExtractText(ctx, label); err != nil {
					return fmt.Errorf("failed to read label: %w", err)
				}
				slog.Debug("Label text extracted", "chars", len(ingredients))
			}

			result, err := svc.analysis.AnalyzeImage(ctx, analysis.AnalyzeInput{
				Image:       label,
				ProductName: name,
				Ingredients: ingredients,
				Intent:      in,
			})
			if err != nil {
				return fmt.Errorf("failed to analyze product: %w", err)
			}

			card, err := render.NewCard(name, result, in)
			if err != nil {
				return err
			}
			return render.Text(cmd.OutOrStdout(), card)
		},
	}

	cmd.Flags().StringVar(&frontPath, "image", "", "Photo of the front of the package")
	cmd.Flags().StringVar(&ingredientsPath, "ingredients-image", "", "Photo of the ingredient list")
	cmd.Flags().StringVar(&crop, "crop", "", "Crop rectangle in percent: x,y,width,height")
	cmd.Flags().StringVar(&name, "name", "", "Product name (skips identification)")
	cmd.Flags().StringVarP(&intent, "intent", "i", "", "Dietary intent (defaults to intent.default)")
	cmd.Flags().BoolVar(&useOCR, "ocr", false, "Read the label text first and send it with the photo")

	return cmd
}

// parseCrop parses "x,y,width,height" percentages; empty means no crop
func parseCrop(s string) (imaging.Rect, error) {
	if strings.TrimSpace(s) == "" {
		return imaging.Rect{}, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return imaging.Rect{}, fmt.Errorf("%w: want x,y,width,height, got %q", imaging.ErrInvalidRect, s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || f < 0 || f > 100 {
			return imaging.Rect{}, fmt.Errorf("%w: %q is not a percentage", imaging.ErrInvalidRect, p)
		}
		v[i] = f
	}
	r := imaging.Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}
	if r.Width <= 0 || r.Height <= 0 {
		return imaging.Rect{}, imaging.ErrInvalidRect
	}
	return r, nil
}
