package lookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/shelfsense/internal/models"
)

// ErrInvalidBarcode is returned for codes that are not 6-14 digits
var ErrInvalidBarcode = errors.New("invalid barcode")

// Source is one product database
type Source interface {
	Name() string
	// Lookup returns nil, nil when the product is unknown
	Lookup(ctx context.Context, barcode string) (*models.ProductResult, error)
}

// ValidateBarcode checks that code is 6-14 digits
func ValidateBarcode(code string) error {
	if len(code) < 6 || len(code) > 14 {
		return fmt.Errorf("%w: %q", ErrInvalidBarcode, code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: %q", ErrInvalidBarcode, code)
		}
	}
	return nil
}

// Chain queries sources in priority order
type Chain struct {
	sources []Source
}

// NewChain returns a chain over the given sources
func NewChain(sources ...Source) *Chain {
	return &Chain{sources: sources}
}

// NewDefaultChain returns OpenFoodFacts followed by UPCitemdb
func NewDefaultChain() *Chain {
	client := &http.Client{Timeout: 10 * time.Second}
	return NewChain(NewOpenFoodFacts(client, ""), NewUPCitemdb(client, ""))
}

// Lookup returns the first hit or nil. Source failures count as misses.
func (c *Chain) Lookup(ctx context.Context, barcode string) (*models.ProductResult, error) {
	if err := ValidateBarcode(barcode); err != nil {
		return nil, err
	}

	for _, s := range c.sources {
		product, err := s.Lookup(ctx, barcode)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("Product lookup failed", "source", s.Name(), "barcode", barcode, "error", err)
			continue
		}
		if product != nil {
			slog.Info("Product found", "source", s.Name(), "barcode", barcode, "product", product.DisplayName())
			return product, nil
		}
		slog.Debug("Product not found", "source", s.Name(), "barcode", barcode)
	}
	return nil, nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
