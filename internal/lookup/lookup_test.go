package lookup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lehigh-university-libraries/shelfsense/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const offHit = `{
  "status": 1,
  "product": {
    "code": "3017620422003",
    "product_name": "Nutella",
    "brands": "Ferrero",
    "image_url": "https://images.example/nutella.jpg",
    "ingredients_text": "Sugar, palm oil, hazelnuts 13%",
    "nutriscore_grade": "e",
    "nova_group": 4,
    "nutriments": {"energy-kcal_100g": 539, "sugars_100g": 56.3, "salt_100g": "0.107"},
    "additives_tags": ["en:e322", "en:e322i"]
  }
}`

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v2/product/3017620422003.json":
			_, _ = w.Write([]byte(offHit))
		case strings.HasPrefix(r.URL.Path, "/api/v2/product/"):
			_, _ = w.Write([]byte(`{"status":0,"status_verbose":"product not found"}`))
		case r.URL.Path == "/prod/trial/lookup" && r.URL.Query().Get("upc") == "012345678905":
			_, _ = w.Write([]byte(`{"code":"OK","items":[{"title":"Cola 12oz","brand":"","images":["https://img/cola.jpg"]}]}`))
		case r.URL.Path == "/prod/trial/lookup":
			_, _ = w.Write([]byte(`{"code":"OK","items":[]}`))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestChainLookup(t *testing.T) {
	srv := newBackend(t)
	defer srv.Close()

	chain := NewChain(
		NewOpenFoodFacts(srv.Client(), srv.URL),
		NewUPCitemdb(srv.Client(), srv.URL),
	)

	tests := []struct {
		name    string
		barcode string
		want    *models.ProductResult
	}{
		{
			name:    "primary hit",
			barcode: "3017620422003",
			want: &models.ProductResult{
				Brand:           "Ferrero",
				ProductName:     "Nutella",
				ImageURL:        "https://images.example/nutella.jpg",
				IngredientsText: "Sugar, palm oil, hazelnuts 13%",
				Source:          models.SourceOpenFoodFacts,
			},
		},
		{
			name:    "fallback hit without ingredients",
			barcode: "012345678905",
			want: &models.ProductResult{
				Brand:       "Unknown Brand",
				ProductName: "Cola 12oz",
				ImageURL:    "https://img/cola.jpg",
				Source:      models.SourceUPCitemdb,
			},
		},
		{
			name:    "unknown everywhere",
			barcode: "0000000000",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := chain.Lookup(context.Background(), tt.barcode)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type failingSource struct{ calls int }

func (f *failingSource) Name() string { return "broken" }
func (f *failingSource) Lookup(context.Context, string) (*models.ProductResult, error) {
	f.calls++
	return nil, assert.AnError
}

func TestChainTreatsErrorsAsMiss(t *testing.T) {
	srv := newBackend(t)
	defer srv.Close()

	broken := &failingSource{}
	chain := NewChain(broken, NewUPCitemdb(srv.Client(), srv.URL))

	got, err := chain.Lookup(context.Background(), "012345678905")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.SourceUPCitemdb, got.Source)
	assert.Equal(t, 1, broken.calls)
}

func TestChainServerErrorIsMiss(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	chain := NewChain(NewOpenFoodFacts(srv.Client(), srv.URL), NewUPCitemdb(srv.Client(), srv.URL))
	got, err := chain.Lookup(context.Background(), "0000000000")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestValidateBarcode(t *testing.T) {
	tests := []struct {
		code  string
		valid bool
	}{
		{"3017620422003", true},
		{"012345", true},
		{"12345", false},
		{"123456789012345", false},
		{"12345abc", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := ValidateBarcode(tt.code)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidBarcode)
			}
		})
	}
}

func TestSummary(t *testing.T) {
	srv := newBackend(t)
	defer srv.Close()

	off := NewOpenFoodFacts(srv.Client(), srv.URL)
	p, err := off.FetchProduct(context.Background(), "3017620422003")
	require.NoError(t, err)
	require.NotNil(t, p)

	want := strings.Join([]string{
		"Product: Nutella (Ferrero)",
		"Nutri-Score: E | NOVA: 4",
		"Calories: 539kcal/100g",
		"Sugar: 56.3g | Salt: 0.107g",
		"Ingredients: Sugar, palm oil, hazelnuts 13%",
		"Additives: en:e322, en:e322i",
	}, "\n")
	assert.Equal(t, want, p.Summary())

	empty := (&OFFProduct{ProductName: "X", Brands: "Y"}).Summary()
	assert.Contains(t, empty, "Nutri-Score: ? | NOVA: ?")
	assert.Contains(t, empty, "Calories: ?kcal/100g")
	assert.Contains(t, empty, "Ingredients: Unknown")
	assert.Contains(t, empty, "Additives: None")
}
