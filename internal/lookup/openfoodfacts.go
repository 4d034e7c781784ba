package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/shelfsense/internal/models"
)

const OpenFoodFactsBaseURL = "https://world.openfoodfacts.org"

// OFFProduct is the subset of an OpenFoodFacts product record used for
// lab-data analysis
type OFFProduct struct {
	Code            string                 `json:"code"`
	ProductName     string                 `json:"product_name"`
	Brands          string                 `json:"brands"`
	ImageURL        string                 `json:"image_url"`
	IngredientsText string                 `json:"ingredients_text"`
	Nutriments      map[string]interface{} `json:"nutriments"`
	NutriscoreGrade string                 `json:"nutriscore_grade"`
	NovaGroup       interface{}            `json:"nova_group"`
	AdditivesTags   []string               `json:"additives_tags"`
	AllergensTags   []string               `json:"allergens_tags"`
}

type offResponse struct {
	Status  interface{} `json:"status"`
	Product *OFFProduct `json:"product"`
}

func (r *offResponse) found() bool {
	if r.Product == nil {
		return false
	}
	switch s := r.Status.(type) {
	case float64:
		return s == 1
	case string:
		return s == "1" || s == "success"
	}
	return false
}

// OpenFoodFacts is the primary, open product database
type OpenFoodFacts struct {
	client  *http.Client
	baseURL string
}

// NewOpenFoodFacts returns an OpenFoodFacts source. An empty baseURL uses the public API.
func NewOpenFoodFacts(client *http.Client, baseURL string) *OpenFoodFacts {
	if client == nil {
		client = http.DefaultClient
	}
	return &OpenFoodFacts{client: client, baseURL: strings.TrimSuffix(orDefault(baseURL, OpenFoodFactsBaseURL), "/")}
}

func (o *OpenFoodFacts) Name() string { return string(models.SourceOpenFoodFacts) }

// FetchProduct returns the full product record, or nil when unknown
func (o *OpenFoodFacts) FetchProduct(ctx context.Context, barcode string) (*OFFProduct, error) {
	url := fmt.Sprintf("%s/api/v2/product/%s.json", o.baseURL, barcode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "ShelfSense/0.1")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenFoodFacts returned status %d", resp.StatusCode)
	}

	var body offResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode OpenFoodFacts response: %w", err)
	}
	if !body.found() {
		return nil, nil
	}
	if body.Product.Code == "" {
		body.Product.Code = barcode
	}
	return body.Product, nil
}

func (o *OpenFoodFacts) Lookup(ctx context.Context, barcode string) (*models.ProductResult, error) {
	p, err := o.FetchProduct(ctx, barcode)
	if err != nil || p == nil {
		return nil, err
	}
	return &models.ProductResult{
		Brand:           orDefault(p.Brands, "Unknown Brand"),
		ProductName:     orDefault(p.ProductName, "Unknown Product"),
		ImageURL:        p.ImageURL,
		IngredientsText: p.IngredientsText,
		Source:          models.SourceOpenFoodFacts,
	}, nil
}

// Summary renders the record as the lab-data block used in prompts
func (p *OFFProduct) Summary() string {
	grade := strings.ToUpper(p.NutriscoreGrade)
	if grade == "" {
		grade = "?"
	}
	nova := formatValue(p.NovaGroup)
	if nova == "" || nova == "0" {
		nova = "?"
	}
	ingredients := orDefault(p.IngredientsText, "Unknown")
	additives := "None"
	if len(p.AdditivesTags) > 0 {
		additives = strings.Join(p.AdditivesTags, ", ")
	}

	lines := []string{
		fmt.Sprintf("Product: %s (%s)", p.ProductName, p.Brands),
		fmt.Sprintf("Nutri-Score: %s | NOVA: %s", grade, nova),
		fmt.Sprintf("Calories: %skcal/100g", p.nutriment("energy-kcal_100g")),
		fmt.Sprintf("Sugar: %sg | Salt: %sg", p.nutriment("sugars_100g"), p.nutriment("salt_100g")),
		"Ingredients: " + ingredients,
		"Additives: " + additives,
	}
	return strings.Join(lines, "\n")
}

func (p *OFFProduct) nutriment(key string) string {
	v := formatValue(p.Nutriments[key])
	if v == "" {
		return "?"
	}
	return v
}

// OpenFoodFacts mixes numbers and numeric strings
func formatValue(v interface{}) string {
	switch n := v.(type) {
	case nil:
		return ""
	case float64:
		return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", n), "0"), ".")
	case string:
		return n
	default:
		return fmt.Sprint(n)
	}
}
