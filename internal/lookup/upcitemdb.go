package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/lehigh-university-libraries/shelfsense/internal/models"
)

const UPCitemdbBaseURL = "https://api.upcitemdb.com"

// UPCitemdb is the commercial fallback database. Its trial endpoint is rate
// limited and never carries ingredients.
type UPCitemdb struct {
	client  *http.Client
	baseURL string
}

// NewUPCitemdb returns a UPCitemdb source. An empty baseURL uses the public API.
func NewUPCitemdb(client *http.Client, baseURL string) *UPCitemdb {
	if client == nil {
		client = http.DefaultClient
	}
	return &UPCitemdb{client: client, baseURL: strings.TrimSuffix(orDefault(baseURL, UPCitemdbBaseURL), "/")}
}

func (u *UPCitemdb) Name() string { return string(models.SourceUPCitemdb) }

type upcResponse struct {
	Code  string `json:"code"`
	Items []struct {
		Title  string   `json:"title"`
		Brand  string   `json:"brand"`
		Images []string `json:"images"`
	} `json:"items"`
}

func (u *UPCitemdb) Lookup(ctx context.Context, barcode string) (*models.ProductResult, error) {
	endpoint := fmt.Sprintf("%s/prod/trial/lookup?upc=%s", u.baseURL, url.QueryEscape(barcode))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("UPCitemdb returned status %d", resp.StatusCode)
	}

	var body upcResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode UPCitemdb response: %w", err)
	}
	if len(body.Items) == 0 {
		return nil, nil
	}

	item := body.Items[0]
	result := &models.ProductResult{
		Brand:       orDefault(item.Brand, "Unknown Brand"),
		ProductName: orDefault(item.Title, "Unknown Product"),
		Source:      models.SourceUPCitemdb,
	}
	if len(item.Images) > 0 {
		result.ImageURL = item.Images[0]
	}
	return result, nil
}
