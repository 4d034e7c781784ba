package dataset

import (
	"strings"

	"github.com/lehigh-university-libraries/shelfsense/internal/models"
)

// Row is one product to evaluate. ExpectedVerdict and Intent are optional.
type Row struct {
	Barcode         string `json:"barcode" parquet:"barcode"`
	ExpectedVerdict string `json:"expected_verdict,omitempty" parquet:"expected_verdict,optional"`
	Intent          string `json:"intent,omitempty" parquet:"intent,optional"`
	// Note is carried into the report untouched
	Note string `json:"note,omitempty" parquet:"note,optional"`
}

// Expected returns the labeled verdict, if the row has a valid one
func (r *Row) Expected() (models.Verdict, bool) {
	if strings.TrimSpace(r.ExpectedVerdict) == "" {
		return "", false
	}
	v, err := models.ParseVerdict(r.ExpectedVerdict)
	if err != nil {
		return "", false
	}
	return v, true
}

// IntentOr returns the row's intent, or fallback when the row has none
func (r *Row) IntentOr(fallback models.Intent) (models.Intent, error) {
	if strings.TrimSpace(r.Intent) == "" {
		return fallback, nil
	}
	return models.ParseIntent(r.Intent)
}
