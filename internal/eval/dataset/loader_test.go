package dataset

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/lehigh-university-libraries/shelfsense/internal/models"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoader(t *testing.T) {
	path := "./test.parquet"
	loader := NewLoader(path)
	assert.Equal(t, path, loader.datasetPath)
}

func TestLoadJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.jsonl")
	data := `{"barcode":"737628064502","expected_verdict":"healthy"}

{"barcode":"","note":"no barcode"}
{"barcode":"5449000000996","intent":"low sugar"}
{"barcode":"3017620422003"}
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	rows, err := NewLoader(path).Load()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "737628064502", rows[0].Barcode)
	assert.Equal(t, "low sugar", rows[1].Intent)

	rows, err = NewLoader(path).LoadSample(2)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestLoadJSONLReportsBadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"barcode\":\"1\"}\n{oops\n"), 0o644))

	_, err := NewLoader(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestLoadParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.parquet")
	want := []Row{
		{Barcode: "737628064502", ExpectedVerdict: "HEALTHY"},
		{Barcode: "5449000000996", Intent: "Low Sugar"},
		{Barcode: ""},
	}
	require.NoError(t, parquet.WriteFile(path, want))

	rows, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, want[:2], rows)

	rows, err = NewLoader(path).LoadSample(1)
	require.NoError(t, err)
	assert.Equal(t, want[:1], rows)
}

func TestLoadUnsupportedFormat(t *testing.T) {
	_, err := NewLoader("rows.csv").Load()
	assert.ErrorContains(t, err, "unsupported file format")
}

func TestRowExpected(t *testing.T) {
	tests := []struct {
		name   string
		row    Row
		want   models.Verdict
		wantOK bool
	}{
		{"labeled", Row{ExpectedVerdict: "avoid"}, models.VerdictAvoid, true},
		{"unlabeled", Row{}, "", false},
		{"unknown label", Row{ExpectedVerdict: "tasty"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.row.Expected()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRowIntentOr(t *testing.T) {
	row := Row{}
	intent, err := row.IntentOr(models.IntentKeto)
	require.NoError(t, err)
	assert.Equal(t, models.IntentKeto, intent)

	row.Intent = "vegan"
	intent, err = row.IntentOr(models.IntentKeto)
	require.NoError(t, err)
	assert.Equal(t, models.IntentVegan, intent)

	row.Intent = "paleo"
	_, err = row.IntentOr(models.IntentKeto)
	assert.ErrorIs(t, err, models.ErrUnknownIntent)
}

func TestDownloaderResolve(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"barcode":"737628064502"}` + "\n"))
	}))
	defer server.Close()

	d := NewDownloader(DownloadConfig{CacheDir: t.TempDir(), Token: "secret"})

	local, err := d.Resolve(context.Background(), "rows.jsonl")
	require.NoError(t, err)
	assert.Equal(t, "rows.jsonl", local)

	path, err := d.Resolve(context.Background(), server.URL+"/data/rows.jsonl")
	require.NoError(t, err)
	assert.Equal(t, "rows.jsonl", filepath.Base(path))

	rows, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = d.Resolve(context.Background(), server.URL+"/data/rows.jsonl")
	require.NoError(t, err)
	assert.Equal(t, 1, hits)
}

func TestDownloaderRejectsFailedDownload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	d := NewDownloader(DownloadConfig{CacheDir: t.TempDir()})
	_, err := d.Resolve(context.Background(), server.URL+"/rows.jsonl")
	assert.ErrorContains(t, err, "status: 404")
}
