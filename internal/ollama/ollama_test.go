package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lehigh-university-libraries/shelfsense/internal/providers"
)

func TestGenerate(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"{\"verdict\":\"MODERATE\"}"}`))
	}))
	defer srv.Close()

	o := New(srv.URL)
	out, err := o.Generate(context.Background(), providers.Request{
		Model:  "llava",
		Prompt: "analyze",
		JSON:   true,
		Image:  []byte{1, 2, 3},
	})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if out != `{"verdict":"MODERATE"}` {
		t.Errorf("unexpected output %q", out)
	}
	if got["format"] != "json" {
		t.Errorf("expected json format, got %v", got["format"])
	}
	if imgs, ok := got["images"].([]interface{}); !ok || len(imgs) != 1 {
		t.Errorf("expected one image, got %v", got["images"])
	}
}

func TestGenerateStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Generate(context.Background(), providers.Request{Model: "x", Prompt: "p"})
	statusErr, ok := err.(*providers.StatusError)
	if !ok {
		t.Fatalf("expected StatusError, got %T %v", err, err)
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", statusErr.StatusCode)
	}
}
