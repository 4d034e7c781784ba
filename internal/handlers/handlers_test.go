package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/shelfsense/internal/analysis"
	"github.com/lehigh-university-libraries/shelfsense/internal/cache"
	"github.com/lehigh-university-libraries/shelfsense/internal/imaging"
	"github.com/lehigh-university-libraries/shelfsense/internal/lookup"
	"github.com/lehigh-university-libraries/shelfsense/internal/models"
	"github.com/lehigh-university-libraries/shelfsense/internal/orchestrator"
	"github.com/lehigh-university-libraries/shelfsense/internal/render"
	"github.com/lehigh-university-libraries/shelfsense/internal/scan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLookup struct {
	products map[string]*models.ProductResult
}

func (f *fakeLookup) Lookup(_ context.Context, code string) (*models.ProductResult, error) {
	if code == "bad" {
		return nil, fmt.Errorf("%w: %q", lookup.ErrInvalidBarcode, code)
	}
	return f.products[code], nil
}

type fakeAnalyzer struct {
	mu      sync.Mutex
	intents []models.Intent
	chats   []string
	reply   string
}

func (f *fakeAnalyzer) AnalyzeImage(_ context.Context, in analysis.AnalyzeInput) (*models.AnalysisResult, error) {
	f.mu.Lock()
	f.intents = append(f.intents, in.Intent)
	f.mu.Unlock()
	return &models.AnalysisResult{
		Verdict:     models.VerdictUnhealthy,
		Score:       30,
		Explanation: "Mostly sugar.",
		ModelUsed:   "Gemini (test)",
	}, nil
}

func (f *fakeAnalyzer) IdentifyProduct(context.Context, []byte) (analysis.Identification, error) {
	return analysis.Identification{Brand: "Acme", Product: "Crunch"}, nil
}

func (f *fakeAnalyzer) ChatWithProduct(_ context.Context, productName, _ string, _ []models.ChatMessage, question string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, "product:"+productName+":"+question)
	return f.reply, nil
}

func (f *fakeAnalyzer) Chat(_ context.Context, persona analysis.Persona, query string, _ []models.ChatMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, string(persona)+":"+query)
	return f.reply, nil
}

func (f *fakeAnalyzer) seenIntents() []models.Intent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Intent(nil), f.intents...)
}

func photo(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for x := 0; x < 64; x++ {
		for y := 0; y < 48; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 5), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeAnalyzer) {
	t.Helper()
	store := cache.NewMemory(time.Minute)
	t.Cleanup(func() { store.Close() })

	analyzer := &fakeAnalyzer{reply: "Skip it, too much sugar. | What about oats? | Is honey better?"}
	h := New(Options{
		Lookup: &fakeLookup{products: map[string]*models.ProductResult{
			"737628064502": {ProductName: "Choco Crunch", Brand: "Acme", IngredientsText: "sugar, cocoa, wheat"},
		}},
		Analyzer:      analyzer,
		Intents:       cache.NewIntents(store, models.IntentGeneral),
		ConfirmFrames: 2,
	})
	server := httptest.NewServer(h.Routes())
	t.Cleanup(func() {
		h.Close(context.Background())
		server.Close()
	})
	return server, analyzer
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body == "" {
		req, err = http.NewRequest(method, url, nil)
	} else {
		req, err = http.NewRequest(method, url, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	require.NoError(t, err)
	req.Header.Set(clientHeader, "tester")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func createSession(t *testing.T, server *httptest.Server, body string) scan.Snapshot {
	t.Helper()
	resp := do(t, http.MethodPost, server.URL+"/api/sessions", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	snap := decode[scan.Snapshot](t, resp)
	require.Equal(t, scan.StateScanBarcode, snap.State)
	return snap
}

func TestHealthcheck(t *testing.T) {
	server, _ := newTestServer(t)
	resp := do(t, http.MethodGet, server.URL+"/healthcheck", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBarcodeHitReachesResult(t *testing.T) {
	server, analyzer := newTestServer(t)
	snap := createSession(t, server, `{"intent":"low sugar"}`)
	assert.Equal(t, models.IntentLowSugar, snap.Intent)

	base := server.URL + "/api/sessions/" + snap.ID
	resp := do(t, http.MethodPost, base+"/barcode", `{"code":"737628064502"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap = decode[scan.Snapshot](t, resp)
	assert.Equal(t, scan.StateResult, snap.State)
	assert.Equal(t, "Choco Crunch", snap.Data.ProductName)
	assert.Equal(t, []models.Intent{models.IntentLowSugar}, analyzer.seenIntents())

	resp = do(t, http.MethodGet, base+"/result", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decode[struct {
		Card render.Card `json:"card"`
	}](t, resp)
	assert.Equal(t, "Acme Choco Crunch", result.Card.ProductName)
	assert.Equal(t, render.ColorRed, result.Card.Color)
	assert.Equal(t, string(models.IntentLowSugar), result.Card.Provenance.Intent)
}

func TestFramesConfirmBarcode(t *testing.T) {
	server, _ := newTestServer(t)
	snap := createSession(t, server, "")
	base := server.URL + "/api/sessions/" + snap.ID

	type frameResponse struct {
		Observation struct {
			Confirmed bool `json:"confirmed"`
		} `json:"observation"`
		Session scan.Snapshot `json:"session"`
	}

	first := decode[frameResponse](t, do(t, http.MethodPost, base+"/frames", `{"code":"737628064502"}`))
	assert.False(t, first.Observation.Confirmed)
	assert.Equal(t, scan.StateScanBarcode, first.Session.State)

	second := decode[frameResponse](t, do(t, http.MethodPost, base+"/frames", `{"code":"737628064502"}`))
	assert.True(t, second.Observation.Confirmed)
	assert.Equal(t, scan.StateResult, second.Session.State)
}

func TestFramesRejectNonProductCodes(t *testing.T) {
	server, _ := newTestServer(t)
	snap := createSession(t, server, "")
	base := server.URL + "/api/sessions/" + snap.ID

	resp := do(t, http.MethodPost, base+"/frames", `{"code":"WIFI:S:home;T:WPA;;"}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	got := decode[scan.Snapshot](t, do(t, http.MethodGet, base, ""))
	assert.Equal(t, scan.StateScanBarcode, got.State)
}

func TestBarcodeMissFallsBackToVisualScan(t *testing.T) {
	server, _ := newTestServer(t)
	snap := createSession(t, server, "")
	base := server.URL + "/api/sessions/" + snap.ID

	snap = decode[scan.Snapshot](t, do(t, http.MethodPost, base+"/barcode", `{"code":"000000000000"}`))
	assert.Equal(t, scan.StateScanFront, snap.State)

	resp := do(t, http.MethodPost, base+"/capture", fmt.Sprintf(`{"image":%q}`, imaging.DataURL(photo(t))))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap = decode[scan.Snapshot](t, resp)
	assert.Equal(t, scan.StateScanCrop, snap.State)
	assert.Equal(t, scan.CropFront, snap.CropTarget)

	snap = decode[scan.Snapshot](t, do(t, http.MethodPost, base+"/crop", ""))
	assert.Equal(t, scan.StateScanIngredients, snap.State)
	assert.Equal(t, "Crunch", snap.Data.ProductName)
}

func TestSessionErrors(t *testing.T) {
	server, _ := newTestServer(t)
	snap := createSession(t, server, "")
	base := server.URL + "/api/sessions/" + snap.ID

	tests := []struct {
		name   string
		method string
		url    string
		body   string
		status int
	}{
		{"unknown session", http.MethodGet, server.URL + "/api/sessions/nope", "", http.StatusNotFound},
		{"crop outside crop screen", http.MethodPost, base + "/crop", "", http.StatusConflict},
		{"invalid barcode", http.MethodPost, base + "/barcode", `{"code":"12ab"}`, http.StatusBadRequest},
		{"missing code", http.MethodPost, base + "/barcode", `{}`, http.StatusBadRequest},
		{"malformed json", http.MethodPost, base + "/barcode", `{`, http.StatusBadRequest},
		{"unknown intent", http.MethodPut, base + "/intent", `{"intent":"paleo"}`, http.StatusBadRequest},
		{"result before analysis", http.MethodGet, base + "/result", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// reset between cases so each starts at the barcode scanner
			require.Equal(t, http.StatusOK, do(t, http.MethodPost, base+"/reset", "").StatusCode)
			resp := do(t, tt.method, tt.url, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestDeleteSession(t *testing.T) {
	server, _ := newTestServer(t)
	snap := createSession(t, server, "")

	resp := do(t, http.MethodDelete, server.URL+"/api/sessions/"+snap.ID, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodDelete, server.URL+"/api/sessions/"+snap.ID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	list := decode[[]scan.Snapshot](t, do(t, http.MethodGet, server.URL+"/api/sessions", ""))
	assert.Empty(t, list)
}

func TestIntentsRememberClientChoice(t *testing.T) {
	server, _ := newTestServer(t)

	type intentsResponse struct {
		Intents []struct {
			Value string `json:"value"`
			Label string `json:"label"`
		} `json:"intents"`
		Selected models.Intent `json:"selected"`
	}

	got := decode[intentsResponse](t, do(t, http.MethodGet, server.URL+"/api/intents", ""))
	assert.Len(t, got.Intents, len(models.KnownIntents()))
	assert.Equal(t, models.IntentGeneral, got.Selected)

	createSession(t, server, `{"intent":"vegan"}`)

	got = decode[intentsResponse](t, do(t, http.MethodGet, server.URL+"/api/intents", ""))
	assert.Equal(t, models.IntentVegan, got.Selected)

	// a new session without an intent picks up the stored one
	snap := createSession(t, server, "")
	assert.Equal(t, models.IntentVegan, snap.Intent)
}

func TestProduct(t *testing.T) {
	server, _ := newTestServer(t)

	resp := do(t, http.MethodGet, server.URL+"/api/products/737628064502", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	product := decode[models.ProductResult](t, resp)
	assert.Equal(t, "Choco Crunch", product.ProductName)

	resp = do(t, http.MethodGet, server.URL+"/api/products/000000000000", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodGet, server.URL+"/api/products/bad", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAnalyze(t *testing.T) {
	server, analyzer := newTestServer(t)

	resp := do(t, http.MethodPost, server.URL+"/api/analyze", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, server.URL+"/api/analyze", `{"product_name":"Soda","ingredients":"sugar, water","intent":"keto"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[struct {
		Card     render.Card           `json:"card"`
		Analysis models.AnalysisResult `json:"analysis"`
	}](t, resp)
	assert.Equal(t, "Soda", got.Card.ProductName)
	assert.Equal(t, models.VerdictUnhealthy, got.Analysis.Verdict)
	assert.Equal(t, []models.Intent{models.IntentKeto}, analyzer.seenIntents())
}

func TestChat(t *testing.T) {
	server, analyzer := newTestServer(t)

	resp := do(t, http.MethodPost, server.URL+"/api/chat/nova", `{"message":"is soda ok?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[chatResponse](t, resp)
	assert.Equal(t, "Skip it, too much sugar.", got.Speech)
	assert.Equal(t, []string{"What about oats?", "Is honey better?"}, got.Suggestions)

	resp = do(t, http.MethodPost, server.URL+"/api/chat/nivu", `{"message":"and this?","product_name":"Choco Crunch"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodPost, server.URL+"/api/chat/alexa", `{"message":"hi"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPost, server.URL+"/api/chat/nova", `{"message":"  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	analyzer.mu.Lock()
	defer analyzer.mu.Unlock()
	assert.Equal(t, []string{"nova:is soda ok?", "product:Choco Crunch:and this?"}, analyzer.chats)
}

func TestStaticFallsBackToIndex(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>shelfsense</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))

	h := New(Options{StaticDir: dir})
	server := httptest.NewServer(h.Routes())
	defer server.Close()

	resp := do(t, http.MethodGet, server.URL+"/scan", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html", resp.Header.Get("Content-Type"))

	resp = do(t, http.MethodGet, server.URL+"/app.js", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/javascript", resp.Header.Get("Content-Type"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"quota only", &orchestrator.ExhaustedError{Failures: []orchestrator.Failure{{Label: "Gemini", Kind: orchestrator.KindQuota}}}, http.StatusTooManyRequests},
		{"exhausted", &orchestrator.ExhaustedError{Failures: []orchestrator.Failure{{Label: "Gemini", Kind: orchestrator.KindTimeout}}}, http.StatusBadGateway},
		{"parse", fmt.Errorf("wrap: %w", analysis.ErrParse), http.StatusBadGateway},
		{"busy", scan.ErrBusy, http.StatusConflict},
		{"invalid transition", fmt.Errorf("%w: nope", scan.ErrInvalidTransition), http.StatusConflict},
		{"no analysis", render.ErrNoAnalysis, http.StatusNotFound},
		{"invalid rect", imaging.ErrInvalidRect, http.StatusBadRequest},
		{"unknown intent", models.ErrUnknownIntent, http.StatusBadRequest},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
