package ocr

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lehigh-university-libraries/shelfsense/internal/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCaller struct {
	got  orchestrator.Request
	resp orchestrator.Response
	err  error
}

func (s *stubCaller) Call(_ context.Context, req orchestrator.Request) (orchestrator.Response, error) {
	s.got = req
	return s.resp, s.err
}

func label(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 20, 10)), nil))
	return buf.Bytes()
}

func TestExtractWithOCRSpace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("apikey"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "eng", r.FormValue("language"))
		assert.Equal(t, "2", r.FormValue("OCREngine"))
		assert.Equal(t, "false", r.FormValue("isOverlayRequired"))
		assert.True(t, strings.HasPrefix(r.FormValue("base64Image"), "data:image/jpeg;base64,"))
		_, _ = w.Write([]byte(`{"ParsedResults":[{"ParsedText":"INGREDIENTS: Sugar"},{"ParsedText":"Salt"}],"IsErroredOnProcessing":false}`))
	}))
	defer srv.Close()

	s := NewService("secret", nil).WithEndpoint(srv.URL)
	text, err := s.ExtractText(context.Background(), label(t))
	require.NoError(t, err)
	assert.Equal(t, "INGREDIENTS: Sugar\nSalt", text)
}

func TestExtractOCRSpaceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"IsErroredOnProcessing":true,"ErrorMessage":["Image too large"]}`))
	}))
	defer srv.Close()

	s := NewService("secret", nil).WithEndpoint(srv.URL)
	_, err := s.ExtractText(context.Background(), label(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Image too large")

	llm := &stubCaller{resp: orchestrator.Response{Content: " Sugar, Cocoa \n", ProviderLabel: "Gemini (x)"}}
	s = NewService("secret", llm).WithEndpoint(srv.URL)
	text, err := s.ExtractText(context.Background(), label(t))
	require.NoError(t, err)
	assert.Equal(t, "Sugar, Cocoa", text)
}

func TestExtractWithVision(t *testing.T) {
	llm := &stubCaller{resp: orchestrator.Response{Content: "Oats", ProviderLabel: "Gemini (x)"}}
	s := NewService("", llm)

	img := label(t)
	text, err := s.ExtractText(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, "Oats", text)
	assert.Equal(t, img, llm.got.Image)
	assert.False(t, llm.got.JSON)
}

func TestExtractRejectsBlank(t *testing.T) {
	_, err := NewService("", &stubCaller{}).ExtractText(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoImage)
}
