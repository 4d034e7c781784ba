package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/lehigh-university-libraries/shelfsense/internal/analysis"
	"github.com/lehigh-university-libraries/shelfsense/internal/imaging"
	"github.com/lehigh-university-libraries/shelfsense/internal/lookup"
	"github.com/lehigh-university-libraries/shelfsense/internal/models"
	"github.com/lehigh-university-libraries/shelfsense/internal/orchestrator"
	"github.com/lehigh-university-libraries/shelfsense/internal/render"
	"github.com/lehigh-university-libraries/shelfsense/internal/scan"
	"github.com/lehigh-university-libraries/shelfsense/internal/storage"
)

var (
	errNotFound   = errors.New("not found")
	errBadRequest = errors.New("bad request")
)

// Analyzer is the analysis surface the API exposes
type Analyzer interface {
	scan.Analyzer
	ChatWithProduct(ctx context.Context, productName, ingredients string, history []models.ChatMessage, question string) (string, error)
	Chat(ctx context.Context, persona analysis.Persona, query string, history []models.ChatMessage) (string, error)
}

// IntentStore remembers each client's dietary intent
type IntentStore interface {
	Get(ctx context.Context, client string) (models.Intent, error)
	Set(ctx context.Context, client string, intent models.Intent) error
}

type Options struct {
	Lookup        scan.ProductLookup
	Analyzer      Analyzer
	Intents       IntentStore
	Bus           evbus.Bus
	ConfirmFrames int
	SettleDelay   time.Duration
	// StaticDir serves a built web client at / when set
	StaticDir string
}

type Handler struct {
	sessionStore *storage.SessionStore
	opts         Options
}

func New(opts Options) *Handler {
	if opts.Bus == nil {
		opts.Bus = evbus.New()
	}
	h := &Handler{
		sessionStore: storage.New(),
		opts:         opts,
	}
	if err := opts.Bus.Subscribe(scan.TopicStateChanged, h.logTransition); err != nil {
		slog.Warn("Unable to subscribe to scan transitions", "err", err)
	}
	return h
}

func (h *Handler) logTransition(t scan.Transition) {
	slog.Info("Scan state changed", "session_id", t.SessionID, "from", t.From, "to", t.To, "status", t.Status)
}

// Routes builds the API router
func (h *Handler) Routes() http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", clientHeader},
		MaxAge:         300,
	}))

	mux.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})

	mux.Route("/api", func(rt chi.Router) {
		rt.Get("/intents", h.wrap(h.handleIntents))
		rt.Get("/products/{barcode}", h.wrap(h.handleProduct))
		rt.Post("/analyze", h.wrap(h.handleAnalyze))
		rt.Post("/chat/{persona}", h.wrap(h.handleChat))

		rt.Post("/sessions", h.wrap(h.handleCreateSession))
		rt.Get("/sessions", h.wrap(h.handleListSessions))
		rt.Route("/sessions/{id}", func(s chi.Router) {
			s.Get("/", h.wrap(h.handleGetSession))
			s.Delete("/", h.wrap(h.handleDeleteSession))
			s.Post("/frames", h.wrap(h.handleFrame))
			s.Post("/barcode", h.wrap(h.handleBarcode))
			s.Post("/manual", h.wrap(h.handleManual))
			s.Post("/capture", h.wrap(h.handleCapture))
			s.Post("/crop", h.wrap(h.handleCrop))
			s.Post("/crop/cancel", h.wrap(h.handleCropCancel))
			s.Post("/barcode-mode", h.wrap(h.handleBarcodeMode))
			s.Post("/camera-error", h.wrap(h.handleCameraError))
			s.Put("/intent", h.wrap(h.handleSessionIntent))
			s.Post("/reset", h.wrap(h.handleReset))
			s.Get("/result", h.wrap(h.handleResult))
		})
	})
	if h.opts.StaticDir != "" {
		mux.Get("/*", HandleStatic(h.opts.StaticDir))
	}
	return mux
}

// Close stops every live session
func (h *Handler) Close(ctx context.Context) {
	for _, s := range h.sessionStore.List() {
		if err := s.Stop(ctx); err != nil {
			slog.Warn("Failed to stop session", "session_id", s.ID(), "err", err)
		}
	}
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (h *Handler) wrap(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			h.writeError(w, err.Error(), statusFor(err))
		}
	}
}

func statusFor(err error) int {
	var exhausted *orchestrator.ExhaustedError
	switch {
	case errors.As(err, &exhausted) && exhausted.OnlyQuota():
		return http.StatusTooManyRequests
	case errors.Is(err, orchestrator.ErrExhausted), errors.Is(err, analysis.ErrParse):
		return http.StatusBadGateway
	case errors.Is(err, scan.ErrBusy), errors.Is(err, scan.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, errNotFound), errors.Is(err, render.ErrNoAnalysis):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest), errors.Is(err, lookup.ErrInvalidBarcode),
		errors.Is(err, imaging.ErrInvalidRect), errors.Is(err, models.ErrUnknownIntent):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message, "status", code)
	} else {
		slog.Debug(message, "status", code)
	}
	http.Error(w, message, code)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	return nil
}

const clientHeader = "X-Client-ID"

// clientID identifies the caller for stored preferences
func clientID(r *http.Request) string {
	if id := r.Header.Get(clientHeader); id != "" {
		return id
	}
	return "anonymous"
}
