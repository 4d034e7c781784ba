package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/shelfsense/internal/barcode"
	"github.com/lehigh-university-libraries/shelfsense/internal/camera"
	"github.com/lehigh-university-libraries/shelfsense/internal/imaging"
	"github.com/lehigh-university-libraries/shelfsense/internal/lookup"
	"github.com/lehigh-university-libraries/shelfsense/internal/models"
	"github.com/lehigh-university-libraries/shelfsense/internal/render"
	"github.com/lehigh-university-libraries/shelfsense/internal/scan"
)

// Session helpers
func (h *Handler) session(r *http.Request) (*scan.Session, error) {
	id := chi.URLParam(r, "id")
	s, ok := h.sessionStore.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: session %s", errNotFound, id)
	}
	return s, nil
}

// respond waits for the session's background work unless ?async is set,
// then writes its snapshot
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, s *scan.Session) error {
	if r.URL.Query().Get("async") == "" {
		if err := s.Wait(r.Context()); err != nil {
			return fmt.Errorf("failed waiting for session: %w", err)
		}
	}
	h.writeJSON(w, s.Snapshot())
	return nil
}

func (h *Handler) intentFor(r *http.Request, requested string) (models.Intent, error) {
	if requested != "" {
		intent, err := models.ParseIntent(requested)
		if err != nil {
			return "", err
		}
		if h.opts.Intents != nil {
			if err := h.opts.Intents.Set(r.Context(), clientID(r), intent); err != nil {
				slog.Warn("Unable to store intent", "client", clientID(r), "err", err)
			}
		}
		return intent, nil
	}
	if h.opts.Intents == nil {
		return models.IntentGeneral, nil
	}
	intent, err := h.opts.Intents.Get(r.Context(), clientID(r))
	if err != nil {
		slog.Warn("Unable to load intent", "client", clientID(r), "err", err)
	}
	return intent, nil
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) error {
	var body struct {
		Intent        string `json:"intent"`
		ForceFullScan bool   `json:"force_full_scan"`
	}
	if err := decodeOptionalJSON(r, &body); err != nil {
		return err
	}
	intent, err := h.intentFor(r, body.Intent)
	if err != nil {
		return err
	}

	id := uuid.NewString()
	s := scan.NewSession(id, scan.Deps{
		Lookup:        h.opts.Lookup,
		Analyzer:      h.opts.Analyzer,
		Camera:        camera.NewResource(&camera.Tracker{}, h.opts.SettleDelay),
		Bus:           h.opts.Bus,
		ConfirmFrames: h.opts.ConfirmFrames,
		Intent:        intent,
	})
	s.SetForceFullScan(body.ForceFullScan)
	if err := s.Start(r.Context()); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	h.sessionStore.Set(id, s)
	slog.Info("Session created", "session_id", id, "intent", intent)

	h.writeJSONStatus(w, http.StatusCreated, s.Snapshot())
	return nil
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) error {
	sessions := h.sessionStore.List()
	list := make([]scan.Snapshot, 0, len(sessions))
	for _, s := range sessions {
		list = append(list, s.Snapshot())
	}
	h.writeJSON(w, list)
	return nil
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) error {
	s, err := h.session(r)
	if err != nil {
		return err
	}
	h.writeJSON(w, s.Snapshot())
	return nil
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) error {
	s, ok := h.sessionStore.Delete(chi.URLParam(r, "id"))
	if !ok {
		return fmt.Errorf("%w: session %s", errNotFound, chi.URLParam(r, "id"))
	}
	if err := s.Stop(r.Context()); err != nil {
		slog.Warn("Failed to release camera", "session_id", s.ID(), "err", err)
	}
	slog.Info("Session deleted", "session_id", s.ID())
	w.WriteHeader(http.StatusNoContent)
	return nil
}

type codeRequest struct {
	Code string `json:"code"`
}

func readCode(r *http.Request) (string, error) {
	var body codeRequest
	if err := decodeJSON(r, &body); err != nil {
		return "", err
	}
	code := strings.TrimSpace(body.Code)
	if code == "" {
		return "", fmt.Errorf("%w: code is required", errBadRequest)
	}
	return code, nil
}

func (h *Handler) handleFrame(w http.ResponseWriter, r *http.Request) error {
	s, err := h.session(r)
	if err != nil {
		return err
	}
	code, err := readCode(r)
	if err != nil {
		return err
	}
	if err := lookup.ValidateBarcode(code); err != nil {
		return err
	}
	obs, err := s.Frame(r.Context(), code)
	if err != nil {
		return err
	}
	if obs.Confirmed && r.URL.Query().Get("async") == "" {
		if err := s.Wait(r.Context()); err != nil {
			return fmt.Errorf("failed waiting for session: %w", err)
		}
	}
	h.writeJSON(w, struct {
		Observation barcode.Observation `json:"observation"`
		Session     scan.Snapshot       `json:"session"`
	}{obs, s.Snapshot()})
	return nil
}

func (h *Handler) handleBarcode(w http.ResponseWriter, r *http.Request) error {
	s, err := h.session(r)
	if err != nil {
		return err
	}
	code, err := readCode(r)
	if err != nil {
		return err
	}
	if err := lookup.ValidateBarcode(code); err != nil {
		return err
	}
	if err := s.BarcodeDetected(r.Context(), code); err != nil {
		return err
	}
	return h.respond(w, r, s)
}

func (h *Handler) handleManual(w http.ResponseWriter, r *http.Request) error {
	s, err := h.session(r)
	if err != nil {
		return err
	}
	if err := s.ManualCapture(r.Context()); err != nil {
		return err
	}
	return h.respond(w, r, s)
}

func (h *Handler) handleCapture(w http.ResponseWriter, r *http.Request) error {
	s, err := h.session(r)
	if err != nil {
		return err
	}
	image, err := h.readImage(r)
	if err != nil {
		return err
	}
	if err := s.Capture(r.Context(), image); err != nil {
		return err
	}
	h.writeJSON(w, s.Snapshot())
	return nil
}

func (h *Handler) handleCrop(w http.ResponseWriter, r *http.Request) error {
	s, err := h.session(r)
	if err != nil {
		return err
	}
	var rect imaging.Rect
	if err := decodeOptionalJSON(r, &rect); err != nil {
		return err
	}
	if err := s.CropConfirm(r.Context(), rect); err != nil {
		return err
	}
	return h.respond(w, r, s)
}

func (h *Handler) handleCropCancel(w http.ResponseWriter, r *http.Request) error {
	s, err := h.session(r)
	if err != nil {
		return err
	}
	if err := s.CropCancel(r.Context()); err != nil {
		return err
	}
	h.writeJSON(w, s.Snapshot())
	return nil
}

func (h *Handler) handleBarcodeMode(w http.ResponseWriter, r *http.Request) error {
	s, err := h.session(r)
	if err != nil {
		return err
	}
	if err := s.SwitchToBarcode(r.Context()); err != nil {
		return err
	}
	return h.respond(w, r, s)
}

func (h *Handler) handleCameraError(w http.ResponseWriter, r *http.Request) error {
	s, err := h.session(r)
	if err != nil {
		return err
	}
	var body struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &body); err != nil {
		return err
	}
	if err := s.CameraError(r.Context(), &camera.HardwareError{Name: body.Name, Message: body.Message}); err != nil {
		slog.Warn("Failed to release camera", "session_id", s.ID(), "err", err)
	}
	h.writeJSON(w, s.Snapshot())
	return nil
}

func (h *Handler) handleSessionIntent(w http.ResponseWriter, r *http.Request) error {
	s, err := h.session(r)
	if err != nil {
		return err
	}
	var body struct {
		Intent    string `json:"intent"`
		Reanalyze bool   `json:"reanalyze"`
	}
	if err := decodeJSON(r, &body); err != nil {
		return err
	}
	if strings.TrimSpace(body.Intent) == "" {
		return fmt.Errorf("%w: intent is required", errBadRequest)
	}
	intent, err := h.intentFor(r, body.Intent)
	if err != nil {
		return err
	}
	s.SetIntent(intent)

	if body.Reanalyze && s.State() == scan.StateResult {
		if err := s.Reanalyze(r.Context()); err != nil {
			return err
		}
	}
	return h.respond(w, r, s)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) error {
	s, err := h.session(r)
	if err != nil {
		return err
	}
	if err := s.Reset(r.Context()); err != nil {
		return err
	}
	h.writeJSON(w, s.Snapshot())
	return nil
}

func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request) error {
	s, err := h.session(r)
	if err != nil {
		return err
	}
	snap := s.Snapshot()
	card, err := render.NewCard(snap.Data.ContextName(), snap.Data.Analysis, snap.Intent)
	if err != nil {
		return err
	}
	h.writeJSON(w, struct {
		Card     *render.Card           `json:"card"`
		Analysis *models.AnalysisResult `json:"analysis"`
		Link     string                 `json:"link,omitempty"`
	}{card, snap.Data.Analysis, snap.Data.Link})
	return nil
}
