package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/lehigh-university-libraries/shelfsense/internal/analysis"
	"github.com/lehigh-university-libraries/shelfsense/internal/imaging"
	"github.com/lehigh-university-libraries/shelfsense/internal/models"
	"github.com/lehigh-university-libraries/shelfsense/internal/render"
	"github.com/lehigh-university-libraries/shelfsense/internal/voice"
)

type intentOption struct {
	Value models.Intent `json:"value"`
	Label string        `json:"label"`
}

func (h *Handler) handleIntents(w http.ResponseWriter, r *http.Request) error {
	selected, err := h.intentFor(r, "")
	if err != nil {
		return err
	}
	options := make([]intentOption, 0, len(models.KnownIntents()))
	for _, i := range models.KnownIntents() {
		options = append(options, intentOption{Value: i, Label: i.Label()})
	}
	h.writeJSON(w, map[string]any{
		"intents":  options,
		"selected": selected,
	})
	return nil
}

func (h *Handler) handleProduct(w http.ResponseWriter, r *http.Request) error {
	code := chi.URLParam(r, "barcode")
	product, err := h.opts.Lookup.Lookup(r.Context(), code)
	if err != nil {
		return err
	}
	if product == nil {
		return fmt.Errorf("%w: product %s", errNotFound, code)
	}
	h.writeJSON(w, product)
	return nil
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) error {
	var body struct {
		Image       string `json:"image"`
		ProductName string `json:"product_name"`
		Ingredients string `json:"ingredients"`
		Intent      string `json:"intent"`
	}
	if err := decodeJSON(r, &body); err != nil {
		return err
	}
	if body.Image == "" && strings.TrimSpace(body.Ingredients) == "" {
		return fmt.Errorf("%w: image or ingredients is required", errBadRequest)
	}

	var image []byte
	if body.Image != "" {
		data, err := imaging.DecodeDataURL(body.Image)
		if err != nil {
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
		image = data
	}
	intent, err := h.intentFor(r, body.Intent)
	if err != nil {
		return err
	}

	result, err := h.opts.Analyzer.AnalyzeImage(r.Context(), analysis.AnalyzeInput{
		Image:       image,
		ProductName: body.ProductName,
		Ingredients: body.Ingredients,
		Intent:      intent,
	})
	if err != nil {
		return err
	}
	card, err := render.NewCard(body.ProductName, result, intent)
	if err != nil {
		return err
	}
	h.writeJSON(w, struct {
		Card     *render.Card           `json:"card"`
		Analysis *models.AnalysisResult `json:"analysis"`
	}{card, result})
	return nil
}

type chatResponse struct {
	Reply       string          `json:"reply"`
	Speech      string          `json:"speech"`
	Suggestions []string        `json:"suggestions,omitempty"`
	Sentiment   voice.Sentiment `json:"sentiment"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) error {
	persona, err := analysis.ParsePersona(chi.URLParam(r, "persona"))
	if err != nil {
		return fmt.Errorf("%w: %v", errNotFound, err)
	}
	var body struct {
		Message     string               `json:"message"`
		History     []models.ChatMessage `json:"history"`
		ProductName string               `json:"product_name"`
		Ingredients string               `json:"ingredients"`
	}
	if err := decodeJSON(r, &body); err != nil {
		return err
	}
	if strings.TrimSpace(body.Message) == "" {
		return fmt.Errorf("%w: message is required", errBadRequest)
	}

	var reply string
	if body.ProductName != "" {
		reply, err = h.opts.Analyzer.ChatWithProduct(r.Context(), body.ProductName, body.Ingredients, body.History, body.Message)
	} else {
		reply, err = h.opts.Analyzer.Chat(r.Context(), persona, body.Message, body.History)
	}
	if err != nil {
		return err
	}

	speech, chips := voice.ParseReply(reply)
	h.writeJSON(w, chatResponse{
		Reply:       reply,
		Speech:      speech,
		Suggestions: chips,
		Sentiment:   voice.DetectSentiment(speech),
	})
	return nil
}
