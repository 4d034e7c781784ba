package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/shelfsense/internal/imaging"
)

const maxUploadSize = 10 * 1024 * 1024

// readImage accepts a multipart "file" upload or a JSON body carrying
// either "image" (a data URL) or "image_url"
func (h *Handler) readImage(r *http.Request) ([]byte, error) {
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			Image    string `json:"image"`
			ImageURL string `json:"image_url"`
		}
		if err := decodeJSON(r, &body); err != nil {
			return nil, err
		}
		if body.Image == "" && body.ImageURL != "" {
			return downloadImage(r.Context(), body.ImageURL)
		}
		if body.Image == "" {
			return nil, fmt.Errorf("%w: image or image_url is required", errBadRequest)
		}
		data, err := imaging.DecodeDataURL(body.Image)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		return data, nil
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		file, _, err = r.FormFile("files")
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read file: %v", errBadRequest, err)
		}
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read file contents: %w", err)
	}
	if len(data) >= maxUploadSize {
		return nil, fmt.Errorf("%w: file too large (max 10MB)", errBadRequest)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", errBadRequest)
	}
	return data, nil
}

// decodeOptionalJSON decodes the body into v, leaving v untouched when the body is empty
func decodeOptionalJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
}
