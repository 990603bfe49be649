package api

import (
	"log/slog"
	"net/http"

	"storymap/pkg/media"
)

// ImageHandler stores uploaded event images.
type ImageHandler struct {
	uploader *media.Uploader
}

// NewImageHandler creates an ImageHandler.
func NewImageHandler(u *media.Uploader) *ImageHandler {
	return &ImageHandler{uploader: u}
}

type uploadRequest struct {
	Filename string `json:"filename"`
	Data     string `json:"data"`
}

type uploadResponse struct {
	URL string `json:"url"`
}

// HandleUpload handles POST /api/upload-image with a base64 payload.
func (h *ImageHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	limit := int64(maxJSONBody)
	if h.uploader.MaxBytes > 0 {
		// base64 inflates by 4/3 plus the JSON envelope
		limit = h.uploader.MaxBytes*4/3 + 4096
	}
	var req uploadRequest
	if err := decodeJSON(w, r, &req, limit); err != nil {
		writeErr(w, r, err)
		return
	}
	url, err := h.uploader.SaveBase64(req.Filename, req.Data)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	slog.Debug("Image uploaded", "component", "api", "url", url)
	writeJSON(w, http.StatusOK, uploadResponse{URL: url})
}
