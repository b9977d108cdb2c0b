package rest

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"

	"github.com/ewilliams-labs/notesynth/internal/core/domain"
)

type historyItem struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

type historyResponse struct {
	URL        []historyItem `json:"url"`
	Error      bool          `json:"error"`
	Message    string        `json:"message"`
	TotalCount int           `json:"totalCount"`
	TotalPages int           `json:"totalPages"`
}

type deleteResponse struct {
	Error      bool   `json:"error"`
	Message    string `json:"message"`
	TotalPages int    `json:"totalPages"`
	TotalCount int    `json:"totalCount"`
}

type audioResponse struct {
	Audio string `json:"audio"`
	Error bool   `json:"error"`
}

// ListHistory handles GET /music/history/{userId}?page=&pageSize=
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	ownerID, err := pathInt(r, "userId")
	if err != nil {
		h.writeError(w, err, "")
		return
	}
	page, err := queryInt(r, "page", 1)
	if err != nil {
		h.writeError(w, err, "")
		return
	}
	pageSize, err := queryInt(r, "pageSize", 0)
	if err != nil {
		h.writeError(w, err, "")
		return
	}

	result, err := h.history.List(r.Context(), ownerID, page, pageSize)
	if err != nil {
		h.writeError(w, err, "")
		return
	}

	items := make([]historyItem, 0, len(result.Records))
	for _, rec := range result.Records {
		items = append(items, historyItem{ID: rec.ID, URL: rec.URL})
	}
	writeJSON(w, http.StatusOK, historyResponse{
		URL:        items,
		Message:    "Successful",
		TotalCount: result.TotalCount,
		TotalPages: result.TotalPages,
	})
}

// DeleteHistory handles DELETE /music/history/{userId}/{id}?pageSize=
func (h *Handler) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	ownerID, err := pathInt(r, "userId")
	if err != nil {
		h.writeError(w, err, "")
		return
	}
	id, err := pathInt(r, "id")
	if err != nil {
		h.writeError(w, err, "")
		return
	}
	pageSize, err := queryInt(r, "pageSize", 0)
	if err != nil {
		h.writeError(w, err, "")
		return
	}

	result, err := h.history.Delete(r.Context(), ownerID, id, pageSize)
	if err != nil {
		msg := ""
		if errors.Is(err, domain.ErrNotFound) {
			msg = "No record found to delete"
		}
		h.writeError(w, err, msg)
		return
	}

	writeJSON(w, http.StatusOK, deleteResponse{
		Message:    "Successful",
		TotalPages: result.TotalPages,
		TotalCount: result.TotalCount,
	})
}

// GetMusic handles GET /music/{id}; ?encoding=base64 wraps the bytes in JSON.
func (h *Handler) GetMusic(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		h.writeError(w, err, "")
		return
	}

	rec, err := h.history.Get(r.Context(), id)
	if err != nil {
		msg := ""
		if errors.Is(err, domain.ErrNotFound) {
			msg = "Music record not found."
		}
		h.writeError(w, err, msg)
		return
	}

	switch r.URL.Query().Get("encoding") {
	case "":
		w.Header().Set("Content-Type", "audio/wav")
		w.Header().Set("Content-Length", strconv.Itoa(len(rec.Audio)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(rec.Audio)
	case "base64":
		writeJSON(w, http.StatusOK, audioResponse{Audio: base64.StdEncoding.EncodeToString(rec.Audio)})
	default:
		h.writeError(w, badRequest("unsupported encoding "+strconv.Quote(r.URL.Query().Get("encoding"))), "")
	}
}
