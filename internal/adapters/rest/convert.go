package rest

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/ewilliams-labs/notesynth/internal/core/domain"
)

const uploadField = "files"

type convertResponse struct {
	URL     string `json:"url"`
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// ConvertMusic handles POST /music_converter/{userId}
func (h *Handler) ConvertMusic(w http.ResponseWriter, r *http.Request) {
	ownerID, err := pathInt(r, "userId")
	if err != nil {
		h.writeError(w, err, "")
		return
	}

	batch, err := h.readBatch(w, r)
	if err != nil {
		h.writeError(w, err, "")
		return
	}

	rec, err := h.converter.Convert(r.Context(), ownerID, batch, requestOrigin(r))
	if err != nil {
		h.writeError(w, err, "")
		return
	}

	writeJSON(w, http.StatusOK, convertResponse{URL: rec.URL, Message: "Convert successful"})
}

// readBatch collects the multipart "files" parts in the order they were sent.
func (h *Handler) readBatch(w http.ResponseWriter, r *http.Request) (domain.UploadBatch, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.UploadBatch{}, badRequest(fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
		}
		return domain.UploadBatch{}, badRequest("invalid multipart body: " + err.Error())
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[uploadField]
	batch := domain.UploadBatch{Files: make([]domain.UploadFile, 0, len(headers))}
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return domain.UploadBatch{}, badRequest(fmt.Sprintf("open upload %q: %v", fh.Filename, err))
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return domain.UploadBatch{}, badRequest(fmt.Sprintf("read upload %q: %v", fh.Filename, err))
		}
		batch.Files = append(batch.Files, domain.UploadFile{Name: fh.Filename, Data: data})
	}
	return batch, nil
}

// requestOrigin is scheme://host as the client saw it.
func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := firstValue(r.Header.Get("X-Forwarded-Proto")); p != "" {
		scheme = p
	}
	host := r.Host
	if fh := firstValue(r.Header.Get("X-Forwarded-Host")); fh != "" {
		host = fh
	}
	return scheme + "://" + host
}

func firstValue(header string) string {
	v, _, _ := strings.Cut(header, ",")
	return strings.TrimSpace(v)
}

func pathInt(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, badRequest(fmt.Sprintf("invalid %s %q", name, raw))
	}
	return v, nil
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest(fmt.Sprintf("invalid %s %q", name, raw))
	}
	return v, nil
}
