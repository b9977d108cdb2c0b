package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/notesynth/internal/core/domain"
)

type errorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers with the {error:true, message} body. The status code
// follows the error kind.
func (h *Handler) writeError(w http.ResponseWriter, err error, message string) {
	status := statusFor(err)
	if message == "" {
		message = err.Error()
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: true, Message: message})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInputDecode):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDetectionModel),
		errors.Is(err, domain.ErrClassificationModel),
		errors.Is(err, domain.ErrSynthesisEngine):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// badRequest marks malformed HTTP input as an input error.
func badRequest(msg string) error {
	return &requestError{msg: msg}
}

type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func (e *requestError) Is(target error) bool { return target == domain.ErrInputDecode }
