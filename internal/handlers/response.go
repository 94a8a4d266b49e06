package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/creditsea/creditsea/internal/apperrors"
	"github.com/creditsea/creditsea/internal/middleware"
	"github.com/creditsea/creditsea/internal/validation"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Success bool                   `json:"success"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details []validation.FieldError `json:"details,omitempty"`
}

// responder carries what every handler needs to read requests and write
// JSON replies.
type responder struct {
	validator *validation.Validator
	logger    *logrus.Logger
}

func (h *responder) respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.WithError(err).Warn("Failed to write response")
	}
}

// respondWithError maps err to its status and the shared error body.
func (h *responder) respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperrors.KindOf(err)
	if kind == apperrors.KindInternal {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": r.Header.Get(middleware.RequestIDHeader),
		}).Error("Request failed")
	}

	h.respondWithJSON(w, kind.HTTPStatus(), ErrorResponse{
		Code:    kind.String(),
		Message: apperrors.Message(err),
	})
}

func (h *responder) respondWithValidation(w http.ResponseWriter, err error) {
	h.respondWithJSON(w, http.StatusBadRequest, ErrorResponse{
		Code:    apperrors.KindValidation.String(),
		Message: validation.Summary(err),
		Details: validation.ToFieldErrors(err),
	})
}

// decode reads a JSON body into dst and runs struct validation. It writes
// the error response itself and reports whether the handler may continue.
func (h *responder) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if !h.decodeJSON(w, r, dst) {
		return false
	}
	if err := h.validator.Validate(dst); err != nil {
		h.respondWithValidation(w, err)
		return false
	}
	return true
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst unchanged.
func (h *responder) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		h.respondWithError(w, r, apperrors.Validation("Invalid request body"))
		return false
	}
	return true
}

func (h *responder) identity(w http.ResponseWriter, r *http.Request) (string, bool) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.respondWithError(w, r, apperrors.Unauthorized("No token provided"))
		return "", false
	}
	return identity.UserID, true
}
