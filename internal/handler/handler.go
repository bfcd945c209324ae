package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"storefront/internal/model"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

var statusByCode = map[string]int{
	model.ErrCodeInvalidJSON:         http.StatusBadRequest,
	model.ErrCodeMissingPaymentParam: http.StatusBadRequest,
	model.ErrCodeSignatureMismatch:   http.StatusBadRequest,
	model.ErrCodeValidation:          http.StatusBadRequest,
	model.ErrCodeInvalidTransition:   http.StatusConflict,
	model.ErrCodeConflict:            http.StatusConflict,
	model.ErrCodeDuplicatePayment:    http.StatusConflict,
	model.ErrCodeOrderNotFound:       http.StatusNotFound,
	model.ErrCodeTaskNotFound:        http.StatusNotFound,
	model.ErrCodeUnauthorised:        http.StatusUnauthorized,
	model.ErrCodeForbidden:           http.StatusForbidden,
	model.ErrCodePersistence:         http.StatusInternalServerError,
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError maps err to a status and a standard error body. Errors that are
// not domain errors never leak their text.
func writeError(w http.ResponseWriter, r *http.Request, err error, logger zerolog.Logger) {
	code, message := model.ErrCodeInternalError, "internal server error"
	status := http.StatusInternalServerError

	var de *model.DomainError
	if errors.As(err, &de) {
		code, message = de.Code, de.Message
		if s, ok := statusByCode[de.Code]; ok {
			status = s
		}
	}

	requestID := chimw.GetReqID(r.Context())
	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).
		Str("request_id", requestID).
		Str("code", code).
		Int("status", status).
		Str("path", r.URL.Path).
		Msg("handler error")

	writeJSON(w, status, model.ErrorResponse{Error: code, Message: message, CorrelationID: requestID})
}

// decodeJSON reads a bounded JSON body into dst, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}, logger zerolog.Logger) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, model.NewDomainError(model.ErrCodeInvalidJSON, "invalid request body"), logger)
		return false
	}
	return true
}
