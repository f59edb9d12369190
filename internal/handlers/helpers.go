package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Kamalbura/lms-sub001/internal/middleware"
	"github.com/Kamalbura/lms-sub001/internal/models"
	"github.com/Kamalbura/lms-sub001/internal/services"
	"github.com/Kamalbura/lms-sub001/internal/validation"
)

// Shared helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return errorRespWithFields(code, message, nil, r)
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			Fields:    fields,
			RequestID: middleware.GetRequestID(r.Context()),
		},
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr      *services.ValidationError
		notFoundErr        *services.NotFoundError
		unauthenticatedErr *services.UnauthenticatedError
		forbiddenErr       *services.ForbiddenError
		invalidStateErr    *services.InvalidStateError
		conflictErr        *services.ConflictError
		storageErr         *services.StorageError
	)

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorRespWithFields(services.CodeValidation, validationErr.Error(), validationErr.Fields, r))
	case errors.As(err, &notFoundErr):
		writeJSON(w, http.StatusNotFound, errorResp(services.CodeNotFound, notFoundErr.Message, r))
	case errors.As(err, &unauthenticatedErr):
		writeJSON(w, http.StatusUnauthorized, errorResp(services.CodeUnauthenticated, unauthenticatedErr.Message, r))
	case errors.As(err, &forbiddenErr):
		writeJSON(w, http.StatusForbidden, errorResp(services.CodeUnauthorized, forbiddenErr.Message, r))
	case errors.As(err, &invalidStateErr):
		writeJSON(w, http.StatusConflict, errorResp(services.CodeInvalidState, invalidStateErr.Message, r))
	case errors.As(err, &conflictErr):
		writeJSON(w, http.StatusConflict, errorResp(services.CodeConflict, conflictErr.Message, r))
	case errors.As(err, &storageErr):
		log.Printf("[handlers] %s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusServiceUnavailable, errorResp(services.CodeStorageUnavailable, services.PublicMessage(err), r))
	default:
		log.Printf("[handlers] %s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, errorResp(services.CodeInternal, "An unexpected error occurred", r))
	}
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// It writes the error response itself and reports whether the caller may continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v *validation.Validator, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp(services.CodeValidation, "Invalid request body", r))
		return false
	}
	if fields := v.Struct(dst); fields != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields(services.CodeValidation, "Validation failed", fields, r))
		return false
	}
	return true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields(services.CodeValidation, "Invalid id",
			map[string]string{name: name + " must be a valid UUID"}, r))
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return n
}
