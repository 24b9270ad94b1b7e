package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"validation-viewer/core/models"
	"validation-viewer/core/viewer"
)

// ErrorResponse is the error payload of every endpoint
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Error codes
const (
	CodeNoComparison        = "no_comparison"
	CodeReferenceUnresolved = "reference_unresolved"
	CodeUnknownRevision     = "unknown_revision"
	CodeUnknownMode         = "unknown_mode"
	CodeInvalidRequest      = "invalid_request"
	CodeGenerationFailed    = "generation_failed"
	CodeArtifactFetchFailed = "artifact_fetch_failed"
	CodeInvalidBackendData  = "invalid_backend_data"
	CodeBackendUnavailable  = "backend_unavailable"
	CodeCanceled            = "canceled"
	CodeNotFound            = "not_found"
	CodeInternal            = "internal"
)

// classify maps an error to its HTTP status and error code
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrNoComparison):
		return http.StatusBadRequest, CodeNoComparison
	case errors.Is(err, models.ErrReferenceUnresolved):
		return http.StatusBadRequest, CodeReferenceUnresolved
	case errors.Is(err, models.ErrUnknownRevision):
		return http.StatusBadRequest, CodeUnknownRevision
	case errors.Is(err, models.ErrUnknownMode):
		return http.StatusBadRequest, CodeUnknownMode
	case viewer.IsNotFound(err):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, models.ErrGenerationFailed):
		return http.StatusBadGateway, CodeGenerationFailed
	case errors.Is(err, models.ErrArtifactFetchFailed):
		return http.StatusBadGateway, CodeArtifactFetchFailed
	case models.IsDataShape(err):
		return http.StatusBadGateway, CodeInvalidBackendData
	case models.IsTransport(err):
		return http.StatusBadGateway, CodeBackendUnavailable
	case errors.Is(err, context.Canceled):
		return http.StatusConflict, CodeCanceled
	}
	var input *models.UserInputError
	if errors.As(err, &input) {
		return http.StatusBadRequest, CodeInvalidRequest
	}
	return http.StatusInternalServerError, CodeInternal
}

// warning turns a recoverable error into a payload reported next to the result
func warning(err error) *ErrorResponse {
	if err == nil {
		return nil
	}
	_, code := classify(err)
	return &ErrorResponse{Error: err.Error(), Code: code}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError || status == http.StatusBadGateway {
		logger.Error("request failed", "code", code, "error", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg, Code: CodeInvalidRequest})
}
