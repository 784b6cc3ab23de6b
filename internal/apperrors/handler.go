package apperrors

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// ErrorResponse represents the standard error response format.
type ErrorResponse struct {
	Status    string `json:"status"`
	ErrorCode Code   `json:"error_code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Handler writes application errors as HTTP responses.
type Handler struct {
	logger *zap.Logger
}

// NewHandler creates a new error handler.
func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{logger: logger}
}

// HandleError maps err to a status code and writes the error envelope.
func (h *Handler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	code := CodeOf(err)
	requestID := r.Header.Get("X-Request-ID")

	if code == CodeInternalError {
		h.logger.Error("internal error",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID),
			zap.Error(err))
	}

	h.WriteErrorResponse(w, HTTPStatus(code), code, MessageOf(err), requestID)
}

// WriteErrorResponse writes a formatted error response.
func (h *Handler) WriteErrorResponse(w http.ResponseWriter, statusCode int, errorCode Code, message string, requestID string) {
	h.logger.Warn("HTTP error response",
		zap.Int("status_code", statusCode),
		zap.String("error_code", string(errorCode)),
		zap.String("message", message),
		zap.String("request_id", requestID),
	)

	resp := ErrorResponse{
		Status:    "error",
		ErrorCode: errorCode,
		Message:   message,
		RequestID: requestID,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

// WriteValidationError writes a validation error response.
func (h *Handler) WriteValidationError(w http.ResponseWriter, message string, requestID string) {
	h.WriteErrorResponse(w, http.StatusBadRequest, CodeInvalidRequest, message, requestID)
}

// WriteUnauthenticated writes an authentication failure response.
func (h *Handler) WriteUnauthenticated(w http.ResponseWriter, message string, requestID string) {
	h.WriteErrorResponse(w, http.StatusUnauthorized, CodeUnauthenticated, message, requestID)
}

// WriteForbidden writes an authorization failure response.
func (h *Handler) WriteForbidden(w http.ResponseWriter, message string, requestID string) {
	h.WriteErrorResponse(w, http.StatusForbidden, CodeForbidden, message, requestID)
}

// WriteRateLimitedError writes a rate limit exceeded response.
func (h *Handler) WriteRateLimitedError(w http.ResponseWriter, requestID string) {
	h.WriteErrorResponse(w, http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded", requestID)
}
