// Package handler implements the HTTP API.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/jizusun/OpenBookCorner/internal/apperrors"
	"github.com/jizusun/OpenBookCorner/internal/middleware"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// respondJSON writes v as a JSON response body.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// decodeJSON parses the request body into v, rejecting unknown fields and
// oversized bodies.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return apperrors.New(apperrors.CodeInvalidRequest, "invalid request body")
	}
	return nil
}

// identity returns the authenticated identity or writes a 401.
func identity(w http.ResponseWriter, r *http.Request, errs *apperrors.Handler) (*middleware.Identity, bool) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		errs.WriteUnauthenticated(w, "missing session", r.Header.Get("X-Request-ID"))
		return nil, false
	}
	return id, true
}
