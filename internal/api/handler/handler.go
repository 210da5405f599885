// Package handler implements the HTTP endpoints of the accreditation API.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/agencia-vs/acreditaciones/internal/api/response"
)

const timeLayout = "2006-01-02T15:04:05Z"

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

// decodeJSON reads the request body into dst. It writes the 400 response and
// returns false when the body is not valid JSON.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, requestID string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return false
	}
	return true
}

// urlUUID parses the named route parameter. It writes the 400 response and
// returns false when the parameter is not a UUID.
func urlUUID(w http.ResponseWriter, r *http.Request, name, requestID string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", name+" must be a valid UUID", requestID)
		return uuid.Nil, false
	}
	return id, true
}

// pagination reads page and limit query parameters, defaulting to 1 and 20.
func pagination(w http.ResponseWriter, r *http.Request, requestID string) (page, limit int, ok bool) {
	page, limit = 1, 20
	if v := r.URL.Query().Get("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p < 1 {
			response.Err(w, http.StatusBadRequest, "INVALID_PARAM", "page must be a positive integer", requestID)
			return 0, 0, false
		}
		page = p
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 || l > 500 {
			response.Err(w, http.StatusBadRequest, "INVALID_PARAM", "limit must be an integer between 1 and 500", requestID)
			return 0, 0, false
		}
		limit = l
	}
	return page, limit, true
}
