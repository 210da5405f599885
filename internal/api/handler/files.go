package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/agencia-vs/acreditaciones/internal/api/response"
	"github.com/agencia-vs/acreditaciones/internal/storage"
)

// multipartOverhead is the allowance for multipart headers on top of the file limit.
const multipartOverhead = 64 << 10

// readFormFile reads and validates the multipart "file" field. It writes the
// error response and returns false when the upload is rejected.
func readFormFile(w http.ResponseWriter, r *http.Request, limit int64, accept []string, requestID string) (*storage.Upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	file, _, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.Err(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", (&storage.TooLargeError{Limit: limit}).Error(), requestID)
			return nil, false
		}
		response.Err(w, http.StatusBadRequest, "INVALID_UPLOAD", "Request must be multipart/form-data with a file field", requestID)
		return nil, false
	}
	defer file.Close()

	u, err := storage.ReadUpload(file, limit, accept)
	if err != nil {
		if writeError(w, err, requestID) {
			return nil, false
		}
		slog.Error("failed to read upload", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to read upload", requestID)
		return nil, false
	}
	return u, true
}

// serveObject streams a stored file.
func serveObject(w http.ResponseWriter, r *http.Request, store storage.Store, key, requestID string) {
	rc, obj, err := store.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "File not found", requestID)
			return
		}
		slog.Error("failed to open stored file", "error", err, "key", key)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to read file", requestID)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, "", obj.ModTime, rs)
		return
	}
	w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		slog.Error("failed to stream stored file", "error", err, "key", key)
	}
}
