package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/agencia-vs/acreditaciones/internal/api/middleware"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "generated when missing", incoming: "", keep: false},
		{name: "client id kept", incoming: "req-123", keep: true},
		{name: "too long replaced", incoming: strings.Repeat("a", 200), keep: false},
		{name: "control characters replaced", incoming: "bad\nid", keep: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ctxID string
			inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctxID = middleware.GetRequestID(r.Context())
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set("X-Request-ID", tt.incoming)
			}
			w := httptest.NewRecorder()
			middleware.RequestID(inner).ServeHTTP(w, req)

			header := w.Header().Get("X-Request-ID")
			assert.Equal(t, header, ctxID)
			if tt.keep {
				assert.Equal(t, tt.incoming, header)
				return
			}
			_, err := uuid.Parse(header)
			assert.NoError(t, err)
		})
	}
}
