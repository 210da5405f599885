package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/agencia-vs/acreditaciones/internal/api/middleware"
	"github.com/agencia-vs/acreditaciones/internal/api/response"
	"github.com/agencia-vs/acreditaciones/internal/k8s"
)

// DBPinger checks database reachability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles the GET /health endpoint.
type HealthHandler struct {
	k8sChecker k8s.HealthChecker
	db         DBPinger
	version    string
}

// NewHealthHandler creates a new HealthHandler. db may be nil.
func NewHealthHandler(checker k8s.HealthChecker, db DBPinger, version string) *HealthHandler {
	if checker == nil {
		checker = k8s.Disabled{}
	}
	return &HealthHandler{
		k8sChecker: checker,
		db:         db,
		version:    version,
	}
}

type kubernetesStatus struct {
	Connected bool    `json:"connected"`
	Version   *string `json:"version"`
}

type databaseStatus struct {
	Connected bool `json:"connected"`
}

type healthData struct {
	Status     string           `json:"status"`
	Version    string           `json:"version"`
	Database   databaseStatus   `json:"database"`
	Kubernetes kubernetesStatus `json:"kubernetes"`
}

// ServeHTTP handles the health check request. A missing cluster only
// degrades the service; an unreachable database makes it unhealthy.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	connectivity := h.k8sChecker.CheckConnectivity(r.Context())

	status := "healthy"
	code := http.StatusOK
	var k8sVersion *string

	if connectivity.Connected {
		k8sVersion = &connectivity.Version
	} else {
		status = "degraded"
	}

	dbConnected := true
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			slog.Error("database health check failed", "error", err)
			dbConnected = false
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}

	data := healthData{
		Status:   status,
		Version:  h.version,
		Database: databaseStatus{Connected: dbConnected},
		Kubernetes: kubernetesStatus{
			Connected: connectivity.Connected,
			Version:   k8sVersion,
		},
	}

	response.Success(w, code, data, requestID)
}
