package handler

import (
	"net/http"
	"time"

	"sitetrack/internal/drawing"
	"sitetrack/internal/hub"
	"sitetrack/internal/registry"
)

type HealthHandler struct {
	registry  *registry.Registry
	digitizer *drawing.Digitizer
	hub       *hub.Hub
}

func NewHealthHandler(reg *registry.Registry, dig *drawing.Digitizer, h *hub.Hub) *HealthHandler {
	return &HealthHandler{registry: reg, digitizer: dig, hub: h}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type ReadyResponse struct {
	Ready        bool      `json:"ready"`
	ActiveUsers  int       `json:"activeUsers"`
	TrackedUsers int       `json:"trackedUsers"`
	DrawingMaps  int       `json:"drawingMaps"`
	WSClients    int       `json:"wsClients"`
	ServerTime   time.Time `json:"serverTime"`
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ReadyResponse{
		Ready:        true,
		ActiveUsers:  h.registry.ActiveCount(),
		TrackedUsers: h.registry.Count(),
		DrawingMaps:  h.digitizer.Count(),
		WSClients:    h.hub.ClientCount(),
		ServerTime:   time.Now(),
	})
}
