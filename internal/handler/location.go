package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"sitetrack/internal/domain"
	"sitetrack/internal/middleware"
	"sitetrack/internal/registry"
)

type LocationHandler struct {
	registry *registry.Registry
}

func NewLocationHandler(reg *registry.Registry) *LocationHandler {
	return &LocationHandler{registry: reg}
}

type updateLocationRequest struct {
	UserID      string             `json:"userId,omitempty"`
	Coordinates domain.Coordinates `json:"coordinates"`
	Role        string             `json:"role"`
	ProjectID   string             `json:"projectId,omitempty"`
	UserName    string             `json:"userName,omitempty"`
}

type activeUsersResponse struct {
	Users      []domain.ActiveUser `json:"users"`
	Count      int                 `json:"count"`
	ServerTime time.Time           `json:"serverTime"`
}

// UpdateLocation handles POST /v1/location. When the auth middleware
// ran, the caller's verified identity overrides any userId in the body.
func (h *LocationHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req updateLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID := req.UserID
	userName := req.UserName
	if identity, ok := middleware.IdentityFrom(r.Context()); ok {
		userID = identity.UserID
		if userName == "" {
			userName = identity.Name
		}
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	loc, err := h.registry.Update(userID, req.Coordinates, role, req.ProjectID, userName)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, loc)
}

// ListActive handles GET /v1/location/active?projectId=
func (h *LocationHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	users := h.registry.ActiveUsers(r.URL.Query().Get("projectId"))

	respondJSON(w, http.StatusOK, activeUsersResponse{
		Users:      users,
		Count:      len(users),
		ServerTime: time.Now(),
	})
}

// GetUser handles GET /v1/location/user/{userId}. No staleness filter:
// callers get the last known record however old it is.
func (h *LocationHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "missing userId")
		return
	}

	loc, ok := h.registry.Get(userID)
	if !ok {
		respondError(w, http.StatusNotFound, "user location not found")
		return
	}

	respondJSON(w, http.StatusOK, loc)
}

// ListByRole handles GET /v1/location/role/{role}
func (h *LocationHandler) ListByRole(w http.ResponseWriter, r *http.Request) {
	role, err := domain.ParseRole(r.PathValue("role"))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	users := h.registry.ByRole(role)

	respondJSON(w, http.StatusOK, activeUsersResponse{
		Users:      users,
		Count:      len(users),
		ServerTime: time.Now(),
	})
}
