package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"sitetrack/internal/domain"
	"sitetrack/internal/drawing"
	"sitetrack/internal/mapview"
)

// Uploads is the file-storage collaborator slice used while accepting
// drawing uploads.
type Uploads interface {
	Save(r io.Reader, originalName string) (string, error)
	Remove(path string) error
}

type MapsHandler struct {
	digitizer *drawing.Digitizer
	generator *mapview.Generator
	uploads   Uploads
}

func NewMapsHandler(dig *drawing.Digitizer, gen *mapview.Generator, uploads Uploads) *MapsHandler {
	return &MapsHandler{digitizer: dig, generator: gen, uploads: uploads}
}

const maxDrawingUpload = 32 << 20 // 32 MiB

// UploadDrawing handles POST /v1/maps/drawings (multipart). Parts:
// projectId (required), file (required), layout (optional layout JSON;
// when absent the uploaded file itself must be layout JSON).
func (h *MapsHandler) UploadDrawing(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxDrawingUpload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	projectID := r.FormValue("projectId")
	if projectID == "" {
		respondError(w, http.StatusBadRequest, "projectId is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "drawing file is required")
		return
	}
	defer file.Close()

	path, err := h.uploads.Save(file, header.Filename)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to store drawing file")
		return
	}

	var layout []byte
	if lv := r.FormValue("layout"); lv != "" {
		layout = []byte(lv)
	}

	dm, err := h.digitizer.Process(r.Context(), path, projectID, header.Filename, layout)
	if err != nil {
		// The stored file is useless without a valid layout.
		_ = h.uploads.Remove(path)
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dm)
}

type drawingMapsResponse struct {
	Maps       []*domain.DrawingMap `json:"maps"`
	Count      int                  `json:"count"`
	ServerTime time.Time            `json:"serverTime"`
}

// GetDrawings handles GET /v1/maps/drawings?projectId=. Without a
// projectId it lists every stored map.
func (h *MapsHandler) GetDrawings(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("projectId")
	if projectID == "" {
		maps := h.digitizer.All()
		respondJSON(w, http.StatusOK, drawingMapsResponse{
			Maps:       maps,
			Count:      len(maps),
			ServerTime: time.Now(),
		})
		return
	}

	dm, ok := h.digitizer.Get(projectID)
	if !ok {
		respondError(w, http.StatusNotFound, "no drawing map for project")
		return
	}
	respondJSON(w, http.StatusOK, dm)
}

// DeleteDrawing handles DELETE /v1/maps/drawings/{projectId}
func (h *MapsHandler) DeleteDrawing(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("projectId")
	if projectID == "" {
		respondError(w, http.StatusBadRequest, "missing projectId")
		return
	}

	if err := h.digitizer.Delete(r.Context(), projectID); err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type realWorldMapRequest struct {
	Center domain.Coordinates `json:"center"`
	Zoom   int                `json:"zoom"`
}

// RealWorldMap handles POST /v1/maps/real-world
func (h *MapsHandler) RealWorldMap(w http.ResponseWriter, r *http.Request) {
	var req realWorldMapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.generator.RealWorld(req.Center, req.Zoom)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// VirtualMap handles GET /v1/maps/virtual?projectId=
func (h *MapsHandler) VirtualMap(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("projectId")
	if projectID == "" {
		respondError(w, http.StatusBadRequest, "projectId is required")
		return
	}

	dm, ok := h.digitizer.Get(projectID)
	if !ok {
		respondError(w, http.StatusNotFound, "no drawing map for project")
		return
	}

	view, err := h.generator.Virtual(dm)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

type reverseGeocodeRequest struct {
	Center domain.Coordinates `json:"center"`
}

type reverseGeocodeResponse struct {
	Address *string `json:"address"`
}

// ReverseGeocode handles POST /v1/maps/reverse-geocode. Always 200 on
// valid input; address is null when the geocoder fails or knows nothing.
func (h *MapsHandler) ReverseGeocode(w http.ResponseWriter, r *http.Request) {
	var req reverseGeocodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	address, err := h.generator.ReverseGeocode(r.Context(), req.Center)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, reverseGeocodeResponse{Address: address})
}
