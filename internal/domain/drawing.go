package domain

import (
	"fmt"
	"time"
)

// BoundaryType classifies a boundary polyline in a site layout
type BoundaryType string

const (
	BoundaryFence    BoundaryType = "fence"
	BoundaryBuilding BoundaryType = "building"
	BoundaryArea     BoundaryType = "area"
)

// Zone is a named area of the site
type Zone struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Coordinates []Coordinates `json:"coordinates"`
	Type        string        `json:"type,omitempty"`
}

// Boundary is a fence, building outline or area edge
type Boundary struct {
	Coordinates []Coordinates `json:"coordinates"`
	Type        BoundaryType  `json:"type"`
}

// Building is a structure footprint within the site
type Building struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Coordinates []Coordinates `json:"coordinates"`
	Floor       int           `json:"floor,omitempty"`
}

// LayoutMetadata carries optional capture-time drawing attributes
type LayoutMetadata struct {
	Scale       float64 `json:"scale,omitempty"`
	Units       string  `json:"units,omitempty"`
	Orientation float64 `json:"orientation,omitempty"`
}

// LayoutData is the structured spatial layout extracted from a site drawing
type LayoutData struct {
	Zones       []Zone         `json:"zones"`
	Boundaries  []Boundary     `json:"boundaries"`
	Buildings   []Building     `json:"buildings"`
	Coordinates []Coordinates  `json:"coordinates"`
	Metadata    LayoutMetadata `json:"metadata"`
}

// Validate enforces the layout invariants: every polygon has at least
// three points and ids are unique within their collection.
func (l *LayoutData) Validate() error {
	zoneIDs := make(map[string]struct{}, len(l.Zones))
	for _, z := range l.Zones {
		if len(z.Coordinates) < 3 {
			return &DigitizationError{Message: fmt.Sprintf("zone %q has %d points, polygons need at least 3", z.ID, len(z.Coordinates))}
		}
		if _, dup := zoneIDs[z.ID]; dup {
			return &DigitizationError{Message: fmt.Sprintf("duplicate zone id %q", z.ID)}
		}
		zoneIDs[z.ID] = struct{}{}
	}

	for i, b := range l.Boundaries {
		if len(b.Coordinates) < 3 {
			return &DigitizationError{Message: fmt.Sprintf("boundary %d has %d points, polygons need at least 3", i, len(b.Coordinates))}
		}
		switch b.Type {
		case BoundaryFence, BoundaryBuilding, BoundaryArea:
		default:
			return &DigitizationError{Message: fmt.Sprintf("boundary %d has invalid type %q", i, b.Type)}
		}
	}

	buildingIDs := make(map[string]struct{}, len(l.Buildings))
	for _, b := range l.Buildings {
		if len(b.Coordinates) < 3 {
			return &DigitizationError{Message: fmt.Sprintf("building %q has %d points, polygons need at least 3", b.ID, len(b.Coordinates))}
		}
		if _, dup := buildingIDs[b.ID]; dup {
			return &DigitizationError{Message: fmt.Sprintf("duplicate building id %q", b.ID)}
		}
		buildingIDs[b.ID] = struct{}{}
	}

	return nil
}

// Points returns every coordinate referenced by the layout.
func (l *LayoutData) Points() []Coordinates {
	var pts []Coordinates
	for _, z := range l.Zones {
		pts = append(pts, z.Coordinates...)
	}
	for _, b := range l.Boundaries {
		pts = append(pts, b.Coordinates...)
	}
	for _, b := range l.Buildings {
		pts = append(pts, b.Coordinates...)
	}
	pts = append(pts, l.Coordinates...)
	return pts
}

// DrawingMap is the digitized site drawing for one project.
// A second upload for the same project replaces the prior map.
type DrawingMap struct {
	ProjectID   string     `json:"projectId"`
	DrawingFile string     `json:"drawingFile"`
	LayoutData  LayoutData `json:"layoutData"`
	MapImage    string     `json:"mapImage,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}
