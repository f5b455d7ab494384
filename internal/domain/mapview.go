package domain

// MapViewType distinguishes drawing-derived views from real-world views
type MapViewType string

const (
	MapViewVirtual MapViewType = "virtual"
	MapViewReal    MapViewType = "real"
)

// MapView tells a map widget what to show. Computed per request,
// never persisted.
type MapView struct {
	Type   MapViewType  `json:"type"`
	Center Coordinates  `json:"center"`
	Zoom   int          `json:"zoom"`
	Bounds *BoundingBox `json:"bounds,omitempty"`
}

// BoundingBox represents a geographic rectangle
type BoundingBox struct {
	MinLat float64 `json:"minLat"`
	MaxLat float64 `json:"maxLat"`
	MinLng float64 `json:"minLng"`
	MaxLng float64 `json:"maxLng"`
}

// Contains checks if a point is within the bounding box
func (bb *BoundingBox) Contains(lat, lng float64) bool {
	return lat >= bb.MinLat && lat <= bb.MaxLat &&
		lng >= bb.MinLng && lng <= bb.MaxLng
}

// ContainsBox reports whether other lies fully inside bb.
func (bb *BoundingBox) ContainsBox(other *BoundingBox) bool {
	return other.MinLat >= bb.MinLat && other.MaxLat <= bb.MaxLat &&
		other.MinLng >= bb.MinLng && other.MaxLng <= bb.MaxLng
}
