package cache

import "fmt"

// KeyDrawingMaps holds the full drawing-map collection, keyed by project.
const KeyDrawingMaps = "drawings:all"

// KeyGeocode keys a reverse-geocode result by its rounded coordinates;
// five decimals is about a metre, well under geocoder resolution.
func KeyGeocode(lat, lng float64) string {
	return fmt.Sprintf("geocode:%.5f:%.5f", lat, lng)
}
