package mapview

import (
	"math"

	"sitetrack/internal/domain"
)

// Web Mercator limits: latitudes beyond these project outside the
// square world map.
const (
	maxMercatorLat = 85.05112878
	minMercatorLat = -85.05112878
)

// project maps WGS84 degrees onto the unit Web Mercator square.
func project(lat, lng float64) (x, y float64) {
	if lat > maxMercatorLat {
		lat = maxMercatorLat
	}
	if lat < minMercatorLat {
		lat = minMercatorLat
	}

	x = (lng + 180.0) / 360.0
	latRad := lat * math.Pi / 180.0
	y = (1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0
	return x, y
}

// unproject maps unit-square coordinates back to WGS84 degrees.
func unproject(x, y float64) (lat, lng float64) {
	lng = x*360.0 - 180.0
	latRad := math.Atan(math.Sinh(math.Pi * (1.0 - 2.0*y)))
	lat = latRad * 180.0 / math.Pi
	return lat, lng
}

// viewportBounds returns the rectangle one map tile wide centered on
// the given point. The span halves with every zoom step, so bounds
// shrink monotonically as zoom increases.
func viewportBounds(center domain.Coordinates, zoom int) *domain.BoundingBox {
	half := 1.0 / math.Pow(2, float64(zoom)+1)

	cx, cy := project(center.Lat, center.Lng)

	minX := clamp01(cx - half)
	maxX := clamp01(cx + half)
	minY := clamp01(cy - half)
	maxY := clamp01(cy + half)

	// y grows southward in Mercator space
	maxLat, minLng := unproject(minX, minY)
	minLat, maxLng := unproject(maxX, maxY)

	return &domain.BoundingBox{
		MinLat: minLat,
		MaxLat: maxLat,
		MinLng: minLng,
		MaxLng: maxLng,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
