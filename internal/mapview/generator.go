package mapview

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sitetrack/internal/cache"
	"sitetrack/internal/domain"
)

const (
	MinZoom = 1
	MaxZoom = 20

	defaultVirtualZoom = 16
	geocodeCacheTTL    = 24 * time.Hour
)

// Geocoder is the external reverse-geocoding collaborator.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lng float64) (string, error)
}

// ResultCache memoizes geocode lookups. Optional; nil disables caching.
type ResultCache interface {
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
}

// Generator answers map-view point queries. It holds no mutable state;
// every view is computed per request.
type Generator struct {
	geocoder Geocoder
	cache    ResultCache
	timeout  time.Duration
	logger   *slog.Logger
}

func NewGenerator(geocoder Geocoder, cache ResultCache, timeout time.Duration, logger *slog.Logger) *Generator {
	return &Generator{
		geocoder: geocoder,
		cache:    cache,
		timeout:  timeout,
		logger:   logger.With("component", "mapview"),
	}
}

// RealWorld computes the view for a real-world map centered on the
// given point.
func (g *Generator) RealWorld(center domain.Coordinates, zoom int) (*domain.MapView, error) {
	if err := center.Validate(); err != nil {
		return nil, err
	}
	if zoom < MinZoom || zoom > MaxZoom {
		return nil, &domain.ValidationError{
			Field:   "zoom",
			Message: fmt.Sprintf("invalid zoom %d: must be between %d and %d", zoom, MinZoom, MaxZoom),
		}
	}

	return &domain.MapView{
		Type:   domain.MapViewReal,
		Center: center,
		Zoom:   zoom,
		Bounds: viewportBounds(center, zoom),
	}, nil
}

// Virtual computes the view that frames a project's digitized layout:
// centered on the layout extent, zoomed as far in as still shows all
// of it.
func (g *Generator) Virtual(dm *domain.DrawingMap) (*domain.MapView, error) {
	pts := dm.LayoutData.Points()
	if len(pts) == 0 {
		return nil, &domain.ValidationError{Field: "layoutData", Message: "layout has no coordinates to frame"}
	}

	extent := &domain.BoundingBox{
		MinLat: pts[0].Lat, MaxLat: pts[0].Lat,
		MinLng: pts[0].Lng, MaxLng: pts[0].Lng,
	}
	for _, p := range pts[1:] {
		if p.Lat < extent.MinLat {
			extent.MinLat = p.Lat
		}
		if p.Lat > extent.MaxLat {
			extent.MaxLat = p.Lat
		}
		if p.Lng < extent.MinLng {
			extent.MinLng = p.Lng
		}
		if p.Lng > extent.MaxLng {
			extent.MaxLng = p.Lng
		}
	}

	center := domain.Coordinates{
		Lat: (extent.MinLat + extent.MaxLat) / 2,
		Lng: (extent.MinLng + extent.MaxLng) / 2,
	}

	zoom := MinZoom
	bounds := viewportBounds(center, MinZoom)
	for z := MaxZoom; z >= MinZoom; z-- {
		b := viewportBounds(center, z)
		if b.ContainsBox(extent) {
			zoom, bounds = z, b
			break
		}
	}
	if zoom > defaultVirtualZoom && extent.MinLat == extent.MaxLat && extent.MinLng == extent.MaxLng {
		// A degenerate single-point extent would zoom all the way in.
		zoom = defaultVirtualZoom
		bounds = viewportBounds(center, zoom)
	}

	return &domain.MapView{
		Type:   domain.MapViewVirtual,
		Center: center,
		Zoom:   zoom,
		Bounds: bounds,
	}, nil
}

// ReverseGeocode resolves the nearest address for a point. Best-effort:
// collaborator failures and misses resolve to nil, never an error, so a
// map view request cannot fail on geocoding.
func (g *Generator) ReverseGeocode(ctx context.Context, center domain.Coordinates) (*string, error) {
	if err := center.Validate(); err != nil {
		return nil, err
	}

	key := cache.KeyGeocode(center.Lat, center.Lng)
	if g.cache != nil {
		var cached string
		if found, err := g.cache.GetJSON(ctx, key, &cached); err == nil && found {
			return &cached, nil
		}
	}

	if g.geocoder == nil {
		return nil, nil
	}

	// The timeout bounds only the provider call; a reply landing near
	// the deadline must still make it into the cache.
	reqCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	address, err := g.geocoder.Reverse(reqCtx, center.Lat, center.Lng)
	if err != nil {
		upstream := &domain.UpstreamError{Provider: "geocoder", Err: err}
		g.logger.Warn("reverse geocode failed", "lat", center.Lat, "lng", center.Lng, "error", upstream)
		return nil, nil
	}
	if address == "" {
		return nil, nil
	}

	if g.cache != nil {
		if err := g.cache.SetJSON(ctx, key, address, geocodeCacheTTL); err != nil {
			g.logger.Debug("failed to cache geocode result", "error", err)
		}
	}
	return &address, nil
}
