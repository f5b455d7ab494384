package drawing

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"sitetrack/internal/cache"
	"sitetrack/internal/domain"
)

// FileStore is the narrow slice of the file-storage collaborator the
// digitizer needs.
type FileStore interface {
	Read(path string) ([]byte, error)
	Remove(path string) error
}

// Broadcaster receives drawing:updated / drawing:deleted events.
// A nil broadcaster disables emission.
type Broadcaster interface {
	Broadcast(evt domain.Event)
}

// SnapshotStore persists the drawing-map collection across restarts.
// Optional; nil disables persistence.
type SnapshotStore interface {
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
}

// Digitizer turns uploaded site drawings into queryable DrawingMaps,
// one per project. Replacement is atomic: readers see either the old
// map or the new one, never a partial write.
type Digitizer struct {
	mu   sync.RWMutex
	maps map[string]*domain.DrawingMap

	files       FileStore
	snapshots   SnapshotStore
	broadcaster Broadcaster
	logger      *slog.Logger
}

func New(files FileStore, snapshots SnapshotStore, broadcaster Broadcaster, logger *slog.Logger) *Digitizer {
	return &Digitizer{
		maps:        make(map[string]*domain.DrawingMap),
		files:       files,
		snapshots:   snapshots,
		broadcaster: broadcaster,
		logger:      logger.With("component", "digitizer"),
	}
}

// Process validates the supplied layout and stores it as the project's
// DrawingMap, replacing any prior one. When layout is nil the stored
// drawing file itself is parsed as layout JSON.
func (d *Digitizer) Process(ctx context.Context, filePath, projectID, originalName string, layout []byte) (*domain.DrawingMap, error) {
	if projectID == "" {
		return nil, &domain.ValidationError{Field: "projectId", Message: "projectId is required"}
	}

	if layout == nil {
		data, err := d.files.Read(filePath)
		if err != nil {
			return nil, &domain.DigitizationError{Message: "reading drawing file", Err: err}
		}
		layout = data
	}

	var ld domain.LayoutData
	if err := json.Unmarshal(layout, &ld); err != nil {
		return nil, &domain.DigitizationError{Message: "parsing layout data", Err: err}
	}
	if err := ld.Validate(); err != nil {
		return nil, err
	}

	dm := &domain.DrawingMap{
		ProjectID:   projectID,
		DrawingFile: filePath,
		LayoutData:  ld,
		CreatedAt:   time.Now(),
	}

	d.mu.Lock()
	old := d.maps[projectID]
	d.maps[projectID] = dm
	d.mu.Unlock()

	if old != nil && old.DrawingFile != "" && old.DrawingFile != dm.DrawingFile {
		if err := d.files.Remove(old.DrawingFile); err != nil {
			d.logger.Warn("failed to remove replaced drawing file", "path", old.DrawingFile, "error", err)
		}
	}

	d.persist(ctx)
	d.logger.Info("drawing processed",
		"project_id", projectID,
		"original_name", originalName,
		"zones", len(ld.Zones),
		"boundaries", len(ld.Boundaries),
		"buildings", len(ld.Buildings),
	)

	if d.broadcaster != nil {
		d.broadcaster.Broadcast(domain.Event{
			Name:      domain.EventDrawingUpdated,
			ProjectID: projectID,
			Payload:   *dm,
		})
	}

	result := *dm
	return &result, nil
}

// Get returns the project's current DrawingMap.
func (d *Digitizer) Get(projectID string) (*domain.DrawingMap, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	dm, ok := d.maps[projectID]
	if !ok {
		return nil, false
	}
	copy := *dm
	return &copy, true
}

// All returns every stored DrawingMap, one per project.
func (d *Digitizer) All() []*domain.DrawingMap {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]*domain.DrawingMap, 0, len(d.maps))
	for _, dm := range d.maps {
		copy := *dm
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ProjectID < result[j].ProjectID
	})
	return result
}

// Count returns the number of stored drawing maps.
func (d *Digitizer) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.maps)
}

// Delete removes the project's DrawingMap and its stored file.
func (d *Digitizer) Delete(ctx context.Context, projectID string) error {
	d.mu.Lock()
	dm, ok := d.maps[projectID]
	if !ok {
		d.mu.Unlock()
		return domain.ErrNotFound
	}
	delete(d.maps, projectID)
	d.mu.Unlock()

	if dm.DrawingFile != "" {
		if err := d.files.Remove(dm.DrawingFile); err != nil {
			d.logger.Warn("failed to remove drawing file", "path", dm.DrawingFile, "error", err)
		}
	}

	d.persist(ctx)
	d.logger.Info("drawing deleted", "project_id", projectID)

	if d.broadcaster != nil {
		d.broadcaster.Broadcast(domain.Event{
			Name:      domain.EventDrawingDeleted,
			ProjectID: projectID,
			Payload:   map[string]string{"projectId": projectID},
		})
	}
	return nil
}

// Restore reloads the drawing-map collection persisted by a previous
// run. A missing snapshot is not an error.
func (d *Digitizer) Restore(ctx context.Context) error {
	if d.snapshots == nil {
		return nil
	}

	var maps map[string]*domain.DrawingMap
	found, err := d.snapshots.GetJSON(ctx, cache.KeyDrawingMaps, &maps)
	if err != nil {
		return err
	}
	if !found || len(maps) == 0 {
		return nil
	}

	d.mu.Lock()
	d.maps = maps
	d.mu.Unlock()

	d.logger.Info("restored drawing maps", "count", len(maps))
	return nil
}

func (d *Digitizer) persist(ctx context.Context) {
	if d.snapshots == nil {
		return
	}

	d.mu.RLock()
	maps := make(map[string]*domain.DrawingMap, len(d.maps))
	for id, dm := range d.maps {
		maps[id] = dm
	}
	d.mu.RUnlock()

	if err := d.snapshots.SetJSON(ctx, cache.KeyDrawingMaps, maps, 0); err != nil {
		d.logger.Warn("failed to persist drawing maps", "error", err)
	}
}
