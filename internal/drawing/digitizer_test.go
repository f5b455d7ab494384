package drawing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"
	"time"

	"sitetrack/internal/cache"
	"sitetrack/internal/domain"
)

type fakeFiles struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{files: make(map[string][]byte)}
}

func (f *fakeFiles) put(path string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = data
}

func (f *fakeFiles) Read(path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[path]
	if !ok {
		return nil, errors.New("no such file")
	}
	return data, nil
}

func (f *fakeFiles) Remove(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[path]; !ok {
		return errors.New("no such file")
	}
	delete(f.files, path)
	return nil
}

func (f *fakeFiles) has(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[path]
	return ok
}

type captureBroadcaster struct {
	mu     sync.Mutex
	events []domain.Event
}

func (c *captureBroadcaster) Broadcast(evt domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

func (c *captureBroadcaster) all() []domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Event(nil), c.events...)
}

type fakeSnapshots struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{data: make(map[string][]byte)}
}

func (s *fakeSnapshots) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = raw
	return nil
}

func (s *fakeSnapshots) GetJSON(_ context.Context, key string, dest interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validLayout() domain.LayoutData {
	return domain.LayoutData{
		Zones: []domain.Zone{{
			ID:   "z1",
			Name: "Excavation",
			Coordinates: []domain.Coordinates{
				{Lat: 51.500, Lng: -0.120},
				{Lat: 51.501, Lng: -0.120},
				{Lat: 51.501, Lng: -0.119},
			},
			Type: "work",
		}},
		Boundaries: []domain.Boundary{{
			Type: domain.BoundaryFence,
			Coordinates: []domain.Coordinates{
				{Lat: 51.499, Lng: -0.122},
				{Lat: 51.502, Lng: -0.122},
				{Lat: 51.502, Lng: -0.118},
				{Lat: 51.499, Lng: -0.118},
			},
		}},
		Buildings: []domain.Building{{
			ID:   "b1",
			Name: "Site office",
			Coordinates: []domain.Coordinates{
				{Lat: 51.5000, Lng: -0.1210},
				{Lat: 51.5002, Lng: -0.1210},
				{Lat: 51.5002, Lng: -0.1208},
			},
			Floor: 1,
		}},
		Metadata: domain.LayoutMetadata{Scale: 100, Units: "m"},
	}
}

func layoutJSON(t *testing.T, ld domain.LayoutData) []byte {
	t.Helper()
	data, err := json.Marshal(ld)
	if err != nil {
		t.Fatalf("marshal layout: %v", err)
	}
	return data
}

func TestProcessAndGetRoundtrip(t *testing.T) {
	files := newFakeFiles()
	files.put("up/site.pdf", []byte("%PDF"))
	dig := New(files, nil, nil, testLogger())

	ld := validLayout()
	dm, err := dig.Process(context.Background(), "up/site.pdf", "P1", "site.pdf", layoutJSON(t, ld))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if dm.ProjectID != "P1" || dm.DrawingFile != "up/site.pdf" {
		t.Errorf("unexpected DrawingMap identity: %+v", dm)
	}
	if dm.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	got, ok := dig.Get("P1")
	if !ok {
		t.Fatal("Get(P1) returned not found")
	}
	if !reflect.DeepEqual(got.LayoutData, ld) {
		t.Errorf("stored layout differs from input:\ngot  %+v\nwant %+v", got.LayoutData, ld)
	}
}

func TestProcessRejectsTwoPointPolygon(t *testing.T) {
	dig := New(newFakeFiles(), nil, nil, testLogger())

	ld := validLayout()
	ld.Zones[0].Coordinates = ld.Zones[0].Coordinates[:2]

	_, err := dig.Process(context.Background(), "up/x", "P1", "x", layoutJSON(t, ld))

	var digitization *domain.DigitizationError
	if !errors.As(err, &digitization) {
		t.Fatalf("expected DigitizationError, got %v", err)
	}
	if _, ok := dig.Get("P1"); ok {
		t.Error("rejected drawing must not be stored")
	}
}

func TestProcessRejectsDuplicateZoneIDs(t *testing.T) {
	dig := New(newFakeFiles(), nil, nil, testLogger())

	ld := validLayout()
	dup := ld.Zones[0]
	ld.Zones = append(ld.Zones, dup)

	_, err := dig.Process(context.Background(), "up/x", "P1", "x", layoutJSON(t, ld))

	var digitization *domain.DigitizationError
	if !errors.As(err, &digitization) {
		t.Fatalf("expected DigitizationError, got %v", err)
	}
}

func TestProcessRejectsUnparseableLayout(t *testing.T) {
	dig := New(newFakeFiles(), nil, nil, testLogger())

	_, err := dig.Process(context.Background(), "up/x", "P1", "x", []byte("not json"))

	var digitization *domain.DigitizationError
	if !errors.As(err, &digitization) {
		t.Fatalf("expected DigitizationError, got %v", err)
	}
}

func TestProcessRequiresProjectID(t *testing.T) {
	dig := New(newFakeFiles(), nil, nil, testLogger())

	_, err := dig.Process(context.Background(), "up/x", "", "x", layoutJSON(t, validLayout()))

	var validation *domain.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestProcessFallsBackToStoredFile(t *testing.T) {
	files := newFakeFiles()
	files.put("up/layout.json", layoutJSON(t, validLayout()))
	dig := New(files, nil, nil, testLogger())

	dm, err := dig.Process(context.Background(), "up/layout.json", "P1", "layout.json", nil)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(dm.LayoutData.Zones) != 1 {
		t.Errorf("got %d zones, want 1", len(dm.LayoutData.Zones))
	}
}

func TestReplacementKeepsOneMapPerProject(t *testing.T) {
	files := newFakeFiles()
	files.put("up/first.json", []byte("x"))
	files.put("up/second.json", []byte("y"))
	dig := New(files, nil, nil, testLogger())

	first := validLayout()
	if _, err := dig.Process(context.Background(), "up/first.json", "P1", "first", layoutJSON(t, first)); err != nil {
		t.Fatalf("first Process failed: %v", err)
	}

	second := validLayout()
	second.Zones[0].Name = "Replaced"
	if _, err := dig.Process(context.Background(), "up/second.json", "P1", "second", layoutJSON(t, second)); err != nil {
		t.Fatalf("second Process failed: %v", err)
	}

	all := dig.All()
	if len(all) != 1 {
		t.Fatalf("All() = %d maps, want 1", len(all))
	}
	if all[0].LayoutData.Zones[0].Name != "Replaced" {
		t.Errorf("zone name = %q, want Replaced", all[0].LayoutData.Zones[0].Name)
	}
	if files.has("up/first.json") {
		t.Error("replaced drawing file should be removed")
	}
}

func TestDeleteRemovesMapAndEmitsEvent(t *testing.T) {
	files := newFakeFiles()
	files.put("up/a.json", []byte("x"))
	bc := &captureBroadcaster{}
	dig := New(files, nil, bc, testLogger())

	if _, err := dig.Process(context.Background(), "up/a.json", "P1", "a", layoutJSON(t, validLayout())); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if err := dig.Delete(context.Background(), "P1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := dig.Get("P1"); ok {
		t.Error("map still present after Delete")
	}
	if files.has("up/a.json") {
		t.Error("drawing file should be removed on Delete")
	}

	events := bc.all()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Name != domain.EventDrawingUpdated || events[1].Name != domain.EventDrawingDeleted {
		t.Errorf("event names = %q, %q", events[0].Name, events[1].Name)
	}
	if events[1].ProjectID != "P1" {
		t.Errorf("delete event projectId = %q, want P1", events[1].ProjectID)
	}

	if err := dig.Delete(context.Background(), "P1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestPersistAndRestore(t *testing.T) {
	files := newFakeFiles()
	files.put("up/a.json", []byte("x"))
	snaps := newFakeSnapshots()

	dig := New(files, snaps, nil, testLogger())
	if _, err := dig.Process(context.Background(), "up/a.json", "P1", "a", layoutJSON(t, validLayout())); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if _, ok := snaps.data[cache.KeyDrawingMaps]; !ok {
		t.Fatal("snapshot not persisted")
	}

	restored := New(files, snaps, nil, testLogger())
	if err := restored.Restore(context.Background()); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	dm, ok := restored.Get("P1")
	if !ok {
		t.Fatal("restored digitizer has no map for P1")
	}
	if len(dm.LayoutData.Zones) != 1 {
		t.Errorf("restored map has %d zones, want 1", len(dm.LayoutData.Zones))
	}
}
