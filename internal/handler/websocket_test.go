package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"sitetrack/internal/domain"
	"sitetrack/internal/hub"
	"sitetrack/internal/registry"
)

type wsTestEnv struct {
	server   *httptest.Server
	hub      *hub.Hub
	registry *registry.Registry
}

func newWSTestEnv(t *testing.T) *wsTestEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	wsHub := hub.NewHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go wsHub.Run(ctx)

	reg := registry.New(5*time.Minute, wsHub)
	h := NewWSHandler(wsHub, reg, 30*time.Second, 5*time.Second, logger)

	server := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	t.Cleanup(server.Close)

	return &wsTestEnv{server: server, hub: wsHub, registry: reg}
}

func (e *wsTestEnv) dial(t *testing.T, ctx context.Context) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func sendOp(t *testing.T, ctx context.Context, conn *websocket.Conn, op, projectID string) {
	t.Helper()
	msg, err := json.Marshal(wsRequest{Op: op, ProjectID: projectID})
	if err != nil {
		t.Fatalf("marshal op: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
		t.Fatalf("write %s: %v", op, err)
	}
}

func readEvent(t *testing.T, ctx context.Context, conn *websocket.Conn) domain.Event {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, data, err := conn.Read(readCtx)
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	var evt domain.Event
	if err := json.Unmarshal(data, &evt); err != nil {
		t.Fatalf("decode event %q: %v", data, err)
	}
	return evt
}

func TestWSSubscribeReceivesSnapshotAndUpdates(t *testing.T) {
	env := newWSTestEnv(t)
	ctx := context.Background()

	if _, err := env.registry.Update("worker-1", domain.Coordinates{Lat: 51.5, Lng: -0.12}, domain.RoleLabour, "P1", "Sam"); err != nil {
		t.Fatalf("seed registry: %v", err)
	}

	conn := env.dial(t, ctx)
	sendOp(t, ctx, conn, "subscribe", "P1")

	snapshot := readEvent(t, ctx, conn)
	if snapshot.Name != "snapshot" || snapshot.ProjectID != "P1" {
		t.Fatalf("first event = %+v, want snapshot for P1", snapshot)
	}
	payload, err := json.Marshal(snapshot.Payload)
	if err != nil {
		t.Fatalf("re-marshal payload: %v", err)
	}
	var snap snapshotPayload
	if err := json.Unmarshal(payload, &snap); err != nil {
		t.Fatalf("decode snapshot payload: %v", err)
	}
	if len(snap.Users) != 1 || snap.Users[0].UserID != "worker-1" {
		t.Fatalf("snapshot users = %+v, want worker-1", snap.Users)
	}

	if _, err := env.registry.Update("worker-2", domain.Coordinates{Lat: 51.51, Lng: -0.11}, domain.RoleForeman, "P1", ""); err != nil {
		t.Fatalf("update registry: %v", err)
	}

	evt := readEvent(t, ctx, conn)
	if evt.Name != domain.EventLocationUpdated || evt.ProjectID != "P1" {
		t.Errorf("event = %+v, want location:updated for P1", evt)
	}
}

func TestWSNonSubscriberStaysSilent(t *testing.T) {
	env := newWSTestEnv(t)
	ctx := context.Background()

	conn := env.dial(t, ctx)
	sendOp(t, ctx, conn, "subscribe", "P2")

	snapshot := readEvent(t, ctx, conn)
	if snapshot.Name != "snapshot" {
		t.Fatalf("first event = %+v, want snapshot", snapshot)
	}

	// Movement on another project must not reach a P2 subscriber.
	if _, err := env.registry.Update("worker-1", domain.Coordinates{Lat: 1, Lng: 1}, domain.RoleLabour, "P1", ""); err != nil {
		t.Fatalf("update registry: %v", err)
	}

	readCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	if _, data, err := conn.Read(readCtx); err == nil {
		t.Errorf("unexpected event for non-subscriber: %s", data)
	}
}

func TestWSPingPong(t *testing.T) {
	env := newWSTestEnv(t)
	ctx := context.Background()

	conn := env.dial(t, ctx)
	sendOp(t, ctx, conn, "ping", "")

	evt := readEvent(t, ctx, conn)
	if evt.Name != "pong" {
		t.Errorf("event = %+v, want pong", evt)
	}
}

func TestWSUnsubscribeStopsUpdates(t *testing.T) {
	env := newWSTestEnv(t)
	ctx := context.Background()

	conn := env.dial(t, ctx)
	sendOp(t, ctx, conn, "subscribe", "P1")
	if evt := readEvent(t, ctx, conn); evt.Name != "snapshot" {
		t.Fatalf("first event = %+v, want snapshot", evt)
	}

	sendOp(t, ctx, conn, "unsubscribe", "P1")
	// The ping round trip confirms the unsubscribe was processed before
	// the broadcast below.
	sendOp(t, ctx, conn, "ping", "")
	if evt := readEvent(t, ctx, conn); evt.Name != "pong" {
		t.Fatalf("event = %+v, want pong", evt)
	}

	if _, err := env.registry.Update("worker-1", domain.Coordinates{Lat: 1, Lng: 1}, domain.RoleLabour, "P1", ""); err != nil {
		t.Fatalf("update registry: %v", err)
	}

	readCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	if _, data, err := conn.Read(readCtx); err == nil {
		t.Errorf("unexpected event after unsubscribe: %s", data)
	}
}
