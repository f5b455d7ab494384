package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"sitetrack/internal/domain"
	"sitetrack/internal/hub"
	"sitetrack/internal/registry"
)

type WSHandler struct {
	hub      *hub.Hub
	registry *registry.Registry
	logger   *slog.Logger

	pingInterval time.Duration
	writeTimeout time.Duration
}

func NewWSHandler(h *hub.Hub, reg *registry.Registry, pingInterval, writeTimeout time.Duration, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		hub:          h,
		registry:     reg,
		logger:       logger,
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
	}
}

type wsRequest struct {
	Op        string `json:"op"`
	ProjectID string `json:"projectId,omitempty"`
}

type snapshotPayload struct {
	Users []domain.ActiveUser `json:"users"`
}

func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}

	clientID := uuid.New().String()
	client := hub.NewClient(clientID, 256)

	h.hub.Register(client)
	ServerStats.IncWSConnections()
	defer ServerStats.DecWSConnections()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.writeLoop(ctx, conn, client)

	h.readLoop(ctx, conn, client)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	defer func() {
		h.hub.Unregister(client)
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				h.logger.Debug("websocket read error", "client_id", client.ID, "error", err)
			}
			return
		}

		if msgType != websocket.MessageText {
			continue
		}
		ServerStats.IncWSMessagesIn()

		var req wsRequest
		if err := json.Unmarshal(data, &req); err != nil {
			h.logger.Debug("invalid message format", "client_id", client.ID, "error", err)
			continue
		}

		switch req.Op {
		case "subscribe":
			if req.ProjectID == "" {
				continue
			}
			h.hub.Subscribe(client, req.ProjectID)
			h.sendSnapshot(client, req.ProjectID)

		case "unsubscribe":
			if req.ProjectID == "" {
				continue
			}
			h.hub.Unsubscribe(client, req.ProjectID)

		case "ping":
			h.send(client, domain.Event{Name: "pong"})
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *hub.Client) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-client.Done():
			conn.Close(websocket.StatusGoingAway, "connection closed by server")
			return

		case msg := <-client.Send:
			writeCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
			ServerStats.IncWSMessagesOut()

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// sendSnapshot pushes the project's current active users so a new
// subscriber does not wait for the next movement.
func (h *WSHandler) sendSnapshot(client *hub.Client, projectID string) {
	h.send(client, domain.Event{
		Name:      "snapshot",
		ProjectID: projectID,
		Payload:   snapshotPayload{Users: h.registry.ActiveUsers(projectID)},
	})
}

func (h *WSHandler) send(client *hub.Client, evt domain.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}

	select {
	case <-client.Done():
	case client.Send <- data:
	default:
		h.logger.Debug("client send buffer full", "client_id", client.ID, "event", evt.Name)
	}
}
