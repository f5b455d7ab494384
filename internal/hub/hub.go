package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"sitetrack/internal/domain"
)

// Client is one live websocket connection. Send is drained by the
// connection's write loop and is never closed; removal is signaled by
// closing done, so a racing producer can never hit a closed channel.
type Client struct {
	ID       string
	Send     chan []byte
	done     chan struct{}
	projects map[string]struct{}
	mu       sync.RWMutex
}

func NewClient(id string, bufferSize int) *Client {
	return &Client{
		ID:       id,
		Send:     make(chan []byte, bufferSize),
		done:     make(chan struct{}),
		projects: make(map[string]struct{}),
	}
}

// Done is closed when the hub removes the client. The connection's
// write loop watches it to know when to close the socket.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) Subscribed(projectID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.projects[projectID]
	return ok
}

func (c *Client) addProject(projectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.projects[projectID] = struct{}{}
}

func (c *Client) removeProject(projectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.projects, projectID)
}

func (c *Client) Projects() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	projects := make([]string, 0, len(c.projects))
	for id := range c.projects {
		projects = append(projects, id)
	}
	return projects
}

// Hub groups live connections into project-scoped channels and fans
// registry/digitizer events out to them. Events with no project target
// every connection.
type Hub struct {
	mu             sync.RWMutex
	clients        map[*Client]struct{}
	projectClients map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	events     chan domain.Event

	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:        make(map[*Client]struct{}),
		projectClients: make(map[string]map[*Client]struct{}),
		register:       make(chan *Client, 16),
		unregister:     make(chan *Client, 16),
		events:         make(chan domain.Event, 256),
		logger:         logger,
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.ID, "total", total)

		case client := <-h.unregister:
			h.removeClient(client)

		case evt := <-h.events:
			for _, dead := range h.fanout(evt) {
				h.logger.Warn("client send buffer full, closing connection", "client_id", dead.ID)
				h.removeClient(dead)
			}
		}
	}
}

// Subscribe adds the client to a project channel. Subscribing twice is
// a no-op. A client the hub has already removed cannot re-enter a
// channel through a late subscribe.
func (h *Hub) Subscribe(client *Client, projectID string) {
	if projectID == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	client.addProject(projectID)

	if h.projectClients[projectID] == nil {
		h.projectClients[projectID] = make(map[*Client]struct{})
	}
	h.projectClients[projectID][client] = struct{}{}
}

func (h *Hub) Unsubscribe(client *Client, projectID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.removeProject(projectID)

	if h.projectClients[projectID] != nil {
		delete(h.projectClients[projectID], client)
		if len(h.projectClients[projectID]) == 0 {
			delete(h.projectClients, projectID)
		}
	}
}

// Broadcast enqueues an event for fan-out. Never blocks the caller;
// under sustained overload events are dropped with a warning.
func (h *Hub) Broadcast(evt domain.Event) {
	select {
	case h.events <- evt:
	default:
		h.logger.Warn("event channel full, dropping event", "event", evt.Name, "project_id", evt.ProjectID)
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// fanout delivers the event to every subscribed connection and returns
// the clients whose send buffer was full.
func (h *Hub) fanout(evt domain.Event) []*Client {
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("failed to marshal event", "event", evt.Name, "error", err)
		return nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	var targets map[*Client]struct{}
	if evt.ProjectID == "" {
		targets = h.clients
	} else {
		targets = h.projectClients[evt.ProjectID]
	}

	var dead []*Client
	for client := range targets {
		select {
		case client.Send <- data:
		default:
			dead = append(dead, client)
		}
	}
	return dead
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	for _, projectID := range client.Projects() {
		if h.projectClients[projectID] != nil {
			delete(h.projectClients[projectID], client)
			if len(h.projectClients[projectID]) == 0 {
				delete(h.projectClients, projectID)
			}
		}
	}

	delete(h.clients, client)
	close(client.done)
	h.logger.Debug("client unregistered", "client_id", client.ID, "total", len(h.clients))
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.done)
	}
	h.clients = make(map[*Client]struct{})
	h.projectClients = make(map[string]map[*Client]struct{})
}
