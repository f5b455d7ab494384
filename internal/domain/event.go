package domain

// Event names pushed to websocket subscribers
const (
	EventLocationUpdated = "location:updated"
	EventDrawingUpdated  = "drawing:updated"
	EventDrawingDeleted  = "drawing:deleted"
)

// Event is a single broadcastable state change. An empty ProjectID
// targets every connected client.
type Event struct {
	Name      string `json:"event"`
	ProjectID string `json:"projectId,omitempty"`
	Payload   any    `json:"payload"`
}
