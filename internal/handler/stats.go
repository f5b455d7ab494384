package handler

import (
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"sitetrack/internal/drawing"
	"sitetrack/internal/hub"
	"sitetrack/internal/registry"
)

// Stats tracks server-wide counters
type Stats struct {
	startTime     time.Time
	requestCount  atomic.Int64
	wsConnections atomic.Int64
	wsMessagesIn  atomic.Int64
	wsMessagesOut atomic.Int64
}

// Global stats instance
var ServerStats = &Stats{
	startTime: time.Now(),
}

func (s *Stats) IncRequests()      { s.requestCount.Add(1) }
func (s *Stats) IncWSConnections() { s.wsConnections.Add(1) }
func (s *Stats) DecWSConnections() { s.wsConnections.Add(-1) }
func (s *Stats) IncWSMessagesIn()  { s.wsMessagesIn.Add(1) }
func (s *Stats) IncWSMessagesOut() { s.wsMessagesOut.Add(1) }

type StatsHandler struct {
	registry  *registry.Registry
	digitizer *drawing.Digitizer
	hub       *hub.Hub
}

func NewStatsHandler(reg *registry.Registry, dig *drawing.Digitizer, h *hub.Hub) *StatsHandler {
	return &StatsHandler{registry: reg, digitizer: dig, hub: h}
}

type StatsResponse struct {
	Server    ServerStatsResponse    `json:"server"`
	Presence  PresenceStatsResponse  `json:"presence"`
	Drawings  DrawingStatsResponse   `json:"drawings"`
	WebSocket WebSocketStatsResponse `json:"websocket"`
	Go        GoStatsResponse        `json:"go"`
}

type ServerStatsResponse struct {
	Uptime        string    `json:"uptime"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	StartTime     time.Time `json:"start_time"`
	RequestCount  int64     `json:"request_count"`
	Version       string    `json:"version"`
}

type PresenceStatsResponse struct {
	Tracked int `json:"tracked"`
	Active  int `json:"active"`
}

type DrawingStatsResponse struct {
	Maps int `json:"maps"`
}

type WebSocketStatsResponse struct {
	Connections int64 `json:"connections"`
	Subscribed  int   `json:"subscribed"`
	MessagesIn  int64 `json:"messages_in"`
	MessagesOut int64 `json:"messages_out"`
}

type GoStatsResponse struct {
	Goroutines  int     `json:"goroutines"`
	HeapAlloc   uint64  `json:"heap_alloc_bytes"`
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	NumGC       uint32  `json:"num_gc"`
	GoVersion   string  `json:"go_version"`
}

func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(ServerStats.startTime)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	response := StatsResponse{
		Server: ServerStatsResponse{
			Uptime:        uptime.Round(time.Second).String(),
			UptimeSeconds: uptime.Seconds(),
			StartTime:     ServerStats.startTime,
			RequestCount:  ServerStats.requestCount.Load(),
			Version:       "1.0.0",
		},
		Presence: PresenceStatsResponse{
			Tracked: h.registry.Count(),
			Active:  h.registry.ActiveCount(),
		},
		Drawings: DrawingStatsResponse{
			Maps: h.digitizer.Count(),
		},
		WebSocket: WebSocketStatsResponse{
			Connections: ServerStats.wsConnections.Load(),
			Subscribed:  h.hub.ClientCount(),
			MessagesIn:  ServerStats.wsMessagesIn.Load(),
			MessagesOut: ServerStats.wsMessagesOut.Load(),
		},
		Go: GoStatsResponse{
			Goroutines:  runtime.NumGoroutine(),
			HeapAlloc:   mem.HeapAlloc,
			HeapAllocMB: float64(mem.HeapAlloc) / 1024 / 1024,
			NumGC:       mem.NumGC,
			GoVersion:   runtime.Version(),
		},
	}

	w.Header().Set("Cache-Control", "no-cache")
	respondJSON(w, http.StatusOK, response)
}
