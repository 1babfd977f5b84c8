// Package web is the optional network monitor: a small JSON API for reading
// and tuning the analysis knobs, plus a websocket stream of rendered frames.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"oledviz/internal/viz"
)

// Controls is the runtime surface the server drives. Implemented by the app.
type Controls interface {
	Sensitivity() int
	NoiseReduction() int
	SetSensitivity(v int)
	SetNoiseReduction(v int)
	SwitchVisualization()
	VisualizationName() string
	PowerState() string
	TrackText() string
	PlayerConnected() bool
}

// Status is the read model served on /api/status and streamed over the
// websocket alongside frames.
type Status struct {
	Track           string `json:"track"`
	PlayerConnected bool   `json:"playerConnected"`
	PowerState      string `json:"powerState"`
	Visualization   string `json:"visualization"`
	Sensitivity     int    `json:"sensitivity"`
	NoiseReduction  int    `json:"noiseReduction"`
}

// UpdateRequest is a partial update; only non-nil fields apply.
type UpdateRequest struct {
	Sensitivity         *int  `json:"sensitivity,omitempty"`
	NoiseReduction      *int  `json:"noiseReduction,omitempty"`
	SwitchVisualization *bool `json:"switchVisualization,omitempty"`
}

type streamMessage struct {
	Status Status    `json:"status"`
	Frame  viz.Frame `json:"frame"`
}

type Server struct {
	controls Controls
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]bool

	broadcast chan []byte
	srv       *http.Server
}

func NewServer(controls Controls, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		controls: controls,
		log:      logger.With("subsystem", "web"),
		clients:  make(map[*client]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		broadcast: make(chan []byte, 256),
	}
}

// Start listens on the given port in the background. The server shuts down
// when ctx is cancelled.
func (s *Server) Start(ctx context.Context, port int) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/update", s.handleUpdate)
	mux.HandleFunc("/ws", s.handleWebSocket)

	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go s.broadcastLoop()
	go func() {
		s.log.Info("monitor listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("monitor server failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutCtx)
	}()
}

// Publish streams a rendered frame plus current status to all websocket
// clients. Non-blocking; drops the frame when the hub is saturated.
func (s *Server) Publish(frame viz.Frame) {
	data, err := json.Marshal(streamMessage{Status: s.status(), Frame: frame})
	if err != nil {
		return
	}
	select {
	case s.broadcast <- data:
	default:
	}
}

func (s *Server) status() Status {
	return Status{
		Track:           s.controls.TrackText(),
		PlayerConnected: s.controls.PlayerConnected(),
		PowerState:      s.controls.PowerState(),
		Visualization:   s.controls.VisualizationName(),
		Sensitivity:     s.controls.Sensitivity(),
		NoiseReduction:  s.controls.NoiseReduction(),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.status())
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Sensitivity != nil {
		s.controls.SetSensitivity(*req.Sensitivity)
	}
	if req.NoiseReduction != nil {
		s.controls.SetNoiseReduction(*req.NoiseReduction)
	}
	if req.SwitchVisualization != nil && *req.SwitchVisualization {
		s.controls.SwitchVisualization()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.status())
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	server *Server
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		conn:   conn,
		send:   make(chan []byte, 256),
		server: s,
	}

	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()

	go c.writePump()
	go c.readPump()
}

func (s *Server) broadcastLoop() {
	for message := range s.broadcast {
		s.mu.Lock()
		for c := range s.clients {
			select {
			case c.send <- message:
			default:
				close(c.send)
				delete(s.clients, c)
			}
		}
		s.mu.Unlock()
	}
}

func (c *client) readPump() {
	defer func() {
		c.server.mu.Lock()
		delete(c.server.clients, c)
		c.server.mu.Unlock()
		c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
