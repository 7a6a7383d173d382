package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yegors/birdnest/internal/report"
	"github.com/yegors/birdnest/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 8
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Server pushes every published report to connected websocket clients.
// New clients receive the latest report straight away.
type Server struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	latest  []byte

	logger *logger.Logger
}

// NewServer creates a new websocket server
func NewServer(logger *logger.Logger) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// CORS is enforced by the API middleware
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
		logger:  logger.Named("websocket"),
	}
}

// Publish implements publish.Publisher. Clients whose buffers are full are dropped.
func (s *Server) Publish(_ context.Context, rep *report.Report) error {
	payload, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest = payload
	for c := range s.clients {
		select {
		case c.send <- payload:
		default:
			s.logger.Warn("Client too slow, disconnecting", logger.String("remote_addr", c.conn.RemoteAddr().String()))
			s.removeLocked(c)
		}
	}
	return nil
}

// HandleWebSocket upgrades the request and streams reports until the client goes away
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", logger.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufferSize)}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	if s.latest != nil {
		c.send <- s.latest
	}
	count := len(s.clients)
	s.mu.Unlock()

	s.logger.Debug("Client connected",
		logger.String("remote_addr", conn.RemoteAddr().String()),
		logger.Int("clients", count),
	)

	go s.writeLoop(c)
	s.readLoop(c)
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close disconnects every client
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		s.removeLocked(c)
	}
}

// readLoop discards client messages; it exists to notice disconnects
func (s *Server) readLoop(c *client) {
	defer s.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writeLoop(c *client) {
	defer c.conn.Close()
	for payload := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			s.remove(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

func (s *Server) remove(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(c)
}

func (s *Server) removeLocked(c *client) {
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	close(c.send)
}
