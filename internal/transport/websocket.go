package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/snore/snore-cli/internal/models"
)

// writeWait bounds one write to a feed client
const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local dashboards
	},
}

// FeedServer pushes every stored row to connected WebSocket clients
type FeedServer struct {
	host    string
	port    int
	logger  *zap.Logger
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
	writeMu sync.Mutex // one writer per connection
	server  *http.Server
}

func NewFeedServer(host string, port int, logger *zap.Logger) *FeedServer {
	return &FeedServer{
		host:    host,
		port:    port,
		logger:  orNop(logger),
		clients: make(map[*websocket.Conn]bool),
	}
}

// Handler returns the feed's HTTP routes
func (s *FeedServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/rows", s.handleWebSocket)
	mux.HandleFunc("/", s.handleRoot)
	return mux
}

// Start serves until ctx is cancelled
func (s *FeedServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.host, s.port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.mu.Lock()
	s.server = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	server := s.server
	s.mu.Unlock()

	go func() {
		s.logger.Info("row feed listening", zap.String("addr", s.GetAddress()))
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("row feed server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	return s.Shutdown()
}

func (s *FeedServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "snore stationary row feed\n\n")
	fmt.Fprintf(w, "WebSocket endpoint: %s\n", s.GetAddress())
	fmt.Fprintf(w, "Connected clients: %d\n", s.GetClientCount())
}

func (s *FeedServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.clients[conn] = true
	count := len(s.clients)
	s.mu.Unlock()
	s.logger.Info("feed client connected", zap.String("remote", r.RemoteAddr), zap.Int("clients", count))

	defer func() {
		count := s.removeClient(conn)
		s.logger.Info("feed client disconnected", zap.Int("clients", count))
	}()

	// drain until the client goes away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// removeClient forgets conn, closes it and returns the remaining count
func (s *FeedServer) removeClient(conn *websocket.Conn) int {
	s.mu.Lock()
	delete(s.clients, conn)
	count := len(s.clients)
	s.mu.Unlock()
	conn.Close()
	return count
}

// Broadcast sends a row to every client. A client whose write fails or
// times out is disconnected.
func (s *FeedServer) Broadcast(row models.StoredRow) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal row: %w", err)
	}

	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.mu.RUnlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	for _, client := range clients {
		client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			count := s.removeClient(client)
			s.logger.Debug("dropped feed client", zap.Error(err), zap.Int("clients", count))
		}
	}
	return nil
}

// BroadcastFromChannel broadcasts rows until ctx ends or rows closes
func (s *FeedServer) BroadcastFromChannel(ctx context.Context, rows <-chan models.StoredRow) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case row, ok := <-rows:
			if !ok {
				return nil
			}
			if err := s.Broadcast(row); err != nil {
				s.logger.Warn("broadcast error", zap.Error(err))
			}
		}
	}
}

// GetClientCount returns the number of connected clients
func (s *FeedServer) GetClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Shutdown closes clients and stops the HTTP server
func (s *FeedServer) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.mu.Lock()
	for client := range s.clients {
		client.Close()
	}
	s.clients = make(map[*websocket.Conn]bool)
	server := s.server
	s.mu.Unlock()

	if server != nil {
		return server.Shutdown(ctx)
	}
	return nil
}

// GetAddress returns the WebSocket URL
func (s *FeedServer) GetAddress() string {
	return fmt.Sprintf("ws://%s:%d/rows", s.host, s.port)
}
