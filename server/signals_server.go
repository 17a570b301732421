package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/status-im/nodemanager/common"
	"github.com/status-im/nodemanager/signal"
)

const writeTimeout = 5 * time.Second

// Server pushes signals to websocket clients on /signals and serves the node
// manager HTTP endpoints.
type Server struct {
	server      *http.Server
	listener    net.Listener
	mux         *http.ServeMux
	lock        sync.Mutex
	connections map[*websocket.Conn]struct{}
	address     string
	logger      *zap.Logger

	api *API
}

func NewServer(api *API, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		connections: make(map[*websocket.Conn]struct{}, 1),
		logger:      logger.Named("server"),
		api:         api,
	}
}

func (s *Server) Address() string {
	return s.address
}

// Setup routes every signal to the connected websocket clients.
func (s *Server) Setup() {
	signal.SetMobileSignalHandler(s.signalHandler)
}

func (s *Server) signalHandler(data []byte) {
	s.lock.Lock()
	defer s.lock.Unlock()

	for connection := range s.connections {
		_ = connection.SetWriteDeadline(time.Now().Add(writeTimeout))
		err := connection.WriteMessage(websocket.TextMessage, data)
		if err != nil {
			s.logger.Warn("failed to write message, dropping client", zap.Error(err))
			_ = connection.Close()
			delete(s.connections, connection)
		}
	}
}

func (s *Server) Listen(address string) error {
	if s.server != nil {
		return errors.New("server already started")
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("/signals", s.signals)
	if s.api != nil {
		s.api.Register(s.mux)
	}

	s.server = &http.Server{
		Addr:              address,
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           s.mux,
	}

	var err error
	s.listener, err = net.Listen("tcp", address)
	if err != nil {
		s.server = nil
		return err
	}

	s.address = s.listener.Addr().String()

	return nil
}

func (s *Server) Serve() {
	defer common.LogOnPanic()
	err := s.server.Serve(s.listener)
	if !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("signals server closed with error", zap.Error(err))
	}
}

func (s *Server) Stop(ctx context.Context) {
	signal.ResetMobileSignalHandler()

	s.lock.Lock()
	for connection := range s.connections {
		err := connection.Close()
		if err != nil {
			s.logger.Error("failed to close connection", zap.Error(err))
		}
		delete(s.connections, connection)
	}
	s.lock.Unlock()

	if s.server == nil {
		return
	}
	err := s.server.Shutdown(ctx)
	if err != nil {
		s.logger.Error("failed to shutdown signals server", zap.Error(err))
	}

	s.server = nil
	s.address = ""
}

func (s *Server) signals(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	defer s.lock.Unlock()

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // Accepting all requests
		},
	}

	connection, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	s.connections[connection] = struct{}{}
	go s.readLoop(connection)
}

// readLoop discards client messages and forgets the client once it leaves.
func (s *Server) readLoop(connection *websocket.Conn) {
	defer common.LogOnPanic()
	for {
		if _, _, err := connection.NextReader(); err != nil {
			s.lock.Lock()
			if _, ok := s.connections[connection]; ok {
				delete(s.connections, connection)
				_ = connection.Close()
			}
			s.lock.Unlock()
			return
		}
	}
}
