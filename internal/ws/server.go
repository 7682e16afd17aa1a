package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"parking-service/internal/broadcast"
)

// Server upgrades dashboard HTTP requests to websockets.
type Server struct {
	hub          *broadcast.Hub
	processor    RequestProcessor
	writeTimeout time.Duration
	upgrader     websocket.Upgrader
	log          zerolog.Logger
}

func NewServer(hub *broadcast.Hub, processor RequestProcessor, writeTimeout time.Duration, log zerolog.Logger) *Server {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Server{
		hub:          hub,
		processor:    processor,
		writeTimeout: writeTimeout,
		log:          log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWS serves GET /ws/dashboard. Authentication happens before this
// handler runs.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	connection := NewConnection(conn, s.hub, s.processor, s.writeTimeout, s.log, cancel)

	go connection.Start(ctx)
	s.log.Info().Str("remote_addr", r.RemoteAddr).Int("dashboards", s.hub.Len()).Msg("dashboard connected")
}
