package ws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"parking-service/internal/broadcast"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// RequestProcessor answers dashboard requests.
type RequestProcessor interface {
	Greeting() []byte
	Dispatch(ctx context.Context, raw []byte) []byte
}

// Connection is one dashboard websocket. Replies and broadcasts share the
// subscriber queue owned by the hub.
type Connection struct {
	ws           *websocket.Conn
	hub          *broadcast.Hub
	sub          *broadcast.Subscriber
	processor    RequestProcessor
	writeTimeout time.Duration
	log          zerolog.Logger
	onClose      func()
}

func NewConnection(ws *websocket.Conn, hub *broadcast.Hub, processor RequestProcessor, writeTimeout time.Duration, log zerolog.Logger, onClose func()) *Connection {
	sub := hub.Subscribe()
	return &Connection{
		ws:           ws,
		hub:          hub,
		sub:          sub,
		processor:    processor,
		writeTimeout: writeTimeout,
		log:          log.With().Str("subscriber_id", sub.ID().String()).Logger(),
		onClose:      onClose,
	}
}

// Start greets the dashboard and runs the read and write pumps until the
// connection drops.
func (c *Connection) Start(ctx context.Context) {
	c.hub.Send(c.sub, c.processor.Greeting())
	go c.writePump(ctx)
	c.readPump(ctx)
}

func (c *Connection) readPump(ctx context.Context) {
	defer c.cleanup()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Info().Err(err).Msg("dashboard connection read closed")
			}
			return
		}

		reply := c.processor.Dispatch(ctx, message)
		if !c.hub.Send(c.sub, reply) {
			c.log.Warn().Msg("dashboard reply dropped")
		}
	}
}

func (c *Connection) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	messages := c.sub.Messages()
	for {
		select {
		case <-ctx.Done():
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case msg, ok := <-messages:
			if !ok {
				_ = c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.log.Debug().Err(err).Msg("dashboard write failed")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) write(messageType int, data []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(messageType, data)
}

func (c *Connection) cleanup() {
	c.hub.Unsubscribe(c.sub)
	_ = c.ws.Close()
	if c.onClose != nil {
		c.onClose()
	}
}
