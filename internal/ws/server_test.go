package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"parking-service/internal/broadcast"
)

type echoProcessor struct{}

func (echoProcessor) Greeting() []byte {
	return []byte(`{"type":"connection_established"}`)
}

func (echoProcessor) Dispatch(_ context.Context, raw []byte) []byte {
	var req struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(raw, &req)
	return []byte(`{"type":"reply_to_` + req.Type + `"}`)
}

func readType(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("decode %s: %v", payload, err)
	}
	return msg.Type
}

func TestDashboardConnectionLifecycle(t *testing.T) {
	hub := broadcast.NewHub(8, zerolog.Nop())
	server := NewServer(hub, echoProcessor{}, time.Second, zerolog.Nop())

	httpServer := httptest.NewServer(http.HandlerFunc(server.HandleWS))
	defer httpServer.Close()

	url := "ws" + strings.TrimPrefix(httpServer.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if got := readType(t, conn); got != "connection_established" {
		t.Fatalf("greeting = %s", got)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"get_statistics"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := readType(t, conn); got != "reply_to_get_statistics" {
		t.Fatalf("reply = %s", got)
	}

	hub.Deliver([]byte(`{"type":"model_update"}`))
	if got := readType(t, conn); got != "model_update" {
		t.Fatalf("broadcast = %s", got)
	}

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("hub still holds %d subscribers after disconnect", hub.Len())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
