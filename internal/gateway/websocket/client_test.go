package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/goleak"
)

func readFrame(t *testing.T, c *Client) WSMessage {
	t.Helper()
	select {
	case data := <-c.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
		return msg
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for response")
		return WSMessage{}
	}
}

func TestNewClient(t *testing.T) {
	hub := NewHub()
	client := NewClient(hub, nil)

	if client.hub != hub || client.sessions == nil || client.send == nil {
		t.Error("client not initialized")
	}
	if client.ID() == "" {
		t.Error("client.id is empty")
	}
	if client.ctx.Err() != nil {
		t.Error("client context should be live")
	}
}

func TestClientHandleMessage(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "test-client")

	t.Run("subscribe message", func(t *testing.T) {
		data, _ := json.Marshal(WSMessage{Type: TypeSubscribe, Session: "test-session"})
		client.handleMessage(data)

		if !client.sessions["test-session"] {
			t.Error("client not subscribed to test-session")
		}
	})

	t.Run("ping message", func(t *testing.T) {
		data, _ := json.Marshal(WSMessage{Type: TypePing})
		client.handleMessage(data)

		if msg := readFrame(t, client); msg.Type != TypePong {
			t.Errorf("response type = %s, want %s", msg.Type, TypePong)
		}
	})

	t.Run("unsubscribe message", func(t *testing.T) {
		data, _ := json.Marshal(WSMessage{Type: TypeUnsubscribe, Session: "test-session"})
		client.handleMessage(data)

		if client.sessions["test-session"] {
			t.Error("client still subscribed to test-session")
		}
	})

	t.Run("invalid message", func(t *testing.T) {
		client.handleMessage([]byte("invalid json"))

		if msg := readFrame(t, client); msg.Type != TypeError || msg.Code != "INVALID_MESSAGE" {
			t.Errorf("response = %+v", msg)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		client.handleMessage([]byte(`{"type":"reload"}`))

		if msg := readFrame(t, client); msg.Type != TypeError {
			t.Errorf("response type = %s, want error", msg.Type)
		}
	})

	t.Run("chat without message", func(t *testing.T) {
		client.handleMessage([]byte(`{"type":"chat"}`))

		if msg := readFrame(t, client); msg.Code != "INVALID_REQUEST" {
			t.Errorf("code = %s, want INVALID_REQUEST", msg.Code)
		}
	})

	t.Run("chat without handler", func(t *testing.T) {
		client.handleMessage([]byte(`{"type":"chat","message":"hi"}`))

		if msg := readFrame(t, client); msg.Code != "CHAT_ERROR" {
			t.Errorf("code = %s, want CHAT_ERROR", msg.Code)
		}
	})
}

func TestClientChatDefaultsSession(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "client-1")

	got := make(chan ChatRequest, 1)
	hub.SetChatHandler(func(_ context.Context, req ChatRequest) { got <- req })

	client.handleMessage([]byte(`{"type":"chat","message":"hi","model":"qwen-plus","settings":{"seed":7}}`))
	hub.Stop()

	req := <-got
	if req.Session != "client-1" || req.Message != "hi" || req.Model != "qwen-plus" {
		t.Errorf("req = %+v", req)
	}
	if req.Settings["seed"] != float64(7) {
		t.Errorf("settings = %v", req.Settings)
	}
	if !client.sessions["client-1"] {
		t.Error("client should be subscribed to its chat session")
	}
}

func TestServeWs_Chat(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub()
	go hub.Run()

	hub.SetChatHandler(func(ctx context.Context, req ChatRequest) {
		_ = hub.Publish(WSMessage{Type: TypeStream, Session: req.Session, Delta: "echo: " + req.Message})
		_ = hub.Publish(WSMessage{Type: TypeDone, Session: req.Session})
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	if err := ws.WriteJSON(WSMessage{Type: TypePing}); err != nil {
		t.Fatalf("failed to send ping: %v", err)
	}
	var pong WSMessage
	if err := ws.ReadJSON(&pong); err != nil || pong.Type != TypePong {
		t.Fatalf("pong = %+v, err = %v", pong, err)
	}

	if err := ws.WriteJSON(WSMessage{Type: TypeChat, Session: "s1", Message: "hello"}); err != nil {
		t.Fatalf("failed to send chat: %v", err)
	}

	var stream, done WSMessage
	if err := ws.ReadJSON(&stream); err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if err := ws.ReadJSON(&done); err != nil {
		t.Fatalf("read done: %v", err)
	}
	if stream.Type != TypeStream || stream.Delta != "echo: hello" || stream.Session != "s1" {
		t.Errorf("stream = %+v", stream)
	}
	if done.Type != TypeDone {
		t.Errorf("done = %+v", done)
	}

	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	ws.Close()

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount = %d after close, want 0", hub.ClientCount())
	}

	hub.Stop()
	server.Close()
}
