package gateway

import (
	"context"
	"encoding/json"
	"io"
	"iter"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "qwenlink/api/v1"
	"qwenlink/internal/chat"
	"qwenlink/internal/config"
	"qwenlink/internal/gateway/handlers"
	"qwenlink/internal/gateway/websocket"
	"qwenlink/internal/metrics"
	"qwenlink/internal/storage"
	"qwenlink/internal/tools"
)

type echoChat struct{}

func (echoChat) ModelID() string { return "qwen-max" }

func (echoChat) GetChatMessageContents(_ context.Context, history *chat.History, _ any, _ *tools.Catalog) ([]*chat.Message, error) {
	last := history.At(history.Len() - 1)
	return []*chat.Message{{Role: chat.RoleAssistant, Content: "echo: " + last.Content}}, nil
}

func (echoChat) GetStreamingChatMessageContents(_ context.Context, history *chat.History, _ any) iter.Seq2[*chat.StreamingMessage, error] {
	last := history.At(history.Len() - 1)
	return func(yield func(*chat.StreamingMessage, error) bool) {
		for _, word := range strings.Fields("echo: " + last.Content) {
			if !yield(&chat.StreamingMessage{Role: chat.RoleAssistant, Content: word + " ", ModelID: "qwen-max"}, nil) {
				return
			}
		}
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Version: "v1.0.0-test",
		Gateway: config.GatewayConfig{Host: "127.0.0.1", Port: 0},
		Metrics: config.MetricsConfig{Enabled: true},
	}
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *storage.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := NewServer(testConfig(), websocket.NewHub(), &v1.RouterDeps{Chat: echoChat{}, DB: db}, opts...)
	return s, db
}

func TestNewServer(t *testing.T) {
	hub := websocket.NewHub()
	server := NewServer(testConfig(), hub, nil)

	require.NotNil(t, server)
	assert.NotNil(t, server.Router())
	assert.Same(t, hub, server.Hub())
	assert.Equal(t, "127.0.0.1:0", server.Addr())
}

func TestServerHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp handlers.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "v1.0.0-test", resp.Version)
	assert.Equal(t, "qwen-max", resp.Model)
	assert.Equal(t, "ok", resp.Storage)
}

func TestServerMetricsEndpoint(t *testing.T) {
	rec := metrics.New()
	rec.RecordRequest("qwen-max", chat.ModeChat)
	server, _ := newTestServer(t, WithMetrics(rec))

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `qwenlink_requests_total{mode="chat",model="qwen-max"} 1`)

	cfg := testConfig()
	cfg.Metrics.Enabled = false
	disabled := NewServer(cfg, nil, nil, WithMetrics(rec))
	w = httptest.NewRecorder()
	disabled.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServerPanicRecovered(t *testing.T) {
	server, _ := newTestServer(t)
	server.Router().HandleFunc("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestServerServeAndShutdown(t *testing.T) {
	server, _ := newTestServer(t, WithVersion("v9"))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(ln) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `"version":"v9"`)

	require.NoError(t, server.Shutdown(context.Background()))
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}

func TestServerWebSocketChat(t *testing.T) {
	server, db := newTestServer(t)
	go server.Hub().Run()
	defer server.Hub().Stop()

	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	ws, _, err := gorillaws.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteJSON(websocket.WSMessage{Type: websocket.TypeChat, Session: "ws-1", Message: "hi there"}))

	var sb strings.Builder
	for {
		var msg websocket.WSMessage
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
		require.NoError(t, ws.ReadJSON(&msg))
		assert.Equal(t, "ws-1", msg.Session)
		if msg.Type == websocket.TypeDone {
			break
		}
		require.Equal(t, websocket.TypeStream, msg.Type, "unexpected frame %+v", msg)
		sb.WriteString(msg.Delta)
	}
	assert.Equal(t, "echo: hi there ", sb.String())

	history, err := db.LoadHistory("ws-1")
	require.NoError(t, err)
	require.Equal(t, 2, history.Len())
	assert.Equal(t, "echo: hi there ", history.At(1).Content)
}

func TestServerRESTChat(t *testing.T) {
	server, _ := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"session_id":"r1","message":"ping"}`))
	server.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp v1.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "echo: ping", resp.Message)
}
