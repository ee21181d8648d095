package tgstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGateway(t *testing.T, serve func(*websocket.Conn)) (*httptest.Server, chan string) {
	t.Helper()
	tokens := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens <- r.URL.Query().Get("token")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn)
	}))
	t.Cleanup(srv.Close)
	return srv, tokens
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConnectAndSubscribe(t *testing.T) {
	subs := make(chan string, 2)
	srv, tokens := newGateway(t, func(conn *websocket.Conn) {
		for i := 0; i < 2; i++ {
			var m map[string]string
			if err := conn.ReadJSON(&m); err != nil {
				return
			}
			subs <- m["channel"]
		}
	})

	c := New("tok-1", wsURL(srv), []string{"alpha_calls", "whale_pings"}, time.Second, time.Hour, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, c.Connect(ctx))
	defer c.Close()
	assert.True(t, c.IsConnected())
	assert.Equal(t, "tok-1", <-tokens)

	require.NoError(t, c.Subscribe(ctx))
	assert.Equal(t, "alpha_calls", <-subs)
	assert.Equal(t, "whale_pings", <-subs)
}

func TestReadDeliversMessages(t *testing.T) {
	srv, _ := newGateway(t, func(conn *websocket.Conn) {
		// non-message frames must be skipped
		_ = conn.WriteJSON(map[string]string{"type": "ack"})
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		_ = conn.WriteJSON(map[string]interface{}{
			"type":    "message",
			"channel": "alpha_calls",
			"id":      int64(42),
			"text":    "BTC LONG Entry: 45000",
			"date":    int64(1700000000),
		})
		time.Sleep(time.Second)
	})

	c := New("tok", wsURL(srv), nil, time.Second, time.Hour, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, c.Connect(ctx))
	defer c.Close()

	msgs, errs := c.Read(ctx)
	select {
	case m := <-msgs:
		require.NotNil(t, m)
		assert.Equal(t, "alpha_calls", m.Channel)
		assert.Equal(t, "42", m.MessageID)
		assert.Equal(t, "BTC LONG Entry: 45000", m.Text)
		assert.Equal(t, int64(1700000000), m.Timestamp)
	case err := <-errs:
		t.Fatalf("unexpected stream error: %v", err)
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}

func TestSubscribeRequiresConnection(t *testing.T) {
	c := New("tok", "ws://127.0.0.1:0", []string{"alpha_calls"}, time.Second, time.Hour, nil)
	err := c.Subscribe(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}
