package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoRelay is a minimal relay server: it records subscriptions and echoes
// every published frame back to the sender.
type echoRelay struct {
	mu   sync.Mutex
	subs []string
}

func (e *echoRelay) topics() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.subs...)
}

func (e *echoRelay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case MessageTypeSub:
			e.mu.Lock()
			e.subs = append(e.subs, msg.Topic)
			e.mu.Unlock()
		case MessageTypePub:
			// Acknowledgement without payload, which the client must skip.
			_ = conn.WriteJSON(Message{Topic: msg.Topic, Type: "ack"})
			_ = conn.WriteJSON(msg)
		}
	}
}

func TestWebSocketTransport(t *testing.T) {
	relay := &echoRelay{}
	server := httptest.NewServer(relay)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr, err := DialWebSocket(ctx, "ws"+strings.TrimPrefix(server.URL, "http"))
	require.NoError(t, err)

	require.NoError(t, tr.Subscribe(ctx, "client-topic"))
	require.NoError(t, tr.Publish(ctx, "peer-topic", []byte(`{"id":1}`)))

	select {
	case msg := <-tr.Messages():
		assert.Equal(t, "peer-topic", msg.Topic)
		assert.Equal(t, MessageTypePub, msg.Type)
		assert.Equal(t, `{"id":1}`, msg.Payload)
	case <-ctx.Done():
		t.Fatal("no message echoed")
	}

	assert.Equal(t, []string{"client-topic"}, relay.topics())

	require.NoError(t, tr.Close())
	_, ok := <-tr.Messages()
	assert.False(t, ok, "messages channel is closed after Close")
	assert.Error(t, tr.Publish(ctx, "peer-topic", []byte("late")))
}

func TestDialWebSocket_Failure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := DialWebSocket(ctx, "ws://127.0.0.1:1")
	assert.Error(t, err)
}
