package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Message is a single relay frame.
type Message struct {
	Topic   string `json:"topic"`
	Type    string `json:"type"`
	Payload string `json:"payload"`
	Silent  bool   `json:"silent"`
}

// Frame types.
const (
	MessageTypePub = "pub"
	MessageTypeSub = "sub"
)

// Transport moves frames to and from the relay server.
type Transport interface {
	// Subscribe asks the relay to deliver frames published on topic.
	Subscribe(ctx context.Context, topic string) error

	// Publish sends payload on topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Messages delivers frames for subscribed topics. It is closed when the
	// transport shuts down.
	Messages() <-chan Message

	// Close shuts the transport down.
	Close() error
}

// Dialer opens a transport to a relay server.
type Dialer func(ctx context.Context, bridgeURL string) (Transport, error)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WebSocketTransport is a Transport over a gorilla websocket connection.
type WebSocketTransport struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex
	msgs    chan Message

	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// DialWebSocket connects to the relay at bridgeURL (ws:// or wss://).
func DialWebSocket(ctx context.Context, bridgeURL string) (Transport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, bridgeURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial relay %s: %w", bridgeURL, err)
	}
	return NewWebSocketTransport(conn, slog.Default()), nil
}

// NewWebSocketTransport wraps an established connection and starts its read
// and keepalive loops.
func NewWebSocketTransport(conn *websocket.Conn, logger *slog.Logger) *WebSocketTransport {
	t := &WebSocketTransport{
		conn:   conn,
		logger: logger,
		msgs:   make(chan Message, 16),
		quit:   make(chan struct{}),
	}

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	t.wg.Add(2)
	go t.readLoop()
	go t.pingLoop()

	return t
}

// Subscribe implements Transport.
func (t *WebSocketTransport) Subscribe(ctx context.Context, topic string) error {
	return t.write(Message{Topic: topic, Type: MessageTypeSub, Silent: true})
}

// Publish implements Transport.
func (t *WebSocketTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	return t.write(Message{Topic: topic, Type: MessageTypePub, Payload: string(payload), Silent: true})
}

// Messages implements Transport.
func (t *WebSocketTransport) Messages() <-chan Message {
	return t.msgs
}

// Close implements Transport.
func (t *WebSocketTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.quit)

		t.writeMu.Lock()
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		t.writeMu.Unlock()

		err = t.conn.Close()
	})
	t.wg.Wait()
	return err
}

func (t *WebSocketTransport) write(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode relay frame: %w", err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	select {
	case <-t.quit:
		return fmt.Errorf("relay transport closed")
	default:
	}

	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write relay frame: %w", err)
	}
	return nil
}

func (t *WebSocketTransport) readLoop() {
	defer t.wg.Done()
	defer close(t.msgs)

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			select {
			case <-t.quit:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					t.logger.Warn("relay read failed", "error", err)
				}
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.logger.Debug("dropping malformed relay frame", "error", err)
			continue
		}

		// The relay acknowledges publishes; only deliver payloads.
		if msg.Type != MessageTypePub || msg.Payload == "" {
			continue
		}

		select {
		case t.msgs <- msg:
		case <-t.quit:
			return
		}
	}
}

func (t *WebSocketTransport) pingLoop() {
	defer t.wg.Done()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-t.quit:
			return
		case <-ticker.C:
			t.writeMu.Lock()
			err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			t.writeMu.Unlock()
			if err != nil {
				t.logger.Debug("relay ping failed", "error", err)
				return
			}
		}
	}
}

var _ Transport = (*WebSocketTransport)(nil)
