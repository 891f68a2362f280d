package relay

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a pairing session.
type SessionStatus string

// Session states.
const (
	SessionRequested    SessionStatus = "REQUESTED"
	SessionConnected    SessionStatus = "CONNECTED"
	SessionDisconnected SessionStatus = "DISCONNECTED"
)

// protocolVersion is the pairing URI version.
const protocolVersion = 1

// PeerMeta describes a session participant to the other side.
type PeerMeta struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	URL         string   `json:"url,omitempty"`
	Icons       []string `json:"icons,omitempty"`
}

// Session is the persisted state of a pairing session.
type Session struct {
	Status         SessionStatus `json:"status"`
	Bridge         string        `json:"bridge"`
	ClientID       string        `json:"clientId"`
	PeerID         string        `json:"peerId,omitempty"`
	PeerMeta       *PeerMeta     `json:"peerMeta,omitempty"`
	HandshakeID    int64         `json:"handshakeId"`
	HandshakeTopic string        `json:"handshakeTopic"`
	Key            string        `json:"key"`
	ChainID        int           `json:"chainId,omitempty"`
	Address        string        `json:"terraAddress,omitempty"`
}

// newSession creates a fresh REQUESTED session with random identifiers.
func newSession(bridge string, handshakeID int64) Session {
	return Session{
		Status:         SessionRequested,
		Bridge:         bridge,
		ClientID:       uuid.NewString(),
		HandshakeID:    handshakeID,
		HandshakeTopic: uuid.NewString(),
		Key:            newKey(),
	}
}

// newKey returns 32 random bytes, hex encoded.
func newKey() string {
	a, b := uuid.New(), uuid.New()
	return hex.EncodeToString(a[:]) + hex.EncodeToString(b[:])
}

// URI returns the pairing URI a signer scans to join the session.
func (s Session) URI() string {
	return fmt.Sprintf("wc:%s@%d?bridge=%s&key=%s",
		s.HandshakeTopic, protocolVersion, url.QueryEscape(s.Bridge), s.Key)
}

// ParseURI extracts the handshake topic, bridge and key from a pairing URI.
func ParseURI(uri string) (topic, bridge, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "wc:")
	if !ok {
		return "", "", "", fmt.Errorf("invalid pairing uri %q: missing wc: prefix", uri)
	}
	head, query, ok := strings.Cut(rest, "?")
	if !ok {
		return "", "", "", fmt.Errorf("invalid pairing uri %q: missing query", uri)
	}
	topic, _, _ = strings.Cut(head, "@")

	values, err := url.ParseQuery(query)
	if err != nil {
		return "", "", "", fmt.Errorf("invalid pairing uri %q: %w", uri, err)
	}
	bridge, key = values.Get("bridge"), values.Get("key")
	if topic == "" || bridge == "" || key == "" {
		return "", "", "", fmt.Errorf("invalid pairing uri %q: topic, bridge and key are required", uri)
	}
	return topic, bridge, key, nil
}
