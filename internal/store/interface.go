// Package store persists wallet session state between runs.
//
// It plays the role browser local storage plays for a web wallet: the last
// connected extension address and the readonly and relay sessions are kept
// here so they can be resumed, and cleared on explicit disconnect.
package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Well-known keys.
const (
	KeyExtensionAddress = "extension.address"
	KeyReadonlySession  = "readonly.session"
	KeyRelaySession     = "relay.session"
)

// Store is a small key/value store.
type Store interface {
	// Get returns the value for key or a NotFoundError.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the store.
	Close() error
}

// GetJSON loads key and decodes it into v.
func GetJSON(ctx context.Context, s Store, key string, v interface{}) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := decode(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// PutJSON encodes v and stores it under key.
func PutJSON(ctx context.Context, s Store, key string, v interface{}) error {
	data, err := encode(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.Put(ctx, key, data)
}

// encode marshals a value to JSON.
func encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// decode unmarshals JSON to a value.
func decode(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
