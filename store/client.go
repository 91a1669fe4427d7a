// store/client.go
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is absent or its TTL elapsed.
var ErrNotFound = errors.New("store: key not found")

// Client is the narrow shared-KV surface the coordination layer
// needs: get/set/delete with a TTL and nothing else. There is no
// compare-and-swap; the room design tolerates lost updates (legitimate
// writers are turn-gated, the matchmaking ticket race stays a
// documented best-effort window).
//
// The interface exists so the store logic can be tested against the
// in-memory implementation without a Redis server.
type Client interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}
