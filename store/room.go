// store/room.go
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wfunc/duelhub/models"
)

const roomKeyPrefix = "duelhub:room:"

// RoomKeyFor derives a stable key from a user-supplied room name. The
// hash keeps arbitrary names safe to use as store keys and broadcast
// group IDs.
func RoomKeyFor(game, name string) string {
	sum := sha256.Sum256([]byte(game + "/" + name))
	return hex.EncodeToString(sum[:8])
}

// RoomStore holds the authoritative room snapshots in the shared KV.
// Every save replaces the whole snapshot and renews the TTL, so an
// abandoned room disappears on its own.
type RoomStore struct {
	client Client
	ttl    time.Duration
}

func NewRoomStore(client Client, ttl time.Duration) *RoomStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RoomStore{client: client, ttl: ttl}
}

func (s *RoomStore) Load(ctx context.Context, roomKey string) (*models.RoomSnapshot, error) {
	data, err := s.client.Get(ctx, roomKeyPrefix+roomKey)
	if err != nil {
		return nil, err
	}
	var snap models.RoomSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("decode room snapshot %s: %w", roomKey, err)
	}
	return &snap, nil
}

func (s *RoomStore) Save(ctx context.Context, snap *models.RoomSnapshot) error {
	snap.UpdatedAt = time.Now()
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = snap.UpdatedAt
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode room snapshot %s: %w", snap.RoomKey, err)
	}
	return s.client.Set(ctx, roomKeyPrefix+snap.RoomKey, string(data), s.ttl)
}

func (s *RoomStore) Delete(ctx context.Context, roomKey string) error {
	return s.client.Del(ctx, roomKeyPrefix+roomKey)
}
