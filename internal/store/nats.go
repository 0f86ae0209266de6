package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kiliankoe/flagdash/internal/game"
	"github.com/nats-io/nats.go/jetstream"
)

// NATS keeps rooms in a JetStream key/value bucket. The bucket TTL ages each
// revision from its write, so every Put refreshes a room's lifetime.
type NATS struct {
	kv jetstream.KeyValue
}

func NewNATS(ctx context.Context, js jetstream.JetStream, bucket string, ttl time.Duration) (*NATS, error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "flagdash rooms",
		TTL:         ttl,
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("key value bucket %s: %w", bucket, err)
	}
	return &NATS{kv: kv}, nil
}

// kvKey avoids ':' which is not a legal key character in a bucket.
func kvKey(roomID string) string { return "room." + roomID }

func (s *NATS) Create(ctx context.Context, roomID string, room *game.Room) error {
	return s.Put(ctx, roomID, room)
}

func (s *NATS) Get(ctx context.Context, roomID string) (*game.Room, error) {
	entry, err := s.kv.Get(ctx, kvKey(roomID))
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
		return nil, game.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv get: %w", err)
	}
	return decode(entry.Value())
}

func (s *NATS) Put(ctx context.Context, roomID string, room *game.Room) error {
	b, err := encode(room)
	if err != nil {
		return err
	}
	if _, err := s.kv.Put(ctx, kvKey(roomID), b); err != nil {
		return fmt.Errorf("kv put: %w", err)
	}
	return nil
}
