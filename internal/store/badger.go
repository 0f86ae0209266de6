package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/kiliankoe/flagdash/internal/game"
)

// Badger keeps rooms in an embedded database. Entries carry a TTL so idle
// rooms vanish the same way they do in Redis. It is local to one process.
type Badger struct {
	db  *badger.DB
	ttl time.Duration
}

func OpenBadger(path string, ttl time.Duration) (*Badger, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return NewBadger(db, ttl), nil
}

func NewBadger(db *badger.DB, ttl time.Duration) *Badger {
	return &Badger{db: db, ttl: ttl}
}

func (s *Badger) Create(ctx context.Context, roomID string, room *game.Room) error {
	return s.Put(ctx, roomID, room)
}

func (s *Badger) Get(_ context.Context, roomID string) (*game.Room, error) {
	var b []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(Key(roomID)))
		if err != nil {
			return err
		}
		b, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, game.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return decode(b)
}

func (s *Badger) Put(_ context.Context, roomID string, room *game.Room) error {
	b, err := encode(room)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(Key(roomID)), b).WithTTL(s.ttl))
	})
}

func (s *Badger) Close() error { return s.db.Close() }
