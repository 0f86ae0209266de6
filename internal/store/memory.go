package store

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/kiliankoe/flagdash/internal/game"
)

type memEntry struct {
	data    []byte
	expires time.Time
}

// Memory is a process-local Store. Values are kept encoded so every Get
// hands out an independent snapshot.
type Memory struct {
	clock clockwork.Clock
	ttl   time.Duration

	mu    sync.Mutex
	rooms map[string]memEntry
}

func NewMemory(clock clockwork.Clock, ttl time.Duration) *Memory {
	return &Memory{clock: clock, ttl: ttl, rooms: make(map[string]memEntry)}
}

func (m *Memory) Create(ctx context.Context, roomID string, room *game.Room) error {
	return m.Put(ctx, roomID, room)
}

func (m *Memory) Get(_ context.Context, roomID string) (*game.Room, error) {
	m.mu.Lock()
	e, ok := m.rooms[Key(roomID)]
	if ok && !m.clock.Now().Before(e.expires) {
		delete(m.rooms, Key(roomID))
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return nil, game.ErrRoomNotFound
	}
	return decode(e.data)
}

func (m *Memory) Put(_ context.Context, roomID string, room *game.Room) error {
	b, err := encode(room)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[Key(roomID)] = memEntry{data: b, expires: m.clock.Now().Add(m.ttl)}
	return nil
}

// Sweep drops expired rooms and reports how many were removed.
func (m *Memory) Sweep() int {
	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.rooms {
		if !now.Before(e.expires) {
			delete(m.rooms, k)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Memory) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.Sweep()
		}
	}
}
