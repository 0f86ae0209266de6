package game

import "sync"

// roomLocks serializes read-modify-write cycles per room id within this
// process. Entries are dropped once no goroutine holds or waits on them.
type roomLocks struct {
    mu    sync.Mutex
    locks map[string]*roomLock
}

type roomLock struct {
    mu   sync.Mutex
    refs int
}

func newRoomLocks() *roomLocks {
    return &roomLocks{locks: make(map[string]*roomLock)}
}

func (l *roomLocks) lock(roomID string) func() {
    l.mu.Lock()
    rl := l.locks[roomID]
    if rl == nil {
        rl = &roomLock{}
        l.locks[roomID] = rl
    }
    rl.refs++
    l.mu.Unlock()

    rl.mu.Lock()
    return func() {
        rl.mu.Unlock()
        l.mu.Lock()
        rl.refs--
        if rl.refs == 0 {
            delete(l.locks, roomID)
        }
        l.mu.Unlock()
    }
}

func (l *roomLocks) size() int {
    l.mu.Lock()
    defer l.mu.Unlock()
    return len(l.locks)
}
