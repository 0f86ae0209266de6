package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Task is one pending round end.
type Task struct {
	RoomID  string
	RoundID string
	At      time.Time
}

// FireFunc runs when a task's deadline passes. Returning rearm=true arms next
// for the same room; false ends the room's timer chain.
type FireFunc func(ctx context.Context, t Task) (next Task, rearm bool)

type entry struct {
	task  Task
	timer clockwork.Timer
	done  chan struct{}
}

// Scheduler keeps at most one live timer per room id.
type Scheduler struct {
	clock clockwork.Clock
	fire  FireFunc

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	timers map[string]*entry
	wg     sync.WaitGroup
}

func New(clock clockwork.Clock, fire FireFunc) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		clock:  clock,
		fire:   fire,
		ctx:    ctx,
		cancel: cancel,
		timers: make(map[string]*entry),
	}
}

// Arm schedules t, replacing any pending timer for the same room.
func (s *Scheduler) Arm(t Task) {
	d := t.At.Sub(s.clock.Now())
	if d < 0 {
		d = 0
	}
	e := &entry{task: t, timer: s.clock.NewTimer(d), done: make(chan struct{})}

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		stopAndDrainTimer(e.timer)
		return
	}
	if old, ok := s.timers[t.RoomID]; ok {
		stopEntry(old)
		log.Debug().Str("room_id", t.RoomID).Msg("replaced existing round timer")
	}
	s.timers[t.RoomID] = e
	s.wg.Add(1)
	s.mu.Unlock()

	go s.wait(e)

	log.Debug().
		Str("room_id", t.RoomID).
		Str("round_id", t.RoundID).
		Time("deadline", t.At).
		Dur("duration", d).
		Msg("armed round timer")
}

func (s *Scheduler) wait(e *entry) {
	defer s.wg.Done()
	select {
	case <-e.timer.Chan():
	case <-e.done:
		return
	case <-s.ctx.Done():
		stopAndDrainTimer(e.timer)
		return
	}

	// A concurrent Arm may have replaced us between the tick and here.
	s.mu.Lock()
	if s.timers[e.task.RoomID] != e {
		s.mu.Unlock()
		return
	}
	delete(s.timers, e.task.RoomID)
	s.mu.Unlock()

	next, rearm := s.fire(s.ctx, e.task)
	if rearm {
		s.Arm(next)
	}
}

// Cancel drops the pending timer for roomID, if any.
func (s *Scheduler) Cancel(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.timers[roomID]; ok {
		stopEntry(e)
		delete(s.timers, roomID)
		log.Debug().Str("room_id", roomID).Msg("cancelled round timer")
	}
}

func (s *Scheduler) Pending(roomID string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.timers[roomID]
	if !ok {
		return Task{}, false
	}
	return e.task, true
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every timer and waits for in-flight callbacks to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.cancel()
	for id, e := range s.timers {
		stopEntry(e)
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func stopEntry(e *entry) {
	stopAndDrainTimer(e.timer)
	close(e.done)
}

func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
