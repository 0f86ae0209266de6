package game

import (
    "context"
    "errors"
    "fmt"
    "math/rand"
    "sync"
    "time"

    "github.com/jonboulle/clockwork"
    "github.com/kiliankoe/flagdash/internal/scheduler"
    "github.com/rs/zerolog/log"
)

// fireTolerance absorbs timer jitter before a fire counts as early.
const fireTolerance = 50 * time.Millisecond

// Store holds whole Room values under a time-to-live refreshed on every
// write. Without Settings.Serialize concurrent read-modify-write cycles on the
// same room are last-write-wins and may drop an update.
type Store interface {
    Create(ctx context.Context, roomID string, room *Room) error
    Get(ctx context.Context, roomID string) (*Room, error)
    Put(ctx context.Context, roomID string, room *Room) error
}

// Publisher fans an event out to every connection subscribed to a room.
type Publisher interface {
    Publish(roomID, event string, payload any)
}

type Timers interface {
    Arm(t scheduler.Task)
}

type Settings struct {
    IDLength   int
    IDAlphabet string
    IDAttempts int
    // Serialize wraps every room mutation in a per-room mutex.
    Serialize bool
}

type RoomManager struct {
    store  Store
    engine *Engine
    clock  clockwork.Clock
    cfg    Settings

    pub    Publisher
    timers Timers
    export *Exporter
    locks  *roomLocks

    rngMu sync.Mutex
    rng   *rand.Rand
    newID func() string
}

func NewRoomManager(store Store, engine *Engine, clock clockwork.Clock, cfg Settings) *RoomManager {
    rm := &RoomManager{
        store:  store,
        engine: engine,
        clock:  clock,
        cfg:    cfg,
        pub:    nopPublisher{},
        timers: nopTimers{},
        rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
    }
    if cfg.Serialize {
        rm.locks = newRoomLocks()
    }
    rm.newID = func() string {
        rm.rngMu.Lock()
        defer rm.rngMu.Unlock()
        return randomCode(rm.rng, rm.cfg.IDAlphabet, rm.cfg.IDLength)
    }
    return rm
}

func (rm *RoomManager) SetPublisher(p Publisher) { rm.pub = p }
func (rm *RoomManager) SetTimers(t Timers)       { rm.timers = t }
func (rm *RoomManager) SetExporter(e *Exporter)  { rm.export = e }

func (rm *RoomManager) Engine() *Engine { return rm.engine }

func (rm *RoomManager) lock(roomID string) func() {
    if rm.locks == nil {
        return func() {}
    }
    return rm.locks.lock(roomID)
}

// CreateRoom allocates a fresh room id, retrying on collision.
func (rm *RoomManager) CreateRoom(ctx context.Context) (string, error) {
    for i := 0; i < rm.cfg.IDAttempts; i++ {
        code := rm.newID()
        _, err := rm.store.Get(ctx, code)
        if err == nil {
            log.Debug().Str("room_id", code).Int("attempt", i+1).Msg("room id collision")
            continue
        }
        if !errors.Is(err, ErrRoomNotFound) {
            return "", fmt.Errorf("check room id: %w", err)
        }
        room := &Room{
            RoomID:       code,
            Participants: make(map[string]*Participant),
            CreatedAt:    rm.clock.Now().UTC(),
        }
        if err := rm.store.Create(ctx, code, room); err != nil {
            return "", fmt.Errorf("create room: %w", err)
        }
        return code, nil
    }
    return "", ErrIDGenerationExhausted
}

// Join adds the participant to the room (score 0 when new), makes sure a
// round is running and arms the room's round timer.
func (rm *RoomManager) Join(ctx context.Context, roomID, participantID string) (*JoinResult, error) {
    unlock := rm.lock(roomID)
    defer unlock()

    room, err := rm.store.Get(ctx, roomID)
    if err != nil {
        return nil, err
    }
    if room.Participants == nil {
        room.Participants = make(map[string]*Participant)
    }
    p, ok := room.Participants[participantID]
    if !ok || p == nil {
        p = &Participant{}
        room.Participants[participantID] = p
    }
    if room.Round == nil {
        r, err := rm.engine.NewRound()
        if err != nil {
            return nil, err
        }
        room.Round = &r
    }
    if err := rm.store.Put(ctx, roomID, room); err != nil {
        return nil, fmt.Errorf("save room: %w", err)
    }

    rm.timers.Arm(scheduler.Task{RoomID: roomID, RoundID: room.Round.ID, At: rm.engine.Deadline(room.Round)})

    return &JoinResult{
        RoomID:        roomID,
        ParticipantID: participantID,
        Score:         p.Score,
        Round:         *room.Round,
        Start:         rm.engine.RoundStart(room.Round, rm.clock.Now()),
    }, nil
}

// SubmitAnswer records a participant's guess for the running round. The room
// is only written back when the answer ledger changed.
func (rm *RoomManager) SubmitAnswer(ctx context.Context, roomID, participantID, choice string) (AnswerOutcome, error) {
    unlock := rm.lock(roomID)
    defer unlock()

    room, err := rm.store.Get(ctx, roomID)
    if errors.Is(err, ErrRoomNotFound) {
        return AnswerOutcome{}, ErrRoomNotReady
    }
    if err != nil {
        return AnswerOutcome{}, err
    }
    if room.Round == nil {
        return AnswerOutcome{}, ErrRoomNotReady
    }

    out := rm.engine.RecordAnswer(room.Round, participantID, choice, rm.clock.Now())
    if out.Recorded {
        if err := rm.store.Put(ctx, roomID, room); err != nil {
            return AnswerOutcome{}, fmt.Errorf("save answer: %w", err)
        }
    }
    return out, nil
}

// EndRound is the round timer callback. It scores the finished round,
// announces the result, seeds the next round and asks to be rearmed for it.
func (rm *RoomManager) EndRound(ctx context.Context, t scheduler.Task) (scheduler.Task, bool) {
    unlock := rm.lock(t.RoomID)
    defer unlock()

    room, err := rm.store.Get(ctx, t.RoomID)
    if errors.Is(err, ErrRoomNotFound) {
        log.Debug().Str("room_id", t.RoomID).Msg("room expired, round timer stopped")
        return scheduler.Task{}, false
    }
    if err != nil {
        log.Error().Err(err).Str("room_id", t.RoomID).Msg("load room for round end")
        return scheduler.Task{}, false
    }
    rnd := room.Round
    if rnd == nil {
        return scheduler.Task{}, false
    }
    if rnd.ID != t.RoundID {
        // t's round already ended; keep the live round's timer armed
        return scheduler.Task{RoomID: t.RoomID, RoundID: rnd.ID, At: rm.engine.Deadline(rnd)}, true
    }

    deadline := rm.engine.Deadline(rnd)
    if rm.clock.Now().Before(deadline.Add(-fireTolerance)) {
        return scheduler.Task{RoomID: t.RoomID, RoundID: rnd.ID, At: deadline}, true
    }

    rm.engine.ScoreRound(rnd, room.Participants)
    result := rm.engine.RoundResult(rnd, room.Participants)
    rm.pub.Publish(t.RoomID, EventRoundResult, result)
    if rm.export != nil {
        if err := rm.export.Round(t.RoomID, rnd, result); err != nil {
            log.Error().Err(err).Str("room_id", t.RoomID).Msg("failed to export round result")
        }
    }

    next, err := rm.engine.NewRound()
    if err != nil {
        log.Error().Err(err).Str("room_id", t.RoomID).Msg("seed next round")
        return scheduler.Task{}, false
    }
    room.Round = &next
    if err := rm.store.Put(ctx, t.RoomID, room); err != nil {
        log.Error().Err(err).Str("room_id", t.RoomID).Msg("save room after round end")
        return scheduler.Task{}, false
    }
    rm.pub.Publish(t.RoomID, EventRoundStart, rm.engine.RoundStart(&next, rm.clock.Now()))

    log.Info().
        Str("room_id", t.RoomID).
        Str("ended", rnd.ID).
        Str("started", next.ID).
        Int("answers", len(rnd.Answers)).
        Msg("round transition")

    return scheduler.Task{RoomID: t.RoomID, RoundID: next.ID, At: rm.engine.Deadline(&next)}, true
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, string, any) {}

type nopTimers struct{}

func (nopTimers) Arm(scheduler.Task) {}

func randomCode(rng *rand.Rand, alphabet string, n int) string {
    letters := []rune(alphabet)
    b := make([]rune, n)
    for i := range b {
        b[i] = letters[rng.Intn(len(letters))]
    }
    return string(b)
}
