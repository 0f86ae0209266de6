package game

import (
    "fmt"
    "math/rand"
    "sync"
    "time"

    "github.com/google/uuid"
    "github.com/jonboulle/clockwork"
    "github.com/kiliankoe/flagdash/internal/catalog"
)

const (
    optionCount    = 4
    pointsCorrect  = 100
    penaltyWrong   = 1
    soloMsgCorrect = "Richtig!"
    soloMsgWrong   = "Falsch!"
)

// Engine generates rounds and scores answers. It holds no room state.
type Engine struct {
    catalog  *catalog.Catalog
    clock    clockwork.Clock
    duration time.Duration

    mu  sync.Mutex // guards rng
    rng *rand.Rand
}

func NewEngine(c *catalog.Catalog, clock clockwork.Clock, roundDuration time.Duration, rng *rand.Rand) *Engine {
    if rng == nil {
        rng = rand.New(rand.NewSource(time.Now().UnixNano()))
    }
    return &Engine{catalog: c, clock: clock, duration: roundDuration, rng: rng}
}

func (e *Engine) RoundDuration() time.Duration { return e.duration }

func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

func (e *Engine) Now() time.Time { return e.clock.Now() }

// Ready reports whether the catalog holds enough flags to fill a round's
// options.
func (e *Engine) Ready() error {
    return e.catalog.Require(optionCount)
}

// NewRound picks a target and three distractors and shuffles them.
func (e *Engine) NewRound() (Round, error) {
    e.mu.Lock()
    target := e.catalog.Random(e.rng)
    wrong, err := e.catalog.SampleDistinct(e.rng, target, optionCount-1)
    if err != nil {
        e.mu.Unlock()
        return Round{}, fmt.Errorf("new round: %w", err)
    }
    options := append(wrong, target)
    e.rng.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })
    e.mu.Unlock()

    return Round{
        ID:          uuid.NewString(),
        FlagID:      target,
        FlagFile:    catalog.FlagFile(target),
        Options:     options,
        OptionNames: e.catalog.Names(options),
        StartTime:   e.clock.Now().UTC(),
        Answers:     make(map[string]Answer),
    }, nil
}

// Deadline is the instant after which answers to r are rejected.
func (e *Engine) Deadline(r *Round) time.Time {
    return r.StartTime.Add(e.duration)
}

// RecordAnswer validates a submission and inserts it into the round's ledger.
// Only the first answer per participant is kept; repeats are reported as
// accepted but leave the ledger unchanged.
func (e *Engine) RecordAnswer(r *Round, participantID, choiceID string, now time.Time) AnswerOutcome {
    if now.Sub(r.StartTime) > e.duration {
        return AnswerOutcome{Status: AnswerTimeout}
    }
    if !e.catalog.Contains(choiceID) {
        return AnswerOutcome{Status: AnswerInvalidChoice}
    }
    if _, ok := r.Answers[participantID]; ok {
        return AnswerOutcome{Status: AnswerAccepted}
    }
    if r.Answers == nil {
        r.Answers = make(map[string]Answer)
    }
    r.Answers[participantID] = Answer{Choice: choiceID, Correct: e.sameFlag(r.FlagID, choiceID)}
    return AnswerOutcome{Status: AnswerAccepted, Recorded: true}
}

// sameFlag compares by display name, so two ids sharing a name are
// interchangeable answers.
func (e *Engine) sameFlag(targetID, choiceID string) bool {
    want, err := e.catalog.Lookup(targetID)
    if err != nil {
        return false
    }
    got, err := e.catalog.Lookup(choiceID)
    if err != nil {
        return false
    }
    return want == got
}

// ScoreRound applies the round's answers to the participants in place and
// returns the delta actually applied to each participant that answered.
func (e *Engine) ScoreRound(r *Round, participants map[string]*Participant) map[string]int {
    deltas := make(map[string]int)
    for id, p := range participants {
        if p == nil {
            continue
        }
        ans, ok := r.Answers[id]
        if !ok {
            continue
        }
        before := p.Score
        if ans.Correct {
            p.Score += pointsCorrect
        } else {
            p.Score = max(0, p.Score-penaltyWrong)
        }
        deltas[id] = p.Score - before
    }
    return deltas
}

func Scores(participants map[string]*Participant) map[string]int {
    out := make(map[string]int, len(participants))
    for id, p := range participants {
        if p != nil {
            out[id] = p.Score
        }
    }
    return out
}

func (e *Engine) RoundStart(r *Round, now time.Time) RoundStartEvent {
    remaining := e.Deadline(r).Sub(now)
    if remaining < 0 {
        remaining = 0
    }
    return RoundStartEvent{
        FlagFile:      r.FlagFile,
        Options:       r.Options,
        OptionNames:   r.OptionNames,
        TimeLimit:     int(e.duration / time.Second),
        TimeRemaining: remaining.Seconds(),
    }
}

func (e *Engine) RoundResult(r *Round, participants map[string]*Participant) RoundResultEvent {
    name, _ := e.catalog.Lookup(r.FlagID)
    return RoundResultEvent{
        CorrectFlagID:   r.FlagID,
        CorrectFlagName: name,
        Scores:          Scores(participants),
    }
}
