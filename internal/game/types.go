package game

import (
    "time"
)

type AnswerStatus string

const (
    AnswerAccepted      AnswerStatus = "accepted"
    AnswerTimeout       AnswerStatus = "timeout"
    AnswerInvalidChoice AnswerStatus = "invalid_choice"
)

// Err maps a rejection onto the error taxonomy. Accepted answers map to nil.
func (s AnswerStatus) Err() error {
    switch s {
    case AnswerTimeout:
        return ErrTimeout
    case AnswerInvalidChoice:
        return ErrInvalidChoice
    }
    return nil
}

type Participant struct {
    Score int `json:"score"`
}

type Answer struct {
    Choice  string `json:"choice"`
    Correct bool   `json:"correct"`
}

type Round struct {
    ID          string            `json:"id"`
    FlagID      string            `json:"flag_id"`
    FlagFile    string            `json:"flag_file"`
    Options     []string          `json:"options"`
    OptionNames []string          `json:"option_names"`
    StartTime   time.Time         `json:"start_time"`
    Answers     map[string]Answer `json:"answers"` // participantID -> first answer
}

// Room is the unit persisted in the Store. Handlers always work on a
// checked-out copy and write the whole value back.
type Room struct {
    RoomID       string                  `json:"room_id"`
    Participants map[string]*Participant `json:"players"`
    Round        *Round                  `json:"round"`
    CreatedAt    time.Time               `json:"created_at"`
}

type AnswerOutcome struct {
    Status AnswerStatus
    // Recorded is false when the ledger was left untouched, either because
    // the answer was rejected or because the participant already answered.
    Recorded bool
}

func (o AnswerOutcome) Accepted() bool { return o.Status == AnswerAccepted }

type JoinResult struct {
    RoomID        string
    ParticipantID string
    Score         int
    Round         Round
    Start         RoundStartEvent
}

// Realtime event names.
const (
    EventJoined      = "joined"
    EventRoundStart  = "round_start"
    EventRoundResult = "round_result"
    EventAnswerAck   = "answer_ack"
    EventError       = "error"
)

type JoinedEvent struct {
    RoomID        string `json:"room_id"`
    YourSessionID string `json:"your_session_id"`
    Score         int    `json:"score"`
}

type RoundStartEvent struct {
    FlagFile      string   `json:"flag_file"`
    Options       []string `json:"options"`
    OptionNames   []string `json:"option_names"`
    TimeLimit     int      `json:"time_limit"` // seconds
    TimeRemaining float64  `json:"time_remaining"`
}

type RoundResultEvent struct {
    CorrectFlagID   string         `json:"correct_flag_id"`
    CorrectFlagName string         `json:"correct_flag_name"`
    Scores          map[string]int `json:"scores"`
}

type AnswerAckEvent struct {
    Accepted bool   `json:"accepted"`
    Reason   string `json:"reason,omitempty"`
}

type ErrorEvent struct {
    Message string `json:"message"`
}
