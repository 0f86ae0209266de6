package game

import (
    "time"
)

// SoloState is the single-player progress kept in the player's session.
type SoloState struct {
    FlagID    string
    StartTime time.Time
    Score     int
}

// SoloAnswer scores a single-player guess against the flag currently shown.
// Late guesses and guesses without a shown flag are ignored and produce no
// message.
func (e *Engine) SoloAnswer(st *SoloState, choice string, now time.Time) string {
    if st.StartTime.IsZero() || now.Sub(st.StartTime) > e.duration {
        return ""
    }
    if st.FlagID == "" || choice == "" || !e.catalog.Contains(choice) {
        return ""
    }
    if e.sameFlag(st.FlagID, choice) {
        st.Score += pointsCorrect
        return soloMsgCorrect
    }
    st.Score = max(0, st.Score-penaltyWrong)
    return soloMsgWrong
}

// NextSolo draws a fresh round and points the state at it.
func (e *Engine) NextSolo(st *SoloState) (Round, error) {
    r, err := e.NewRound()
    if err != nil {
        return Round{}, err
    }
    st.FlagID = r.FlagID
    st.StartTime = r.StartTime
    return r, nil
}
