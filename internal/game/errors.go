package game

import "errors"

var (
    ErrRoomNotFound          = errors.New("room not found")
    ErrRoomNotReady          = errors.New("room not ready")
    ErrInvalidChoice         = errors.New("invalid choice")
    ErrTimeout               = errors.New("answer window closed")
    ErrIDGenerationExhausted = errors.New("could not create room")
    ErrStoreUnavailable      = errors.New("room store unavailable")
)

// Message is the client-facing text for an error surfaced at the boundary.
func Message(err error) string {
    switch {
    case errors.Is(err, ErrRoomNotFound):
        return "Room not found"
    case errors.Is(err, ErrRoomNotReady):
        return "Room not ready"
    case errors.Is(err, ErrIDGenerationExhausted):
        return "Could not create room"
    case errors.Is(err, ErrStoreUnavailable):
        return "Service temporarily unavailable"
    case errors.Is(err, ErrInvalidChoice):
        return "invalid_choice"
    case errors.Is(err, ErrTimeout):
        return "timeout"
    }
    return "Internal error"
}
