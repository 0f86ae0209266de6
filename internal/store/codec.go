package store

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/kiliankoe/flagdash/internal/game"
)

const keyPrefix = "room:"

// Key is the persisted key for a room.
func Key(roomID string) string { return keyPrefix + roomID }

func encode(room *game.Room) ([]byte, error) {
	b, err := json.Marshal(room)
	if err != nil {
		return nil, fmt.Errorf("encode room: %w", err)
	}
	return b, nil
}

func decode(b []byte) (*game.Room, error) {
	var room game.Room
	if err := json.Unmarshal(b, &room); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	return &room, nil
}
