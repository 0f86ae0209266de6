package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kiliankoe/flagdash/internal/game"
	"github.com/rs/zerolog/log"
)

type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Retrying retries transient store failures with exponential backoff. A
// missing room is a definitive answer and is returned immediately.
type Retrying struct {
	next   game.Store
	policy RetryPolicy
}

func NewRetrying(next game.Store, policy RetryPolicy) *Retrying {
	return &Retrying{next: next, policy: policy}
}

func (r *Retrying) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.InitialInterval
	b.MaxInterval = r.policy.MaxInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, r.policy.MaxRetries), ctx)
}

func (r *Retrying) notify(op, roomID string) backoff.Notify {
	return func(err error, wait time.Duration) {
		log.Warn().Err(err).Str("op", op).Str("room_id", roomID).Dur("wait", wait).Msg("room store call failed, retrying")
	}
}

func permanent(err error) error {
	if errors.Is(err, game.ErrRoomNotFound) {
		return backoff.Permanent(err)
	}
	return err
}

func unavailable(err error) error {
	if err == nil || errors.Is(err, game.ErrRoomNotFound) {
		return err
	}
	return fmt.Errorf("%w: %w", game.ErrStoreUnavailable, err)
}

func (r *Retrying) Create(ctx context.Context, roomID string, room *game.Room) error {
	err := backoff.RetryNotify(func() error {
		return r.next.Create(ctx, roomID, room)
	}, r.backoff(ctx), r.notify("create", roomID))
	return unavailable(err)
}

func (r *Retrying) Get(ctx context.Context, roomID string) (*game.Room, error) {
	room, err := backoff.RetryNotifyWithData(func() (*game.Room, error) {
		room, err := r.next.Get(ctx, roomID)
		return room, permanent(err)
	}, r.backoff(ctx), r.notify("get", roomID))
	return room, unavailable(err)
}

func (r *Retrying) Put(ctx context.Context, roomID string, room *game.Room) error {
	err := backoff.RetryNotify(func() error {
		return r.next.Put(ctx, roomID, room)
	}, r.backoff(ctx), r.notify("put", roomID))
	return unavailable(err)
}
