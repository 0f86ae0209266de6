package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Deliverer hands a relayed event to the local realtime gateway.
type Deliverer interface {
	Publish(roomID, event string, payload any)
}

// Conn is the subset of *nats.Conn the relay needs.
type Conn interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
}

type envelope struct {
	Origin  string          `json:"origin"`
	Room    string          `json:"room"`
	Event   string          `json:"event"`
	Sent    time.Time       `json:"sent"`
	Payload json.RawMessage `json:"payload"`
}

// Connect dials NATS with reconnect handling logged through zerolog.
func Connect(url string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("flagdash"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// Bus relays room events between server processes. Events published here
// reach local connections immediately and every other process through
// <subject>.<roomID>.
type Bus struct {
	conn    Conn
	subject string
	origin  string
	local   Deliverer
	now     func() time.Time
}

func New(conn Conn, subject string, local Deliverer) *Bus {
	return &Bus{
		conn:    conn,
		subject: subject,
		origin:  uuid.NewString(),
		local:   local,
		now:     time.Now,
	}
}

func (b *Bus) Origin() string { return b.origin }

func (b *Bus) Publish(roomID, event string, payload any) {
	b.local.Publish(roomID, event, payload)

	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Str("event", event).Msg("encode relayed event")
		return
	}
	data, err := json.Marshal(envelope{Origin: b.origin, Room: roomID, Event: event, Sent: b.now().UTC(), Payload: raw})
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("encode envelope")
		return
	}
	if err := b.conn.Publish(b.subject+"."+roomID, data); err != nil {
		log.Error().Err(err).Str("room_id", roomID).Str("event", event).Msg("relay event")
	}
}

// Start subscribes to every room subject and blocks until ctx is done.
func (b *Bus) Start(ctx context.Context) error {
	sub, err := b.conn.Subscribe(b.subject+".>", b.handle)
	if err != nil {
		return fmt.Errorf("subscribe %s.>: %w", b.subject, err)
	}
	log.Info().Str("subject", b.subject).Str("origin", b.origin).Msg("room event relay started")

	<-ctx.Done()
	if err := sub.Unsubscribe(); err != nil {
		log.Warn().Err(err).Msg("unsubscribe room relay")
	}
	log.Info().Msg("room event relay stopped")
	return nil
}

func (b *Bus) handle(msg *nats.Msg) {
	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		log.Error().Err(err).Str("subject", msg.Subject).Msg("decode relayed event")
		return
	}
	if env.Origin == b.origin {
		return
	}
	log.Debug().
		Str("room_id", env.Room).
		Str("event", env.Event).
		Dur("lag", b.now().Sub(env.Sent)).
		Msg("relayed event")
	b.local.Publish(env.Room, env.Event, env.Payload)
}
