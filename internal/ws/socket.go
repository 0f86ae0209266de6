package ws

import (
    "context"
    "net/http"
    "time"

    "github.com/gin-gonic/gin"
    "github.com/go-playground/validator/v10"
    socketio "github.com/googollee/go-socket.io"
    "github.com/kiliankoe/flagdash/internal/game"
    "github.com/kiliankoe/flagdash/internal/session"
    "github.com/rs/zerolog/log"
)

// handlerTimeout bounds the store work done for a single inbound event.
const handlerTimeout = 5 * time.Second

type ConnCtx struct {
    ParticipantID string
    RoomID        string // last joined room, empty before join_room
}

type JoinRoomPayload struct {
    RoomID string `json:"room_id" validate:"required,max=64"`
}

type SubmitAnswerPayload struct {
    RoomID string `json:"room_id" validate:"required,max=64"`
    Choice string `json:"choice"`
}

// peer is the part of a socket.io connection the handlers talk to.
type peer interface {
    ID() string
    Emit(event string, v ...interface{})
    Join(room string)
    Leave(room string)
}

type Server struct {
    RM       *game.RoomManager
    sessions *session.Manager
    validate *validator.Validate

    io      *socketio.Server
    pub     game.Publisher
    adapter *socketio.RedisAdapterOptions
}

func New(rm *game.RoomManager, sessions *session.Manager) *Server {
    srv := &Server{RM: rm, sessions: sessions, validate: validator.New()}
    srv.pub = srv
    return srv
}

// SetPublisher routes room broadcasts through p (for example a cross-process
// relay) instead of straight to this server's connections.
func (srv *Server) SetPublisher(p game.Publisher) { srv.pub = p }

// UseRedisAdapter makes broadcasts fan out through redis so every server
// process reaches its own members of a room. Call before Mount.
func (srv *Server) UseRedisAdapter(addr, password string, db int, prefix string) {
    srv.adapter = &socketio.RedisAdapterOptions{
        Addr:     addr,
        Prefix:   prefix,
        Network:  "tcp",
        Password: password,
        DB:       db,
    }
}

// Publish broadcasts to the connections of roomID held by this process.
func (srv *Server) Publish(roomID, event string, payload any) {
    if srv.io == nil {
        return
    }
    srv.io.BroadcastToRoom("/", roomID, event, payload)
}

// Mount attaches the Socket.IO server with handlers to the given Gin engine.
func (srv *Server) Mount(r *gin.Engine) (*socketio.Server, error) {
    io := socketio.NewServer(nil)
    if srv.adapter != nil {
        if _, err := io.Adapter(srv.adapter); err != nil {
            return nil, err
        }
        log.Info().Str("addr", srv.adapter.Addr).Msg("socket.io redis adapter enabled")
    }
    srv.io = io

    io.OnConnect("/", func(s socketio.Conn) error {
        pid := ""
        if claims, ok := srv.sessions.FromHeader(s.RemoteHeader()); ok {
            pid = claims.SID
        } else {
            pid = srv.sessions.NewID()
        }
        s.SetContext(&ConnCtx{ParticipantID: pid})
        log.Info().Str("sid", s.ID()).Str("participant_id", pid).Msg("socket connected")
        return nil
    })

    io.OnEvent("/", "join_room", func(s socketio.Conn, payload JoinRoomPayload) {
        srv.joinRoom(s, connCtx(s), payload)
    })

    io.OnEvent("/", "submit_answer", func(s socketio.Conn, payload SubmitAnswerPayload) {
        srv.submitAnswer(s, connCtx(s), payload)
    })

    io.OnError("/", func(s socketio.Conn, e error) {
        if s == nil {
            log.Error().Err(e).Msg("socket error")
            return
        }
        log.Error().Str("sid", s.ID()).Err(e).Msg("socket error")
    })
    io.OnDisconnect("/", func(s socketio.Conn, reason string) {
        log.Info().Str("sid", s.ID()).Str("reason", reason).Msg("socket disconnected")
    })

    go func() {
        if err := io.Serve(); err != nil {
            log.Error().Err(err).Msg("socket.io serve")
        }
    }()

    r.GET("/socket.io/*any", gin.WrapH(io))
    r.POST("/socket.io/*any", gin.WrapH(io))

    // Basic CORS preflight for Socket.IO POST
    r.OPTIONS("/socket.io/*any", func(c *gin.Context) {
        c.Header("Access-Control-Allow-Origin", "*")
        c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
        c.Header("Access-Control-Allow-Headers", "Content-Type")
        c.Status(http.StatusNoContent)
    })

    return io, nil
}

func connCtx(s socketio.Conn) *ConnCtx {
    if ctx, ok := s.Context().(*ConnCtx); ok && ctx != nil {
        return ctx
    }
    ctx := &ConnCtx{}
    s.SetContext(ctx)
    return ctx
}

func (srv *Server) joinRoom(s peer, cc *ConnCtx, payload JoinRoomPayload) {
    if err := srv.validate.Struct(payload); err != nil {
        srv.err(s, game.ErrRoomNotFound)
        return
    }
    if cc.ParticipantID == "" {
        cc.ParticipantID = srv.sessions.NewID()
    }

    ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
    defer cancel()
    res, err := srv.RM.Join(ctx, payload.RoomID, cc.ParticipantID)
    if err != nil {
        log.Warn().Err(err).Str("sid", s.ID()).Str("room_id", payload.RoomID).Msg("join_room rejected")
        srv.err(s, err)
        return
    }

    if cc.RoomID != "" && cc.RoomID != res.RoomID {
        s.Leave(cc.RoomID)
    }
    cc.RoomID = res.RoomID
    s.Join(res.RoomID)

    log.Info().
        Str("sid", s.ID()).
        Str("room_id", res.RoomID).
        Str("participant_id", res.ParticipantID).
        Str("round_id", res.Round.ID).
        Msg("join_room")

    s.Emit(game.EventJoined, game.JoinedEvent{
        RoomID:        res.RoomID,
        YourSessionID: res.ParticipantID,
        Score:         res.Score,
    })
    srv.pub.Publish(res.RoomID, game.EventRoundStart, res.Start)
}

func (srv *Server) submitAnswer(s peer, cc *ConnCtx, payload SubmitAnswerPayload) {
    // The choice is classified by the round itself, after the room and
    // timeout checks.
    if err := srv.validate.StructPartial(payload, "RoomID"); err != nil || cc.ParticipantID == "" {
        srv.err(s, game.ErrRoomNotReady)
        return
    }

    ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
    defer cancel()
    out, err := srv.RM.SubmitAnswer(ctx, payload.RoomID, cc.ParticipantID, payload.Choice)
    if err != nil {
        log.Warn().Err(err).Str("sid", s.ID()).Str("room_id", payload.RoomID).Msg("submit_answer rejected")
        srv.err(s, err)
        return
    }

    ack := game.AnswerAckEvent{Accepted: out.Accepted()}
    if !ack.Accepted {
        ack.Reason = string(out.Status)
    }
    log.Debug().
        Str("room_id", payload.RoomID).
        Str("participant_id", cc.ParticipantID).
        Str("status", string(out.Status)).
        Bool("recorded", out.Recorded).
        Msg("submit_answer")
    s.Emit(game.EventAnswerAck, ack)
}

func (srv *Server) err(s peer, err error) {
    s.Emit(game.EventError, game.ErrorEvent{Message: game.Message(err)})
}
