package main

import (
    "context"
    "errors"
    "fmt"
    "net/http"
    "time"

    "github.com/gin-gonic/gin"
    "github.com/jonboulle/clockwork"
    "github.com/kiliankoe/flagdash/internal/bus"
    "github.com/kiliankoe/flagdash/internal/catalog"
    "github.com/kiliankoe/flagdash/internal/config"
    "github.com/kiliankoe/flagdash/internal/game"
    "github.com/kiliankoe/flagdash/internal/scheduler"
    "github.com/kiliankoe/flagdash/internal/session"
    "github.com/kiliankoe/flagdash/internal/store"
    "github.com/kiliankoe/flagdash/internal/web"
    "github.com/kiliankoe/flagdash/internal/ws"
    staticserver "github.com/kiliankoe/flagdash/static"
    "github.com/nats-io/nats.go"
    "github.com/nats-io/nats.go/jetstream"
    "github.com/rs/zerolog/log"
)

const (
    socketRedisPrefix = "flagdash"
    sweepInterval     = time.Minute
    shutdownTimeout   = 5 * time.Second
)

func serve(ctx context.Context, cfg config.Config) error {
    if cfg.SessionSecret == config.DefaultSessionSecret {
        log.Warn().Msg("using the development session secret; set FLAGDASH_SESSION_SECRET in production")
    }

    flags, err := catalog.Load(cfg.FlagsFile)
    if err != nil {
        return err
    }
    if cfg.LocalBroadcastOnSharedStore() {
        log.Warn().
            Str("store", cfg.StoreBackend).
            Msg("broadcast=local with a shared room store: other processes' players will miss round events")
    }

    log.Info().Int("flags", flags.Len()).Str("file", cfg.FlagsFile).Msg("flag catalog loaded")

    var nc *nats.Conn
    if cfg.StoreBackend == "nats" || cfg.Broadcast == "nats" {
        if nc, err = bus.Connect(cfg.NatsURL); err != nil {
            return err
        }
        defer nc.Close()
    }

    clock := clockwork.NewRealClock()
    backend, closeStore, err := openStore(ctx, cfg, clock, nc)
    if err != nil {
        return err
    }
    defer closeStore()
    rooms := store.NewRetrying(backend, store.RetryPolicy{
        MaxRetries:      cfg.StoreRetries,
        InitialInterval: cfg.StoreRetryWait,
        MaxInterval:     2 * time.Second,
    })

    engine := game.NewEngine(flags, clock, cfg.RoundDuration, nil)
    if err := engine.Ready(); err != nil {
        return fmt.Errorf("flags file %s: %w", cfg.FlagsFile, err)
    }
    rm := game.NewRoomManager(rooms, engine, clock, game.Settings{
        IDLength:   cfg.RoomIDLength,
        IDAlphabet: cfg.RoomIDAlphabet,
        IDAttempts: cfg.RoomIDAttempts,
        Serialize:  cfg.SerializeRooms,
    })
    sched := scheduler.New(clock, rm.EndRound)
    defer sched.Stop()
    rm.SetTimers(sched)
    if cfg.ExportEnabled {
        rm.SetExporter(game.NewExporter(cfg.ExportFile, nil))
        log.Info().Str("file", cfg.ExportFile).Msg("round export enabled")
    }

    sessions := session.NewManager(session.Config{
        Secret:   cfg.SessionSecret,
        Secure:   cfg.SecureCookies,
        IDLength: cfg.SessionIDLength,
    })

    sock := ws.New(rm, sessions)
    var pub game.Publisher = sock
    switch cfg.Broadcast {
    case "redis":
        sock.UseRedisAdapter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, socketRedisPrefix)
    case "nats":
        relay := bus.New(nc, cfg.NatsSubject, sock)
        pub = relay
        go func() {
            if err := relay.Start(ctx); err != nil {
                log.Error().Err(err).Msg("room event relay")
            }
        }()
    }
    sock.SetPublisher(pub)
    rm.SetPublisher(pub)

    gin.SetMode(gin.ReleaseMode)
    r := web.NewRouter()
    io, err := sock.Mount(r)
    if err != nil {
        return fmt.Errorf("mount socket.io: %w", err)
    }
    defer io.Close()

    h := &web.Handlers{
        Rooms:    rm,
        Sessions: sessions,
        Engine:   engine,
        Pages:    staticserver.Page,
        Static:   staticserver.Handler(),
    }
    h.Register(r)

    srv := &http.Server{
        Addr:              ":" + cfg.Port,
        Handler:           r,
        ReadHeaderTimeout: 10 * time.Second,
    }
    errs := make(chan error, 1)
    go func() {
        log.Info().
            Str("port", cfg.Port).
            Str("store", cfg.StoreBackend).
            Str("broadcast", cfg.Broadcast).
            Dur("round", cfg.RoundDuration).
            Msg("listening")
        if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            errs <- err
        }
    }()

    select {
    case err := <-errs:
        return err
    case <-ctx.Done():
    }
    log.Info().Msg("shutting down")
    shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
    defer cancel()
    return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.Config, clock clockwork.Clock, nc *nats.Conn) (game.Store, func(), error) {
    switch cfg.StoreBackend {
    case "memory":
        mem := store.NewMemory(clock, cfg.RoomTTL)
        go mem.RunSweeper(ctx, sweepInterval)
        log.Warn().Msg("memory room store: rooms are not shared between processes")
        return mem, func() {}, nil
    case "redis":
        r := store.NewRedis(store.NewRedisPool(store.RedisConfig{
            Addr:     cfg.RedisAddr,
            Password: cfg.RedisPassword,
            DB:       cfg.RedisDB,
        }), cfg.RoomTTL)
        return r, func() { _ = r.Close() }, nil
    case "nats":
        js, err := jetstream.New(nc)
        if err != nil {
            return nil, nil, fmt.Errorf("create JetStream context: %w", err)
        }
        kv, err := store.NewNATS(ctx, js, cfg.NatsBucket, cfg.RoomTTL)
        if err != nil {
            return nil, nil, err
        }
        return kv, func() {}, nil
    case "badger":
        db, err := store.OpenBadger(cfg.BadgerPath, cfg.RoomTTL)
        if err != nil {
            return nil, nil, err
        }
        return db, func() { _ = db.Close() }, nil
    }
    return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
