package web

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kiliankoe/flagdash/internal/catalog"
	"github.com/kiliankoe/flagdash/internal/game"
	"github.com/kiliankoe/flagdash/internal/session"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// RoomCreator allocates multiplayer rooms.
type RoomCreator interface {
	CreateRoom(ctx context.Context) (string, error)
}

// PageFunc returns an HTML page shell by file name.
type PageFunc func(name string) ([]byte, error)

type Handlers struct {
	Rooms    RoomCreator
	Sessions *session.Manager
	Engine   *game.Engine
	Pages    PageFunc
	Static   http.Handler
}

// NewRouter returns a gin engine with recovery and request logging.
func NewRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger())
	return r
}

// RequestLogger logs every request except the socket.io transport.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/socket.io") {
			return
		}
		log.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("dur", time.Since(start)).
			Msg("http")
	}
}

func (h *Handlers) Register(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": h.Engine.Now().UTC()})
	})

	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/quiz")
	})
	r.GET("/quiz", h.quiz)
	r.GET("/preload", h.preload)
	r.POST("/solo_quiz_api", h.soloQuiz)
	r.GET("/reset", h.reset)

	r.POST("/create_room", h.createRoom)
	r.GET("/room/:roomID", h.room)

	if h.Static != nil {
		r.NoRoute(func(c *gin.Context) {
			h.Static.ServeHTTP(c.Writer, c.Request)
		})
	}
}

func (h *Handlers) page(c *gin.Context, name string) {
	b, err := h.Pages(name)
	if err != nil {
		log.Error().Err(err).Str("page", name).Msg("page not found")
		c.String(http.StatusNotFound, "page not found")
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "text/html; charset=utf-8", b)
}

func (h *Handlers) session(c *gin.Context) (*session.Claims, bool) {
	claims, err := h.Sessions.Ensure(c)
	if err != nil {
		log.Error().Err(err).Msg("session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": game.Message(err)})
		return nil, false
	}
	return claims, true
}

func (h *Handlers) quiz(c *gin.Context) {
	if _, ok := h.session(c); !ok {
		return
	}
	h.page(c, "quiz.html")
}

func (h *Handlers) preload(c *gin.Context) {
	flags := h.Engine.Catalog().All()
	files := lo.Map(h.Engine.Catalog().IDs(), func(id string, _ int) string {
		return catalog.FlagFile(id)
	})
	c.JSON(http.StatusOK, gin.H{"flags": flags, "files": files})
}

type soloResponse struct {
	FlagFile    string   `json:"flag_file"`
	Options     []string `json:"options"`
	Score       int      `json:"score"`
	Message     *string  `json:"message"`
	OptionNames []string `json:"option_names"`
}

// soloQuiz scores the posted choice against the flag stored in the session
// and always answers with a fresh round.
func (h *Handlers) soloQuiz(c *gin.Context) {
	claims, ok := h.session(c)
	if !ok {
		return
	}
	st := claims.Solo()
	msg := h.Engine.SoloAnswer(&st, c.PostForm("choice"), h.Engine.Now())

	r, err := h.Engine.NextSolo(&st)
	if err != nil {
		log.Error().Err(err).Msg("solo round")
		c.JSON(http.StatusInternalServerError, gin.H{"error": game.Message(err)})
		return
	}
	claims.SetSolo(st)
	if err := h.Sessions.Save(c, claims); err != nil {
		log.Error().Err(err).Msg("save session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": game.Message(err)})
		return
	}

	resp := soloResponse{
		FlagFile:    r.FlagFile,
		Options:     r.Options,
		Score:       st.Score,
		OptionNames: r.OptionNames,
	}
	if msg != "" {
		resp.Message = &msg
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) reset(c *gin.Context) {
	claims, ok := h.session(c)
	if !ok {
		return
	}
	st := claims.Solo()
	st.Score = 0
	claims.SetSolo(st)
	if err := h.Sessions.Save(c, claims); err != nil {
		log.Error().Err(err).Msg("save session")
	}
	c.Redirect(http.StatusFound, "/quiz")
}

func (h *Handlers) createRoom(c *gin.Context) {
	if _, ok := h.session(c); !ok {
		return
	}
	id, err := h.Rooms.CreateRoom(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("create room")
		c.JSON(http.StatusInternalServerError, gin.H{"error": game.Message(err)})
		return
	}
	log.Info().Str("room_id", id).Msg("room created")
	c.JSON(http.StatusOK, gin.H{"room_id": id})
}

func (h *Handlers) room(c *gin.Context) {
	if _, ok := h.session(c); !ok {
		return
	}
	h.page(c, "room.html")
}
