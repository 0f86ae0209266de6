package session

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/kiliankoe/flagdash/internal/game"
)

const (
	DefaultCookieName = "flagdash_session"
	idAlphabet        = "abcdefghijklmnopqrstuvwxyz0123456789"
	issuer            = "flagdash"
)

var ErrInvalidSession = errors.New("invalid session")

// Claims is the signed content of the session cookie.
type Claims struct {
	SID       string `json:"sid"`
	SoloFlag  string `json:"solo_flag,omitempty"`
	SoloStart int64  `json:"solo_start,omitempty"` // unix milliseconds
	SoloScore int    `json:"solo_score"`
	jwt.RegisteredClaims
}

func (c *Claims) Solo() game.SoloState {
	st := game.SoloState{FlagID: c.SoloFlag, Score: c.SoloScore}
	if c.SoloStart > 0 {
		st.StartTime = time.UnixMilli(c.SoloStart).UTC()
	}
	return st
}

func (c *Claims) SetSolo(st game.SoloState) {
	c.SoloFlag = st.FlagID
	c.SoloScore = st.Score
	c.SoloStart = 0
	if !st.StartTime.IsZero() {
		c.SoloStart = st.StartTime.UnixMilli()
	}
}

type Config struct {
	Secret     string
	CookieName string
	Secure     bool
	IDLength   int
	MaxAge     time.Duration
}

type Manager struct {
	secret []byte
	cfg    Config
	now    func() time.Time
}

func NewManager(cfg Config) *Manager {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.IDLength <= 0 {
		cfg.IDLength = 12
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 30 * 24 * time.Hour
	}
	return &Manager{secret: []byte(cfg.Secret), cfg: cfg, now: time.Now}
}

// NewID returns a fresh participant token of lowercase letters and digits.
func (m *Manager) NewID() string {
	id, err := randomID(rand.Reader, m.cfg.IDLength)
	if err != nil {
		panic(fmt.Sprintf("session: read random bytes: %v", err))
	}
	return id
}

// randomID draws n alphabet characters from r. Bytes at or above the largest
// multiple of the alphabet size are rejected so every character is equally
// likely.
func randomID(r io.Reader, n int) (string, error) {
	limit := 256 - 256%len(idAlphabet)
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, idAlphabet[int(b)%len(idAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

func (m *Manager) Sign(c *Claims) (string, error) {
	now := m.now()
	c.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.MaxAge)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
}

func (m *Manager) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	if claims.SID == "" {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// Ensure returns the caller's session, minting a participant id and setting
// the cookie on first contact.
func (m *Manager) Ensure(c *gin.Context) (*Claims, error) {
	if raw, err := c.Cookie(m.cfg.CookieName); err == nil {
		if claims, err := m.Parse(raw); err == nil {
			return claims, nil
		}
	}
	claims := &Claims{SID: m.NewID()}
	if err := m.Save(c, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (m *Manager) Save(c *gin.Context, claims *Claims) error {
	token, err := m.Sign(claims)
	if err != nil {
		return fmt.Errorf("sign session: %w", err)
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cfg.CookieName, token, int(m.cfg.MaxAge/time.Second), "/", "", m.cfg.Secure, true)
	return nil
}

// FromHeader resolves the session carried by a request's Cookie header, as
// sent with a socket.io handshake.
func (m *Manager) FromHeader(h http.Header) (*Claims, bool) {
	req := &http.Request{Header: h}
	ck, err := req.Cookie(m.cfg.CookieName)
	if err != nil {
		return nil, false
	}
	claims, err := m.Parse(ck.Value)
	if err != nil {
		return nil, false
	}
	return claims, true
}
