// Package session keeps logged-in dashboard sessions in memory. The browser
// only holds a signed token naming the session id; tier, access and the CSRF
// token stay server side.
package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"panel-dash/internal/authz"
	"panel-dash/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/hkdf"
)

const (
	CookieName  = "paneldash_session"
	DefaultTTL  = 24 * time.Hour
	RememberTTL = 30 * 24 * time.Hour

	cleanupInterval = 10 * time.Minute
	keyInfo         = "paneldash session signing key"
)

var (
	ErrNoSession    = errors.New("session not found")
	ErrInvalidToken = errors.New("invalid session token")
)

// Session is the snapshot taken at login.
type Session struct {
	ID        string
	UserID    string
	Tier      model.Tier
	Access    []model.ServerID
	Owner     bool
	CSRFToken string
	Remember  bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Subject returns the authorization view of the session.
func (s *Session) Subject() authz.Subject {
	return authz.Subject{UserID: s.UserID, Tier: s.Tier, Owner: s.Owner}
}

func (s *Session) clone() *Session {
	cp := *s
	cp.Access = slices.Clone(s.Access)
	return &cp
}

// Claims is the payload of the session cookie.
type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Manager issues, resolves and destroys sessions.
type Manager struct {
	store  *cache.Cache
	key    []byte
	secure bool
	now    func() time.Time
}

// NewManager derives the cookie signing key from secret.
func NewManager(secret string, secureCookies bool) (*Manager, error) {
	if len(secret) < 16 {
		return nil, errors.New("session secret must be at least 16 bytes")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive session key: %w", err)
	}
	return &Manager{
		store:  cache.New(DefaultTTL, cleanupInterval),
		key:    key,
		secure: secureCookies,
		now:    time.Now,
	}, nil
}

// Create starts a fresh session for u and returns it with its signed token.
// Callers must Delete any session the client presented before calling Create.
func (m *Manager) Create(u model.User, remember bool) (*Session, string, error) {
	id, err := RandomToken(32)
	if err != nil {
		return nil, "", err
	}
	csrf, err := RandomToken(32)
	if err != nil {
		return nil, "", err
	}
	ttl := DefaultTTL
	if remember {
		ttl = RememberTTL
	}
	now := m.now()
	s := &Session{
		ID:        id,
		UserID:    u.ID,
		Tier:      u.Tier,
		Access:    slices.Clone(u.Access),
		Owner:     u.IsOwner,
		CSRFToken: csrf,
		Remember:  remember,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	token, err := m.sign(s)
	if err != nil {
		return nil, "", err
	}
	m.store.Set(id, s.clone(), ttl)
	return s, token, nil
}

// Refresh replaces the tier, access and owner snapshot of a live session.
func (m *Manager) Refresh(id string, u model.User) (*Session, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	s.Tier = u.Tier
	s.Access = slices.Clone(u.Access)
	s.Owner = u.IsOwner
	ttl := s.ExpiresAt.Sub(m.now())
	if ttl <= 0 {
		m.store.Delete(id)
		return nil, ErrNoSession
	}
	m.store.Set(id, s.clone(), ttl)
	return s, nil
}

// Get returns a copy of the session stored under id.
func (m *Manager) Get(id string) (*Session, error) {
	v, ok := m.store.Get(id)
	if !ok {
		return nil, ErrNoSession
	}
	s := v.(*Session)
	if !m.now().Before(s.ExpiresAt) {
		m.store.Delete(id)
		return nil, ErrNoSession
	}
	return s.clone(), nil
}

// Resolve verifies a cookie token and loads its session.
func (m *Manager) Resolve(token string) (*Session, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return m.Get(claims.SessionID)
}

// Delete destroys the session. Unknown ids are ignored.
func (m *Manager) Delete(id string) {
	m.store.Delete(id)
}

func (m *Manager) sign(s *Session) (string, error) {
	claims := &Claims{
		SessionID: s.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(s.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return token, nil
}

// Cookie carries token for the lifetime of s.
func (m *Manager) Cookie(token string, s *Session) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		MaxAge:   int(s.ExpiresAt.Sub(m.now()).Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// ClearCookie removes the session cookie from the browser.
func (m *Manager) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// RandomToken returns n random bytes, hex encoded.
func RandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
