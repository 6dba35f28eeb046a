package middleware

import (
	"crypto/subtle"
	"math"
	"net/http"
	"strconv"

	"panel-dash/internal/apperr"
	"panel-dash/internal/authz"
	"panel-dash/internal/ratelimit"
	"panel-dash/internal/session"

	"github.com/gin-gonic/gin"
)

const (
	sessionKey = "session"

	// CSRFHeader carries the anti-forgery token on state-changing requests.
	CSRFHeader = "X-CSRF-Token"
)

// Fail aborts the request with the client-safe rendering of err.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(apperr.Status(err), gin.H{"success": false, "message": apperr.Message(err)})
}

// LoadSession attaches the caller's session when the cookie names a live one.
// It never rejects a request.
func LoadSession(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, err := c.Cookie(session.CookieName); err == nil && token != "" {
			if s, err := sessions.Resolve(token); err == nil {
				c.Set(sessionKey, s)
			}
		}
		c.Next()
	}
}

// CurrentSession returns the session attached by LoadSession.
func CurrentSession(c *gin.Context) (*session.Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*session.Session)
	return s, ok
}

// MustSession is for handlers behind AuthMiddleware.
func MustSession(c *gin.Context) *session.Session {
	s, ok := CurrentSession(c)
	if !ok {
		panic("middleware: handler mounted without AuthMiddleware")
	}
	return s
}

// AuthMiddleware rejects requests without a live session.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentSession(c); !ok {
			Fail(c, apperr.ErrUnauthenticated)
			return
		}
		c.Next()
	}
}

// CSRFMiddleware requires the session's anti-forgery token on every
// non-idempotent request. Requests without a session pass through; routes
// that need one reject them in AuthMiddleware.
func CSRFMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}
		s, ok := CurrentSession(c)
		if !ok {
			c.Next()
			return
		}
		token := c.GetHeader(CSRFHeader)
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.CSRFToken)) != 1 {
			Fail(c, apperr.ErrForgerySuspected)
			return
		}
		c.Next()
	}
}

// RequireCapability checks the caller against the authorization policy.
func RequireCapability(cap authz.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := CurrentSession(c)
		if !ok {
			Fail(c, apperr.ErrUnauthenticated)
			return
		}
		if !authz.Allow(s.Subject(), cap) {
			Fail(c, apperr.New(apperr.Forbidden, forbiddenMessage(cap)))
			return
		}
		c.Next()
	}
}

func forbiddenMessage(cap authz.Capability) string {
	switch cap {
	case authz.ViewTiers, authz.ViewSettings, authz.ManageUsers, authz.ViewAudit:
		return "Forbidden: owner access required"
	case authz.CreatePanel:
		return "a tier (RESELLER or higher) is required to create panels"
	default:
		return "permission denied"
	}
}

// RateLimit applies a fixed window limiter keyed by client address.
func RateLimit(l *ratelimit.Limiter, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, retry := l.Allow(c.ClientIP())
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			Fail(c, apperr.New(apperr.RateLimited, message))
			return
		}
		c.Next()
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

// SecurityHeaders sets the response headers the dashboard relies on.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'; img-src 'self' data: https:")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		c.Next()
	}
}

// NotFound renders unknown routes in the API error envelope.
func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		Fail(c, apperr.New(apperr.NotFound, "not found"))
	}
}
