package handler

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"panel-dash/internal/api/middleware"
	"panel-dash/internal/apperr"
	"panel-dash/internal/authz"
	"panel-dash/internal/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type loginInput struct {
	Identifier flexID `json:"identifier"`
	TelegramID flexID `json:"telegramId"`
	InitData   string `json:"initData"`
	RememberMe *bool  `json:"rememberMe"`
	Remember   *bool  `json:"remember"`
}

func (in loginInput) id() string {
	if in.Identifier != "" {
		return strings.TrimSpace(string(in.Identifier))
	}
	return strings.TrimSpace(string(in.TelegramID))
}

func (in loginInput) remember() bool {
	if in.RememberMe != nil {
		return *in.RememberMe
	}
	return in.Remember != nil && *in.Remember
}

// Login authenticates a Telegram ID and starts a new session.
func Login(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if locked, left := env.Lockout.Locked(ip); locked {
			env.countLogin("locked")
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(left.Seconds()))))
			middleware.Fail(c, apperr.New(apperr.RateLimited,
				fmt.Sprintf("too many failed attempts, try again in %d minutes", minutes(left))))
			return
		}

		var input loginInput
		if err := c.ShouldBindJSON(&input); err != nil {
			env.failLogin(c, ip, "", apperr.New(apperr.ValidationFailed, "invalid Telegram ID"))
			return
		}

		id := input.id()
		if input.InitData != "" {
			verified, err := verifyInitData(input.InitData, env.Config.Bot.Token, env.now())
			if err != nil {
				env.failLogin(c, ip, id, apperr.Wrap(apperr.Unauthenticated, "invalid Telegram WebApp data", err))
				return
			}
			id = verified
		}
		if !validTelegramID(id) {
			env.failLogin(c, ip, id, apperr.New(apperr.ValidationFailed, "invalid Telegram ID"))
			return
		}

		u, known, err := env.Directory.Lookup(id)
		if err != nil {
			env.Log.Error("login lookup failed", zap.String("user_id", id), zap.Error(err))
			middleware.Fail(c, apperr.Wrap(apperr.Internal, "", err))
			return
		}
		if !known {
			env.failLogin(c, ip, id, apperr.New(apperr.Unauthenticated, "Telegram ID is not registered"))
			return
		}

		if old, ok := middleware.CurrentSession(c); ok {
			env.Sessions.Delete(old.ID)
		}
		s, token, err := env.Sessions.Create(u, input.remember())
		if err != nil {
			middleware.Fail(c, apperr.Wrap(apperr.Internal, "", err))
			return
		}
		http.SetCookie(c.Writer, env.Sessions.Cookie(token, s))
		env.Lockout.Reset(ip)

		env.Audit.Record(c.Request.Context(), model.AuditEvent{
			Actor: id, Action: model.ActionLogin, Outcome: model.OutcomeSuccess, ClientIP: ip,
		})
		env.countLogin("success")
		env.Log.Info("login", zap.String("user_id", id), zap.String("tier", string(u.Tier)), zap.Bool("owner", u.IsOwner))

		user := userJSON(u)
		user["tier"] = u.Tier.Label()
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"message":   "Login successful",
			"user":      user,
			"csrfToken": s.CSRFToken,
		})
	}
}

func (env *Env) failLogin(c *gin.Context, ip, id string, err *apperr.Error) {
	if env.Lockout.Fail(ip) {
		err = apperr.Wrap(err.Kind, fmt.Sprintf("%s; too many failed attempts, locked for %d minutes",
			apperr.Message(err), minutes(env.Config.Lockout.Cooldown)), err.Err)
	}
	env.Audit.Record(c.Request.Context(), model.AuditEvent{
		Actor: id, Action: model.ActionLoginFailed, Outcome: model.OutcomeFailure, ClientIP: ip,
	})
	env.countLogin("failure")
	middleware.Fail(c, err)
}

func (env *Env) countLogin(result string) {
	if env.Metrics != nil {
		env.Metrics.LoginAttempts.WithLabelValues(result).Inc()
	}
}

func minutes(d time.Duration) int {
	return int(math.Ceil(d.Minutes()))
}

// CheckAuth returns the caller's session snapshot and permission map.
func CheckAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := middleware.MustSession(c)
		c.JSON(http.StatusOK, gin.H{
			"authenticated": true,
			"userId":        s.UserID,
			"username":      "User " + s.UserID,
			"tier":          tierValue(s.Tier),
			"isOwner":       s.Owner,
			"access":        nonNil(s.Access),
			"permissions":   authz.Permissions(s.Subject()),
		})
	}
}

// Permissions returns the capability map the UI gates on.
func Permissions() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := middleware.MustSession(c)
		c.JSON(http.StatusOK, gin.H{
			"success":     true,
			"permissions": authz.Permissions(s.Subject()),
		})
	}
}

// RefreshSession re-reads the caller's tier and access into the session.
func RefreshSession(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := middleware.MustSession(c)
		u, known, err := env.Directory.Lookup(s.UserID)
		if err != nil {
			env.Log.Error("refresh lookup failed", zap.String("user_id", s.UserID), zap.Error(err))
			middleware.Fail(c, apperr.Wrap(apperr.Internal, "", err))
			return
		}
		if !known {
			env.Sessions.Delete(s.ID)
			http.SetCookie(c.Writer, env.Sessions.ClearCookie())
			middleware.Fail(c, apperr.New(apperr.Unauthenticated, "Telegram ID is no longer registered"))
			return
		}
		s, err = env.Sessions.Refresh(s.ID, u)
		if err != nil {
			middleware.Fail(c, apperr.Wrap(apperr.Unauthenticated, "", err))
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":     true,
			"user":        userJSON(u),
			"permissions": authz.Permissions(s.Subject()),
		})
	}
}

// Logout destroys the caller's session if there is one.
func Logout(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s, ok := middleware.CurrentSession(c); ok {
			env.Sessions.Delete(s.ID)
			env.Audit.Record(c.Request.Context(), model.AuditEvent{
				Actor: s.UserID, Action: model.ActionLogout, Outcome: model.OutcomeSuccess, ClientIP: c.ClientIP(),
			})
		}
		http.SetCookie(c.Writer, env.Sessions.ClearCookie())
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
	}
}

// CSRFToken hands the session's anti-forgery token to the page.
func CSRFToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := middleware.MustSession(c)
		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusOK, gin.H{"csrfToken": s.CSRFToken})
	}
}

func nonNil(ids []model.ServerID) []model.ServerID {
	if ids == nil {
		return []model.ServerID{}
	}
	return ids
}
