// Package handler implements the dashboard REST endpoints.
package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"time"

	"panel-dash/internal/audit"
	"panel-dash/internal/config"
	"panel-dash/internal/metrics"
	"panel-dash/internal/model"
	"panel-dash/internal/panel"
	"panel-dash/internal/ratelimit"
	"panel-dash/internal/session"
	"panel-dash/internal/store"

	"go.uber.org/zap"
)

// Env carries the services the handlers share.
type Env struct {
	Config    config.Config
	Directory *store.Directory
	Sessions  *session.Manager
	Lockout   *ratelimit.Lockout
	Audit     *audit.Recorder
	Panels    *panel.Service
	Metrics   *metrics.Metrics
	Log       *zap.Logger
	Now       func() time.Time
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

var telegramIDPattern = regexp.MustCompile(`^[0-9]{6,15}$`)

// validTelegramID reports whether id looks like a Telegram user id.
func validTelegramID(id string) bool {
	return telegramIDPattern.MatchString(id)
}

// flexID accepts a Telegram ID sent either as a JSON string or a number.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("id must be a string or a number")
	}
	*f = flexID(n.String())
	return nil
}

// tierValue renders a tier for JSON, with null for no tier.
func tierValue(t model.Tier) any {
	if t == model.TierNone {
		return nil
	}
	return string(t)
}

func userJSON(u model.User) map[string]any {
	access := u.Access
	if access == nil {
		access = []model.ServerID{}
	}
	return map[string]any{
		"id":      u.ID,
		"tier":    tierValue(u.Tier),
		"isOwner": u.IsOwner,
		"access":  access,
	}
}
