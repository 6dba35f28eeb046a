package handler

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"panel-dash/internal/api/middleware"
	"panel-dash/internal/apperr"
	"panel-dash/internal/model"
	"panel-dash/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ListUsers returns every user known to either registry.
func ListUsers(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := env.Directory.List()
		if err != nil {
			env.Log.Error("list users", zap.Error(err))
			middleware.Fail(c, apperr.Wrap(apperr.Internal, "", err))
			return
		}
		out := make([]map[string]any, 0, len(users))
		withTier := 0
		for _, u := range users {
			if u.Tier != model.TierNone {
				withTier++
			}
			out = append(out, userJSON(u))
		}
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"total":    len(users),
			"withTier": withTier,
			"users":    out,
		})
	}
}

// ListTiers returns the members of each tier, highest tier first.
func ListTiers(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		groups, err := env.Directory.Tiers.Groups()
		if err != nil {
			env.Log.Error("list tiers", zap.Error(err))
			middleware.Fail(c, apperr.Wrap(apperr.Internal, "", err))
			return
		}
		tiers := make([]gin.H, 0, len(model.Tiers))
		for i := len(model.Tiers) - 1; i >= 0; i-- {
			t := model.Tiers[i]
			ids := groups[t]
			if ids == nil {
				ids = []string{}
			}
			tiers = append(tiers, gin.H{"tier": t, "count": len(ids), "users": ids})
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "tiers": tiers})
	}
}

type updateUserInput struct {
	UserID flexID   `json:"userId"`
	Tier   *string  `json:"tier"`
	Access []string `json:"access"`
}

// UpdateUser sets a user's tier and replaces their server access.
func UpdateUser(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := middleware.MustSession(c)

		var input updateUserInput
		if err := c.ShouldBindJSON(&input); err != nil {
			middleware.Fail(c, apperr.New(apperr.ValidationFailed, "invalid request body"))
			return
		}
		id := strings.TrimSpace(string(input.UserID))
		if !validTelegramID(id) {
			middleware.Fail(c, apperr.New(apperr.ValidationFailed, "invalid user ID"))
			return
		}
		tier := model.TierNone
		if input.Tier != nil {
			t, ok := model.ParseTier(*input.Tier)
			if !ok {
				middleware.Fail(c, apperr.New(apperr.ValidationFailed, "invalid tier"))
				return
			}
			tier = t
		}
		if input.Access == nil {
			middleware.Fail(c, apperr.New(apperr.ValidationFailed, "access must be an array"))
			return
		}
		access, err := env.parseAccess(input.Access)
		if err != nil {
			middleware.Fail(c, err)
			return
		}

		if err := env.Directory.Update(id, tier, access); err != nil {
			if errors.Is(err, store.ErrUnknownServer) || errors.Is(err, store.ErrInvalidTier) {
				middleware.Fail(c, apperr.Wrap(apperr.ValidationFailed, "invalid tier or server", err))
				return
			}
			env.Log.Error("update user", zap.String("user_id", id), zap.Error(err))
			middleware.Fail(c, apperr.Wrap(apperr.Internal, "", err))
			return
		}

		env.Audit.Record(c.Request.Context(), model.AuditEvent{
			Actor:    s.UserID,
			Action:   model.ActionUserUpdate,
			Target:   id,
			Outcome:  model.OutcomeSuccess,
			ClientIP: c.ClientIP(),
		})
		env.Log.Info("user updated", zap.String("by", s.UserID), zap.String("user_id", id),
			zap.String("tier", string(tier)), zap.Any("access", access))

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "User updated",
			"user":    userJSON(model.User{ID: id, Tier: tier, Access: access, IsOwner: env.Directory.IsOwner(id)}),
		})
	}
}

func (env *Env) parseAccess(in []string) ([]model.ServerID, error) {
	out := make([]model.ServerID, 0, len(in))
	for _, raw := range in {
		id := model.ServerID(strings.TrimSpace(raw))
		if _, ok := env.Config.Server(id); !ok {
			return nil, apperr.New(apperr.ValidationFailed, "unknown server "+string(id))
		}
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out, nil
}

type deleteUserInput struct {
	UserID flexID `json:"userId"`
}

// DeleteUser removes a user's tier and every server membership.
func DeleteUser(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := middleware.MustSession(c)

		var input deleteUserInput
		if err := c.ShouldBindJSON(&input); err != nil {
			middleware.Fail(c, apperr.New(apperr.ValidationFailed, "invalid request body"))
			return
		}
		id := strings.TrimSpace(string(input.UserID))
		if !validTelegramID(id) {
			middleware.Fail(c, apperr.New(apperr.ValidationFailed, "invalid user ID"))
			return
		}

		if err := env.Directory.Delete(id); err != nil {
			env.Log.Error("delete user", zap.String("user_id", id), zap.Error(err))
			middleware.Fail(c, apperr.Wrap(apperr.Internal, "", err))
			return
		}

		env.Audit.Record(c.Request.Context(), model.AuditEvent{
			Actor:    s.UserID,
			Action:   model.ActionUserDelete,
			Target:   id,
			Outcome:  model.OutcomeSuccess,
			ClientIP: c.ClientIP(),
		})
		env.Log.Info("user deleted", zap.String("by", s.UserID), zap.String("user_id", id))

		c.JSON(http.StatusOK, gin.H{"success": true, "message": "User deleted"})
	}
}
