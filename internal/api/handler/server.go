package handler

import (
	"net/http"

	"panel-dash/internal/api/middleware"
	"panel-dash/internal/apperr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DashboardStats returns the overview counters.
func DashboardStats(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := middleware.MustSession(c)

		configured := 0
		for _, srv := range env.Config.Servers() {
			if srv.Configured() {
				configured++
			}
		}

		members, err := env.Directory.Access.AllMembers()
		if err != nil {
			env.Log.Error("read server members", zap.Error(err))
			middleware.Fail(c, apperr.Wrap(apperr.Internal, "", err))
			return
		}
		unique := make(map[string]struct{})
		for _, ids := range members {
			for _, id := range ids {
				unique[id] = struct{}{}
			}
		}

		panels, err := env.Audit.CountPanels(c.Request.Context())
		if err != nil {
			env.Log.Error("count panels", zap.Error(err))
			middleware.Fail(c, apperr.Wrap(apperr.Internal, "", err))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"stats": gin.H{
				"servers":  configured,
				"users":    len(unique),
				"panels":   panels,
				"userTier": s.Tier.Label(),
			},
		})
	}
}

// ListServers returns the configured backends with their member counts.
func ListServers(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		members, err := env.Directory.Access.AllMembers()
		if err != nil {
			env.Log.Error("read server members", zap.Error(err))
			middleware.Fail(c, apperr.Wrap(apperr.Internal, "", err))
			return
		}

		servers := make([]gin.H, 0, len(members))
		for _, srv := range env.Config.Servers() {
			if !srv.Configured() {
				continue
			}
			servers = append(servers, gin.H{
				"id":     srv.ID,
				"name":   srv.Name,
				"domain": srv.Domain,
				"status": "active",
				"users":  len(members[srv.ID]),
			})
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "servers": servers})
	}
}
