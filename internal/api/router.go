// Package api assembles the HTTP routes.
package api

import (
	"net/http"

	"panel-dash/internal/api/handler"
	"panel-dash/internal/api/middleware"
	"panel-dash/internal/api/websocket"
	"panel-dash/internal/authz"
	"panel-dash/internal/ratelimit"

	"github.com/gin-gonic/gin"
)

// Limiters are the two independent request budgets.
type Limiters struct {
	Login *ratelimit.Limiter
	API   *ratelimit.Limiter
}

// NewRouter wires every route with its guards.
func NewRouter(env *handler.Env, limits Limiters) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(env.Config.TrustedProxies); err != nil {
		return nil, err
	}
	r.Use(
		gin.Recovery(),
		middleware.RequestLogger(env.Log, env.Metrics),
		middleware.SecurityHeaders(),
		middleware.LoadSession(env.Sessions),
	)
	r.NoRoute(middleware.NotFound())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if env.Config.Metrics.Enabled && env.Metrics != nil {
		r.GET("/metrics", gin.WrapH(env.Metrics.Handler()))
	}

	loginLimit := middleware.RateLimit(limits.Login, "Too many login attempts, please try again later")
	apiLimit := middleware.RateLimit(limits.API, "Too many requests, please slow down")
	can := middleware.RequireCapability

	public := r.Group("/api")
	{
		public.POST("/auth/login", loginLimit, handler.Login(env))
		public.POST("/auth/logout", middleware.CSRFMiddleware(), handler.Logout(env))
	}

	auth := r.Group("/api")
	auth.Use(middleware.AuthMiddleware(), middleware.CSRFMiddleware())
	{
		auth.GET("/auth/check", handler.CheckAuth())
		auth.GET("/auth/permissions", handler.Permissions())
		auth.POST("/auth/refresh", handler.RefreshSession(env))
		auth.GET("/csrf-token", handler.CSRFToken())

		auth.GET("/dashboard/stats", apiLimit, can(authz.ViewOverview), handler.DashboardStats(env))
		auth.GET("/servers/list", apiLimit, can(authz.ViewServers), handler.ListServers(env))
		auth.GET("/users/list", apiLimit, can(authz.ViewUsers), handler.ListUsers(env))
		auth.GET("/tiers/list", apiLimit, can(authz.ViewTiers), handler.ListTiers(env))
		auth.GET("/settings/info", apiLimit, can(authz.ViewSettings), handler.SettingsInfo(env))
		auth.GET("/audit/recent", apiLimit, can(authz.ViewAudit), handler.RecentAudit(env))

		auth.POST("/users/update", can(authz.ManageUsers), apiLimit, handler.UpdateUser(env))
		auth.POST("/users/delete", can(authz.ManageUsers), apiLimit, handler.DeleteUser(env))
		auth.POST("/panel/create", apiLimit, can(authz.CreatePanel), handler.CreatePanel(env))
	}

	ws := r.Group("/ws")
	ws.Use(middleware.AuthMiddleware(), can(authz.ViewAudit))
	{
		ws.GET("/audit", websocket.AuditHandler(env.Audit.Hub(), env.Sessions, env.Log))
	}

	return r, nil
}
