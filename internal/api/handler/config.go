package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SettingsInfo reports which servers are configured and the bot identity.
// API keys are never returned, only whether one is set.
func SettingsInfo(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		servers := gin.H{}
		for _, srv := range env.Config.Servers() {
			servers[string(srv.ID)] = gin.H{
				"name":      srv.Name,
				"domain":    srv.Domain,
				"active":    srv.Configured(),
				"hasApiKey": srv.HasAPIKey(),
			}
		}
		bot := env.Config.Bot
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"servers": servers,
			"botInfo": gin.H{
				"name":    bot.Name,
				"version": bot.Version,
				"owner":   bot.OwnerName,
				"enabled": bot.Token != "",
			},
		})
	}
}
