package handler

import (
	"net/http"
	"strconv"

	"panel-dash/internal/api/middleware"
	"panel-dash/internal/apperr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RecentAudit returns the newest audit events. ?limit caps the count.
func RecentAudit(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 50
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				middleware.Fail(c, apperr.New(apperr.ValidationFailed, "limit must be a positive integer"))
				return
			}
			limit = n
		}
		events, err := env.Audit.Recent(c.Request.Context(), limit)
		if err != nil {
			env.Log.Error("read audit events", zap.Error(err))
			middleware.Fail(c, apperr.Wrap(apperr.Internal, "", err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "events": events})
	}
}
