package handler

import (
	"net/http"
	"strings"

	"panel-dash/internal/api/middleware"
	"panel-dash/internal/apperr"
	"panel-dash/internal/model"
	"panel-dash/internal/panel"

	"github.com/gin-gonic/gin"
)

type createPanelInput struct {
	Name     string `json:"name"`
	Server   string `json:"server"`
	RAMLimit *int   `json:"ramLimit"`
	RAM      *int   `json:"ram"`
}

func (in createPanelInput) request() panel.Request {
	r := panel.Request{Name: strings.TrimSpace(in.Name), Server: model.ServerID(strings.TrimSpace(in.Server))}
	switch {
	case in.RAMLimit != nil:
		r.RAMLimit = *in.RAMLimit
	case in.RAM != nil:
		r.RAMLimit = *in.RAM
	}
	return r
}

// CreatePanel provisions a panel account and returns its credentials once.
func CreatePanel(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := middleware.MustSession(c)

		var input createPanelInput
		if err := c.ShouldBindJSON(&input); err != nil {
			middleware.Fail(c, apperr.New(apperr.ValidationFailed, "invalid request body"))
			return
		}

		p, err := env.Panels.Create(c.Request.Context(), s.Subject(), c.ClientIP(), input.request())
		if err != nil {
			middleware.Fail(c, err)
			return
		}

		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Panel created",
			"panel":   p,
		})
	}
}
