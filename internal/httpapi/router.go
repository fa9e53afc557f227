package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jurisdesk/jurisdesk/internal/common"
	"github.com/jurisdesk/jurisdesk/internal/config"
	"github.com/jurisdesk/jurisdesk/internal/httpapi/handlers"
	"github.com/jurisdesk/jurisdesk/internal/httpapi/middleware"
)

func NewRouter(cfg config.Config, h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	r.GET("/ping", h.Ping)

	// unlock is the only public endpoint besides ping
	r.POST("/unlock", h.Unlock)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))

	authGroup.GET("/providers", h.ListProviders)

	authGroup.GET("/chat/sessions", h.ListChatSessions)
	authGroup.POST("/chat/sessions", h.CreateChatSession)
	authGroup.GET("/chat/sessions/:session_id", h.LoadChatSession)
	authGroup.PATCH("/chat/sessions/:session_id/model", h.UpdateChatSessionModel)
	authGroup.DELETE("/chat/sessions/:session_id", h.DeleteChatSession)
	authGroup.POST("/chat/messages", h.SendChatMessage)
	authGroup.GET("/chat/messages/older", h.LoadOlderMessages)

	authGroup.GET("/settings", h.GetSettings)
	authGroup.PATCH("/settings", h.UpdateSettings)
	authGroup.PUT("/settings/api-keys", h.SetProviderAPIKey)

	authGroup.GET("/activity", h.ListActivity)

	return r
}
