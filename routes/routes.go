package routes

import (
	"keynow/controllers"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, s *controllers.Srv) {
	wc := controllers.NewWebhookController(s)
	kc := controllers.NewKeysController(s)

	// Inbound commands arrive as LINE webhook deliveries.
	r.POST("/webhook", wc.Handle)

	// Read-only views for the status page.
	api := r.Group("/api")
	{
		api.GET("/keys", kc.ListHoldings)
		api.GET("/logs", kc.ListLogs) // ?days=
	}
}
