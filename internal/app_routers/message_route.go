package approuters

import (
	"github.com/gin-gonic/gin"

	"github.com/ifion/MedSystem-sub000/internal/auth"
	"github.com/ifion/MedSystem-sub000/internal/configuration"
)

func MessageRouters(router *gin.Engine, container *configuration.Container) {
	messageRoute := router.Group("/messages")
	messageRoute.Use(auth.Middleware(container.Config.Auth.JWTSecret))
	{
		messageRoute.POST("", container.MessageHandler.CreateMessage)
		messageRoute.GET("/:peerId", container.MessageHandler.GetHistory)
		messageRoute.PUT("/restore/:id", container.MessageHandler.RestoreMessage)
		messageRoute.PUT("/:id", container.MessageHandler.EditMessage)
		messageRoute.DELETE("/:id", container.MessageHandler.DeleteMessage)
		messageRoute.POST("/:id/retry", container.MessageHandler.RetryMessage)
	}
}
