package approuters

import (
	"github.com/gin-gonic/gin"

	"github.com/ifion/MedSystem-sub000/internal/auth"
	"github.com/ifion/MedSystem-sub000/internal/configuration"
)

func AppointmentRouters(router *gin.Engine, container *configuration.Container) {
	appointmentRoute := router.Group("/appointments")
	appointmentRoute.Use(auth.Middleware(container.Config.Auth.JWTSecret))
	{
		appointmentRoute.GET("/check-chat/:peerId", container.AppointmentHandler.CheckChat)
	}
}
