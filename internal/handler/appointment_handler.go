package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ifion/MedSystem-sub000/internal/auth"
	"github.com/ifion/MedSystem-sub000/internal/repo"
)

// AppointmentHandler exposes the chat gate: clients call it before
// opening a real-time connection. The core never enforces it itself.
type AppointmentHandler interface {
	CheckChat(c *gin.Context)
}

type appointmentHandler struct {
	appointments repo.AppointmentRepository
}

func NewAppointmentHandler(appointments repo.AppointmentRepository) AppointmentHandler {
	return &appointmentHandler{appointments: appointments}
}

func (h *appointmentHandler) CheckChat(c *gin.Context) {
	allowed, err := h.appointments.HasConfirmedToday(c.Request.Context(), auth.UserID(c), c.Param("peerId"), time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check appointment", "code": "internal"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"allowed": allowed})
}
