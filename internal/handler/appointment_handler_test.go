package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type fakeAppointments struct {
	allowed bool
	err     error
	userA   string
	userB   string
}

func (f *fakeAppointments) HasConfirmedToday(ctx context.Context, userA, userB string, now time.Time) (bool, error) {
	f.userA, f.userB = userA, userB
	return f.allowed, f.err
}

func newAppointmentRouter(appointments *fakeAppointments) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewAppointmentHandler(appointments)

	r := gin.New()
	r.GET("/appointments/check-chat/:peerId", identity("doctor"), h.CheckChat)
	return r
}

func TestCheckChat(t *testing.T) {
	for _, allowed := range []bool{true, false} {
		appointments := &fakeAppointments{allowed: allowed}
		r := newAppointmentRouter(appointments)

		w := do(r, http.MethodGet, "/appointments/check-chat/patient", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}

		var resp struct {
			Allowed bool `json:"allowed"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Allowed != allowed {
			t.Errorf("allowed = %v, want %v", resp.Allowed, allowed)
		}
		if appointments.userA != "doctor" || appointments.userB != "patient" {
			t.Errorf("gate checked (%q, %q), want (doctor, patient)", appointments.userA, appointments.userB)
		}
	}
}

func TestCheckChatStorageError(t *testing.T) {
	r := newAppointmentRouter(&fakeAppointments{err: errors.New("down")})

	if w := do(r, http.MethodGet, "/appointments/check-chat/patient", ""); w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}
