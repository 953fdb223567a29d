package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ifion/MedSystem-sub000/internal/model"
	"github.com/ifion/MedSystem-sub000/internal/repo"
	"github.com/ifion/MedSystem-sub000/internal/service"
)

type fakeMessageService struct {
	sendFn    func(ctx context.Context, senderID string, in model.SendMessageInput) (*model.Message, error)
	historyFn func(ctx context.Context, userID, peerID string, page int64) ([]model.Message, error)
	retryFn   func(ctx context.Context, id, requesterID string) (*model.Message, error)
	editFn    func(ctx context.Context, id, requesterID, content string) (*model.Message, error)
	deleteFn  func(ctx context.Context, id, requesterID string) (*model.Message, error)
	restoreFn func(ctx context.Context, id, requesterID string) (*model.Message, error)
}

func (f *fakeMessageService) Send(ctx context.Context, senderID string, in model.SendMessageInput) (*model.Message, error) {
	return f.sendFn(ctx, senderID, in)
}

func (f *fakeMessageService) History(ctx context.Context, userID, peerID string, page int64) ([]model.Message, error) {
	return f.historyFn(ctx, userID, peerID, page)
}

func (f *fakeMessageService) MarkDelivered(ctx context.Context, id string) (*model.Message, error) {
	return nil, nil
}

func (f *fakeMessageService) MarkRead(ctx context.Context, id string) (*model.Message, error) {
	return nil, nil
}

func (f *fakeMessageService) Retry(ctx context.Context, id, requesterID string) (*model.Message, error) {
	return f.retryFn(ctx, id, requesterID)
}

func (f *fakeMessageService) Edit(ctx context.Context, id, requesterID, content string) (*model.Message, error) {
	return f.editFn(ctx, id, requesterID, content)
}

func (f *fakeMessageService) SoftDelete(ctx context.Context, id, requesterID string) (*model.Message, error) {
	return f.deleteFn(ctx, id, requesterID)
}

func (f *fakeMessageService) UndoDelete(ctx context.Context, id, requesterID string) (*model.Message, error) {
	return f.restoreFn(ctx, id, requesterID)
}

func (f *fakeMessageService) SetNotifier(n service.Notifier) {}

// identity stands in for the auth middleware in route tests.
func identity(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userId", userID)
		c.Next()
	}
}

func newMessageRouter(svc service.MessageService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewMessageHandler(svc)

	r := gin.New()
	g := r.Group("/messages", identity("doctor"))
	g.POST("", h.CreateMessage)
	g.GET("/:peerId", h.GetHistory)
	g.PUT("/restore/:id", h.RestoreMessage)
	g.PUT("/:id", h.EditMessage)
	g.DELETE("/:id", h.DeleteMessage)
	g.POST("/:id/retry", h.RetryMessage)
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateMessage(t *testing.T) {
	recipient := "patient"
	svc := &fakeMessageService{
		sendFn: func(ctx context.Context, senderID string, in model.SendMessageInput) (*model.Message, error) {
			if senderID != "doctor" {
				t.Errorf("sender = %q, want the authenticated identity", senderID)
			}
			return &model.Message{
				ID:          primitive.NewObjectID(),
				SenderID:    senderID,
				RecipientID: in.RecipientID,
				Content:     in.Content,
				Status:      model.StatusSent,
				CreatedAt:   time.Now(),
			}, nil
		},
	}
	r := newMessageRouter(svc)

	w := do(r, http.MethodPost, "/messages", `{"recipientId":"`+recipient+`","content":"hello"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Message model.Message `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Message.Status != model.StatusSent || resp.Message.Content != "hello" {
		t.Errorf("unexpected message: %+v", resp.Message)
	}
}

func TestCreateMessageErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"validation", service.ErrMissingTarget, http.StatusBadRequest},
		{"not found", repo.ErrNotFound, http.StatusNotFound},
		{"storage", context.DeadlineExceeded, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		svc := &fakeMessageService{
			sendFn: func(ctx context.Context, senderID string, in model.SendMessageInput) (*model.Message, error) {
				return nil, tc.err
			},
		}
		r := newMessageRouter(svc)
		w := do(r, http.MethodPost, "/messages", `{"content":"x"}`)
		if w.Code != tc.wantCode {
			t.Errorf("%s: status = %d, want %d", tc.name, w.Code, tc.wantCode)
		}
	}
}

func TestCreateMessageMalformedBody(t *testing.T) {
	r := newMessageRouter(&fakeMessageService{})
	if w := do(r, http.MethodPost, "/messages", `{"content":`); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGetHistory(t *testing.T) {
	svc := &fakeMessageService{
		historyFn: func(ctx context.Context, userID, peerID string, page int64) ([]model.Message, error) {
			if userID != "doctor" || peerID != "patient" {
				t.Errorf("history for (%q, %q), want (doctor, patient)", userID, peerID)
			}
			if page != 3 {
				t.Errorf("page = %d, want 3", page)
			}
			return []model.Message{{SenderID: "doctor", Content: "hi"}}, nil
		},
	}
	r := newMessageRouter(svc)

	w := do(r, http.MethodGet, "/messages/patient?page=3", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Messages []model.Message `json:"messages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Messages) != 1 {
		t.Errorf("got %d messages, want 1", len(resp.Messages))
	}
}

func TestGetHistoryBadPage(t *testing.T) {
	r := newMessageRouter(&fakeMessageService{})

	for _, page := range []string{"0", "-1", "abc"} {
		w := do(r, http.MethodGet, "/messages/patient?page="+page, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("page %q: status = %d, want 400", page, w.Code)
		}
	}
}

func TestRetryMessageConflict(t *testing.T) {
	svc := &fakeMessageService{
		retryFn: func(ctx context.Context, id, requesterID string) (*model.Message, error) {
			return nil, service.ErrNotFailed
		},
	}
	r := newMessageRouter(svc)

	w := do(r, http.MethodPost, "/messages/abc123/retry", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestEditMessageForbidden(t *testing.T) {
	svc := &fakeMessageService{
		editFn: func(ctx context.Context, id, requesterID, content string) (*model.Message, error) {
			return nil, service.ErrNotAuthorized
		},
	}
	r := newMessageRouter(svc)

	w := do(r, http.MethodPut, "/messages/abc123", `{"content":"new"}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestDeleteAndRestoreRouting(t *testing.T) {
	var deleted, restored string
	svc := &fakeMessageService{
		deleteFn: func(ctx context.Context, id, requesterID string) (*model.Message, error) {
			deleted = id
			return &model.Message{IsDeleted: true}, nil
		},
		restoreFn: func(ctx context.Context, id, requesterID string) (*model.Message, error) {
			restored = id
			return &model.Message{}, nil
		},
	}
	r := newMessageRouter(svc)

	if w := do(r, http.MethodDelete, "/messages/m-1", ""); w.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", w.Code)
	}
	if w := do(r, http.MethodPut, "/messages/restore/m-2", ""); w.Code != http.StatusOK {
		t.Fatalf("restore status = %d, want 200", w.Code)
	}

	if deleted != "m-1" {
		t.Errorf("deleted id = %q, want m-1", deleted)
	}
	if restored != "m-2" {
		t.Errorf("restored id = %q, want m-2", restored)
	}
}
