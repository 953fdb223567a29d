package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/ifion/MedSystem-sub000/internal/db"
	"github.com/ifion/MedSystem-sub000/internal/event"
	"github.com/ifion/MedSystem-sub000/internal/model"
	"github.com/ifion/MedSystem-sub000/internal/repo"
)

// memStore is an in-memory MessageRepository with the same conditional
// update semantics as the Mongo implementation.
type memStore struct {
	mu   sync.Mutex
	msgs map[string]*model.Message
}

func newMemStore() *memStore {
	return &memStore{msgs: make(map[string]*model.Message)}
}

func (s *memStore) Insert(ctx context.Context, msg *model.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg.ID = primitive.NewObjectID()
	stored := *msg
	s.msgs[msg.ID.Hex()] = &stored
	return msg.ID.Hex(), nil
}

func (s *memStore) FindByID(ctx context.Context, id string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.msgs[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	copied := *msg
	return &copied, nil
}

func (s *memStore) FindByClientID(ctx context.Context, senderID, clientID string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msg := range s.msgs {
		if msg.SenderID == senderID && msg.ClientID == clientID {
			copied := *msg
			return &copied, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (s *memStore) History(ctx context.Context, userID, peerID string, page int64) (*db.PaginatedResult[model.Message], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Message
	for _, msg := range s.msgs {
		if msg.RecipientID == nil {
			continue
		}
		if (msg.SenderID == userID && *msg.RecipientID == peerID) ||
			(msg.SenderID == peerID && *msg.RecipientID == userID) {
			out = append(out, *msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return &db.PaginatedResult[model.Message]{Data: out, Total: int64(len(out)), Page: page}, nil
}

func (s *memStore) TransitionStatus(ctx context.Context, id string, from []string, to string, readAt *time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.msgs[id]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if msg.Status == f {
			msg.Status = to
			if readAt != nil {
				msg.ReadAt = readAt
			}
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) ResetForRetry(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.msgs[id]
	if !ok || msg.Status != model.StatusFailed {
		return false, nil
	}
	msg.Status = model.StatusSent
	msg.RetryCount++
	return true, nil
}

func (s *memStore) SetContent(ctx context.Context, id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.msgs[id]
	if !ok {
		return repo.ErrNotFound
	}
	msg.Content = content
	msg.IsEdited = true
	return nil
}

func (s *memStore) SetDeleted(ctx context.Context, id string, deleted bool, at *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.msgs[id]
	if !ok {
		return repo.ErrNotFound
	}
	msg.IsDeleted = deleted
	msg.DeletedAt = at
	return nil
}

func (s *memStore) setStatus(id, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs[id].Status = status
}

type fakeUsers struct{}

func (f *fakeUsers) GetUser(ctx context.Context, id string) (*model.User, error) {
	return &model.User{UserID: id, FirstName: "Dr.", LastName: id}, nil
}
func (f *fakeUsers) SetOnline(ctx context.Context, userID string, online bool) error { return nil }
func (f *fakeUsers) MarkAllOffline(ctx context.Context) (int64, error)               { return 0, nil }

type notification struct {
	userID string
	ev     event.WsEvent
}

type recordingNotifier struct {
	mu    sync.Mutex
	sends []notification
}

func (n *recordingNotifier) NotifyUser(userID string, ev event.WsEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sends = append(n.sends, notification{userID: userID, ev: ev})
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sends)
}

func (n *recordingNotifier) last(t *testing.T) notification {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sends) == 0 {
		t.Fatal("expected a notification")
	}
	return n.sends[len(n.sends)-1]
}

func newTestService(t *testing.T) (MessageService, *memStore, *recordingNotifier) {
	t.Helper()
	store := newMemStore()
	svc := NewMessageService(store, &fakeUsers{}, zap.NewNop())
	notifier := &recordingNotifier{}
	svc.SetNotifier(notifier)
	return svc, store, notifier
}

func strPtr(s string) *string { return &s }

func sendText(t *testing.T, svc MessageService, sender, recipient, content string) *model.Message {
	t.Helper()
	msg, err := svc.Send(context.Background(), sender, model.SendMessageInput{
		RecipientID: strPtr(recipient),
		Content:     content,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	return msg
}

func TestSendValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   model.SendMessageInput
		want error
	}{
		{"no target", model.SendMessageInput{Content: "hi"}, ErrMissingTarget},
		{"both targets", model.SendMessageInput{RecipientID: strPtr("b"), GroupID: strPtr("g"), Content: "hi"}, ErrMissingTarget},
		{"no body", model.SendMessageInput{RecipientID: strPtr("b")}, ErrMissingBody},
		{"bad reply target", model.SendMessageInput{RecipientID: strPtr("b"), Content: "hi", ReplyTo: strPtr("nonsense")}, ErrBadReplyTo},
	}

	for _, tc := range cases {
		_, err := svc.Send(ctx, "a", tc.in)
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
		if !errors.Is(err, ErrValidation) {
			t.Errorf("%s: %v should be a validation error", tc.name, err)
		}
	}
}

func TestSendPersistsWithSentStatus(t *testing.T) {
	svc, store, _ := newTestService(t)

	msg := sendText(t, svc, "a", "b", "hi")

	if msg.Status != model.StatusSent {
		t.Fatalf("status = %q, want %q", msg.Status, model.StatusSent)
	}
	if msg.SenderName == "" {
		t.Error("expected denormalized sender name")
	}

	stored, err := store.FindByID(context.Background(), msg.ID.Hex())
	if err != nil {
		t.Fatalf("stored message missing: %v", err)
	}
	if stored.Content != "hi" || *stored.RecipientID != "b" {
		t.Errorf("stored message mismatch: %+v", stored)
	}
}

func TestSendBodyAlternatives(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for _, in := range []model.SendMessageInput{
		{RecipientID: strPtr("b"), MediaURL: strPtr("https://cdn/x.png")},
		{RecipientID: strPtr("b"), Sticker: strPtr("wave")},
		{RecipientID: strPtr("b"), Emoji: strPtr("👍")},
	} {
		if _, err := svc.Send(ctx, "a", in); err != nil {
			t.Errorf("media/sticker/emoji-only send should pass: %v", err)
		}
	}
}

func TestSendIdempotency(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	in := model.SendMessageInput{RecipientID: strPtr("b"), Content: "hi", ClientID: "tok-1"}
	first, err := svc.Send(ctx, "a", in)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	second, err := svc.Send(ctx, "a", in)
	if err != nil {
		t.Fatalf("replayed send: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("replay created a new message: %s vs %s", first.ID.Hex(), second.ID.Hex())
	}
	if len(store.msgs) != 1 {
		t.Errorf("store holds %d messages, want 1", len(store.msgs))
	}
}

func TestDeliveredThenRead(t *testing.T) {
	svc, _, notifier := newTestService(t)
	ctx := context.Background()

	msg := sendText(t, svc, "a", "b", "hi")
	id := msg.ID.Hex()

	delivered, err := svc.MarkDelivered(ctx, id)
	if err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	if delivered.Status != model.StatusDelivered {
		t.Fatalf("status = %q, want delivered", delivered.Status)
	}

	read, err := svc.MarkRead(ctx, id)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if read.Status != model.StatusRead {
		t.Fatalf("status = %q, want read", read.Status)
	}
	if read.ReadAt == nil {
		t.Error("read timestamp not set")
	}

	// Both ticks went to the sender.
	if notifier.count() != 2 {
		t.Fatalf("got %d notifications, want 2", notifier.count())
	}
	n := notifier.last(t)
	if n.userID != "a" {
		t.Errorf("status tick sent to %q, want the sender", n.userID)
	}
	if n.ev.Event != event.EventMessageStatusUpdate {
		t.Errorf("event = %q, want %q", n.ev.Event, event.EventMessageStatusUpdate)
	}

	var update model.MessageStatusUpdate
	if err := json.Unmarshal(n.ev.Payload, &update); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if update.Status != model.StatusRead || update.MessageID != id {
		t.Errorf("unexpected update payload: %+v", update)
	}
}

func TestReadDominatesDelivered(t *testing.T) {
	svc, _, notifier := newTestService(t)
	ctx := context.Background()

	msg := sendText(t, svc, "a", "b", "hi")
	id := msg.ID.Hex()

	// Read can arrive without an intervening delivered event.
	if _, err := svc.MarkRead(ctx, id); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	before := notifier.count()

	// The straggling delivery receipt must not regress the status, and
	// must not produce a second tick.
	after, err := svc.MarkDelivered(ctx, id)
	if err != nil {
		t.Fatalf("late mark delivered: %v", err)
	}
	if after.Status != model.StatusRead {
		t.Errorf("status regressed to %q", after.Status)
	}
	if notifier.count() != before {
		t.Error("no-op transition should not notify")
	}
}

func TestMarkDeliveredIdempotent(t *testing.T) {
	svc, _, notifier := newTestService(t)
	ctx := context.Background()

	msg := sendText(t, svc, "a", "b", "hi")
	id := msg.ID.Hex()

	if _, err := svc.MarkDelivered(ctx, id); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	before := notifier.count()

	again, err := svc.MarkDelivered(ctx, id)
	if err != nil {
		t.Fatalf("duplicate mark delivered: %v", err)
	}
	if again.Status != model.StatusDelivered {
		t.Errorf("status = %q, want delivered", again.Status)
	}
	if notifier.count() != before {
		t.Error("duplicate receipt should not notify")
	}
}

func TestReceiptUnknownMessage(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.MarkDelivered(context.Background(), primitive.NewObjectID().Hex())
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestRetry(t *testing.T) {
	svc, store, notifier := newTestService(t)
	ctx := context.Background()

	msg := sendText(t, svc, "a", "b", "hi")
	id := msg.ID.Hex()

	// Retrying a message that is not failed is rejected.
	if _, err := svc.Retry(ctx, id, "a"); !errors.Is(err, ErrNotFailed) {
		t.Fatalf("got %v, want ErrNotFailed", err)
	}

	store.setStatus(id, model.StatusFailed)

	// Only the sender may retry.
	if _, err := svc.Retry(ctx, id, "b"); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("got %v, want ErrNotAuthorized", err)
	}

	retried, err := svc.Retry(ctx, id, "a")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried.Status != model.StatusSent {
		t.Errorf("status = %q, want sent", retried.Status)
	}
	if retried.RetryCount != 1 {
		t.Errorf("retryCount = %d, want 1", retried.RetryCount)
	}
	if n := notifier.last(t); n.userID != "a" {
		t.Errorf("retry tick sent to %q, want the sender", n.userID)
	}
}

func TestSenderOnlyMutations(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	msg := sendText(t, svc, "a", "b", "hi")
	id := msg.ID.Hex()

	if _, err := svc.Edit(ctx, id, "b", "tampered"); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("edit by non-sender: got %v, want ErrNotAuthorized", err)
	}
	if _, err := svc.SoftDelete(ctx, id, "b"); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("delete by non-sender: got %v, want ErrNotAuthorized", err)
	}
	if _, err := svc.UndoDelete(ctx, id, "b"); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("restore by non-sender: got %v, want ErrNotAuthorized", err)
	}

	// No state change happened.
	current, err := svc.MarkDelivered(ctx, id)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if current.Content != "hi" || current.IsDeleted || current.IsEdited {
		t.Errorf("unauthorized attempts mutated the message: %+v", current)
	}
}

func TestEditSoftDeleteUndo(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	msg := sendText(t, svc, "a", "b", "hi")
	id := msg.ID.Hex()

	edited, err := svc.Edit(ctx, id, "a", "hello")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if edited.Content != "hello" || !edited.IsEdited {
		t.Errorf("edit not applied: %+v", edited)
	}
	if edited.Status != model.StatusSent {
		t.Errorf("edit changed status to %q", edited.Status)
	}

	if _, err := svc.Edit(ctx, id, "a", ""); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("empty edit: got %v, want ErrEmptyContent", err)
	}

	deleted, err := svc.SoftDelete(ctx, id, "a")
	if err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if !deleted.IsDeleted || deleted.DeletedAt == nil {
		t.Errorf("soft delete not applied: %+v", deleted)
	}

	// The row survives a soft delete.
	if _, err := store.FindByID(ctx, id); err != nil {
		t.Fatalf("soft-deleted row gone from store: %v", err)
	}

	restored, err := svc.UndoDelete(ctx, id, "a")
	if err != nil {
		t.Fatalf("undo delete: %v", err)
	}
	if restored.IsDeleted || restored.DeletedAt != nil {
		t.Errorf("undo delete not applied: %+v", restored)
	}
}

func TestHistoryAscendingAndDisappearing(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	oldest := sendText(t, svc, "a", "b", "first")
	sendText(t, svc, "b", "a", "second")

	// An expired disappearing message drops out of history.
	expired, err := svc.Send(ctx, "a", model.SendMessageInput{
		RecipientID:    strPtr("b"),
		Content:        "gone soon",
		DisappearAfter: 1,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	store.mu.Lock()
	store.msgs[expired.ID.Hex()].CreatedAt = time.Now().Add(-time.Minute)
	store.msgs[oldest.ID.Hex()].CreatedAt = time.Now().Add(-time.Hour)
	store.mu.Unlock()

	msgs, err := svc.History(ctx, "a", "b", 1)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("history has %d messages, want 2", len(msgs))
	}
	if msgs[0].Content != "first" || msgs[1].Content != "second" {
		t.Errorf("history out of order: %q, %q", msgs[0].Content, msgs[1].Content)
	}
}
