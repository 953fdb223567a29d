package hub

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ifion/MedSystem-sub000/internal/event"
	"github.com/ifion/MedSystem-sub000/internal/model"
	"github.com/ifion/MedSystem-sub000/internal/repo"
	"github.com/ifion/MedSystem-sub000/internal/service"
)

type inboundMessage struct {
	event  event.WsEvent
	client *Client
}

type presenceUpdate struct {
	userID string
	online bool
}

// Hub owns the connection registry, the room registry and the inbound
// event pipeline. Register/unregister flow through one manager goroutine
// so presence transitions for a user are never interleaved. Inbound
// events are sharded by connection id onto a fixed set of worker queues:
// one connection's events always land on the same queue and are serviced
// by that queue's single worker, so per-connection order survives while
// connections proceed concurrently.
type Hub struct {
	registry *connRegistry
	rooms    *roomRegistry

	messages service.MessageService
	users    repo.UserRepository
	groups   repo.GroupRepository
	logger   *zap.Logger

	register   chan *Client
	unregister chan *Client
	inbound    []chan inboundMessage
	presence   chan presenceUpdate
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	stopOnce   sync.Once
}

func NewHub(messages service.MessageService, users repo.UserRepository, groups repo.GroupRepository, logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		registry:   newConnRegistry(),
		rooms:      newRoomRegistry(),
		messages:   messages,
		users:      users,
		groups:     groups,
		logger:     logger,
		register:   make(chan *Client, 1024),
		unregister: make(chan *Client, 1024),
		inbound:    make([]chan inboundMessage, workerPoolSize),
		presence:   make(chan presenceUpdate, 1024),
		ctx:        ctx,
		cancel:     cancel,
	}

	// run manager loop
	go h.run()

	// durable presence flag writer
	h.wg.Add(1)
	go h.presenceWriter()

	// one worker per inbound shard
	for i := 0; i < workerPoolSize; i++ {
		h.inbound[i] = make(chan inboundMessage, 256) // buffer for burst handling
		h.wg.Add(1)
		go func(queue chan inboundMessage) {
			defer h.wg.Done()
			for {
				select {
				case <-h.ctx.Done():
					return
				case in, ok := <-queue:
					if !ok {
						return
					}

					h.handleEvent(in.event, in.client)
				}
			}
		}(h.inbound[i])
	}

	return h
}

// queueFor maps a connection id onto its inbound shard.
func (h *Hub) queueFor(connID string) chan inboundMessage {
	sum := sha1.Sum([]byte(connID))
	return h.inbound[binary.BigEndian.Uint32(sum[:4])%uint32(len(h.inbound))]
}

func (h *Hub) run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

func (h *Hub) handleEvent(ev event.WsEvent, c *Client) {
	if IsCallEvent(ev.Event) {
		h.handleCallEvent(ev, c)
		return
	}

	switch ev.Event {
	case event.EventTyping:
		h.handleTyping(ev, c, false)
	case event.EventStopTyping:
		h.handleTyping(ev, c, true)
	case event.EventSendMessage:
		h.handleSendMessage(ev, c)
	case event.EventMessageDelivered:
		h.handleReceipt(ev, c, false)
	case event.EventMessageRead:
		h.handleReceipt(ev, c, true)
	default:
		h.logger.Warn("unknown event type", zap.String("event", ev.Event), zap.String("client_id", c.ID))
	}
}

// -----------------------------------------------------------------
// Registration & Presence
// -----------------------------------------------------------------

func (h *Hub) addClient(c *Client) {
	first := h.registry.add(c)
	h.logger.Info("client registered",
		zap.String("client_id", c.ID),
		zap.String("user_id", c.UserID),
		zap.Bool("first_connection", first),
	)

	if first {
		h.setPresence(c.UserID, true)
	}
}

func (h *Hub) removeClient(c *Client) {
	removed, last := h.registry.remove(c)
	if !removed {
		return
	}

	// Pull the connection out of every signaling room it joined; an
	// emptied room means the call is implicitly over.
	for _, d := range h.rooms.leaveAll(c.ID) {
		if d.deleted {
			h.logger.Info("room emptied by disconnect", zap.String("room_id", d.roomID))
			continue
		}
		left := event.NewEvent(event.EventUserLeft, model.UserLeftEvent{RoomID: d.roomID, UserID: c.ID})
		for _, m := range d.remaining {
			if !m.SafeSend(left, sendTimeout) {
				h.logger.Debug("user_left not delivered", zap.String("target", m.ID))
			}
		}
	}

	if last {
		h.setPresence(c.UserID, false)
	}

	c.Close()
	h.logger.Info("client removed",
		zap.String("client_id", c.ID),
		zap.String("user_id", c.UserID),
		zap.Bool("last_connection", last),
	)
}

// setPresence applies the durable flag and the global presence
// broadcast. The flag write is best-effort and queued to a dedicated
// writer, so a slow store never stalls the manager loop; the single
// writer also keeps a user's online/offline writes in order.
func (h *Hub) setPresence(userID string, online bool) {
	select {
	case h.presence <- presenceUpdate{userID: userID, online: online}:
	default:
		h.logger.Warn("presence queue full, flag update dropped",
			zap.String("user_id", userID),
			zap.Bool("online", online),
		)
	}

	ev := event.NewEvent(event.EventUserStatusChange, model.UserStatusChange{
		UserID:   userID,
		IsOnline: online,
	})
	for _, c := range h.registry.snapshot() {
		c.SafeSend(ev, sendTimeout)
	}
}

func (h *Hub) presenceWriter() {
	defer h.wg.Done()
	for {
		select {
		case <-h.ctx.Done():
			return
		case u := <-h.presence:
			if err := h.users.SetOnline(h.ctx, u.userID, u.online); err != nil {
				h.logger.Error("presence flag update failed",
					zap.String("user_id", u.userID),
					zap.Bool("online", u.online),
					zap.Error(err),
				)
			}
		}
	}
}

// -----------------------------------------------------------------
// Targeted delivery
// -----------------------------------------------------------------

// NotifyUser sends an event to every open connection of one user. A
// user with no connections is a silent skip.
func (h *Hub) NotifyUser(userID string, ev event.WsEvent) {
	conns := h.registry.connectionsFor(userID)
	if len(conns) == 0 {
		h.logger.Debug("no open connections for user", zap.String("user_id", userID), zap.String("event", ev.Event))
		return
	}
	for _, c := range conns {
		if !c.SafeSend(ev, sendTimeout) {
			h.logger.Debug("event not delivered",
				zap.String("target", c.ID),
				zap.String("event", ev.Event),
			)
			if kickOnFull {
				select {
				case h.unregister <- c:
				default:
				}
			}
		}
	}
}

// sendToConnection targets one connection id; a missing or closed target
// is logged and skipped, never escalated.
func (h *Hub) sendToConnection(connID string, ev event.WsEvent) {
	target := h.registry.find(connID)
	if target == nil {
		h.logger.Debug("target connection gone", zap.String("target", connID), zap.String("event", ev.Event))
		return
	}
	if !target.SafeSend(ev, sendTimeout) {
		h.logger.Debug("event not delivered", zap.String("target", connID), zap.String("event", ev.Event))
	}
}

// -----------------------------------------------------------------
// HTTP entry & shutdown
// -----------------------------------------------------------------

var websocketUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	switch origin {
	case "", "http://localhost:3000":
		return true
	case "https://www.medsystem.health":
		return true
	default:
		return false
	}
}

// ServeWS upgrades an authenticated handshake into a registered client.
// The userId requirement is enforced by the route before this point.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID, peerID string) {
	conn, err := websocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	RegisterClient(userID, peerID, conn, h)
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		h.cancel()

		for _, c := range h.registry.snapshot() {
			c.Close()
		}

		for _, queue := range h.inbound {
			close(queue)
		}
		h.wg.Wait()
	})
}
