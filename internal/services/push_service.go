package services

import (
	"log"
	"sync"
	"time"

	"aimint-backend/internal/metrics"
	"aimint-backend/internal/models"

	"github.com/gorilla/websocket"
)

const (
	pushWriteWait  = 5 * time.Second
	pushSendBuffer = 256
)

// StatusUpdate is the frame pushed to subscribers on every transition.
type StatusUpdate struct {
	RequestID     string               `json:"request_id"`
	Status        models.RequestStatus `json:"status"`
	TokenID       *uint64              `json:"token_id,omitempty"`
	FailureReason string               `json:"failure_reason,omitempty"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// Subscription is one requester's websocket connection. All frames funnel
// through send and are written by a single pump goroutine; gorilla/websocket
// allows only one concurrent writer per connection, so notifiers never touch
// the connection directly.
type Subscription struct {
	requester string
	conn      *websocket.Conn
	send      chan StatusUpdate
	done      chan struct{}
	once      sync.Once
}

// PushService fans hub status changes out to websocket subscribers. Each
// connection subscribes to one requester address; slow or broken connections
// are dropped, never block a transition.
type PushService struct {
	mu    sync.RWMutex
	conns map[string]map[*Subscription]struct{} // requester -> subscriptions
}

// NewPushService creates an empty subscriber registry.
func NewPushService() *PushService {
	return &PushService{
		conns: make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe registers a connection for one requester's updates and starts
// its writer pump. The caller must pass the returned subscription to
// Unsubscribe when its reader loop exits.
func (s *PushService) Subscribe(requester string, conn *websocket.Conn) *Subscription {
	sub := &Subscription{
		requester: requester,
		conn:      conn,
		send:      make(chan StatusUpdate, pushSendBuffer),
		done:      make(chan struct{}),
	}

	s.mu.Lock()
	if s.conns[requester] == nil {
		s.conns[requester] = make(map[*Subscription]struct{})
	}
	s.conns[requester][sub] = struct{}{}
	s.mu.Unlock()

	metrics.WebSocketConnections.Inc()
	go s.writePump(sub)
	log.Printf("🔌 [Push] Subscriber added for %s", requester)
	return sub
}

// Unsubscribe removes a subscription and stops its pump. Safe to call more
// than once and from any goroutine.
func (s *PushService) Unsubscribe(sub *Subscription) {
	s.mu.Lock()
	if set, ok := s.conns[sub.requester]; ok {
		if _, present := set[sub]; present {
			delete(set, sub)
			metrics.WebSocketConnections.Dec()
		}
		if len(set) == 0 {
			delete(s.conns, sub.requester)
		}
	}
	s.mu.Unlock()

	sub.once.Do(func() { close(sub.done) })
}

// writePump is the sole goroutine writing to the connection.
func (s *PushService) writePump(sub *Subscription) {
	defer sub.conn.Close()
	for {
		select {
		case update := <-sub.send:
			sub.conn.SetWriteDeadline(time.Now().Add(pushWriteWait))
			if err := sub.conn.WriteJSON(update); err != nil {
				log.Printf("⚠️ [Push] Write failed for %s, dropping connection: %v", sub.requester, err)
				s.Unsubscribe(sub)
				return
			}
		case <-sub.done:
			sub.conn.SetWriteDeadline(time.Now().Add(pushWriteWait))
			sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// NotifyStatus pushes the request's current state to its requester's
// subscribers. Implements StatusNotifier.
func (s *PushService) NotifyStatus(req *models.MintRequest) {
	s.mu.RLock()
	set := s.conns[req.Requester]
	targets := make([]*Subscription, 0, len(set))
	for sub := range set {
		targets = append(targets, sub)
	}
	s.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	update := StatusUpdate{
		RequestID:     req.ID,
		Status:        req.Status,
		TokenID:       req.TokenID,
		FailureReason: req.FailureReason,
		UpdatedAt:     req.UpdatedAt,
	}
	for _, sub := range targets {
		select {
		case sub.send <- update:
		case <-sub.done:
		default:
			// Full buffer means the consumer stopped reading long ago.
			log.Printf("⚠️ [Push] Slow subscriber for %s, dropping connection", req.Requester)
			s.Unsubscribe(sub)
		}
	}
}
