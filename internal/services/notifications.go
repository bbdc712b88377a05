package services

import (
	"context"
	"sync"
	"time"
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type Notification struct {
	Type    string    `json:"type"`
	EventID int64     `json:"eventId"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sentAt"`
}

type delivery struct {
	userIDs []int64
	payload Notification
}

// NotificationHub fans notifications out to the websocket connections of
// the addressed users. Run owns all writes.
type NotificationHub struct {
	mu      sync.RWMutex
	clients map[int64]map[Conn]bool
	ch      chan delivery
}

func NewNotificationHub() *NotificationHub {
	return &NotificationHub{
		clients: map[int64]map[Conn]bool{},
		ch:      make(chan delivery, 64),
	}
}

func (h *NotificationHub) Run(ctx context.Context) {
	for {
		select {
		case d := <-h.ch:
			h.deliver(d)
		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

func (h *NotificationHub) deliver(d delivery) {
	for _, userID := range d.userIDs {
		for _, conn := range h.connsFor(userID) {
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(d.payload); err != nil {
				h.Remove(userID, conn)
				_ = conn.Close()
			}
		}
	}
}

func (h *NotificationHub) connsFor(userID int64) []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := make([]Conn, 0, len(h.clients[userID]))
	for conn := range h.clients[userID] {
		conns = append(conns, conn)
	}
	return conns
}

// Notify queues a notification and returns how many of the addressed users
// currently have a connection. The queue drops messages when full.
func (h *NotificationHub) Notify(userIDs []int64, n Notification) int {
	online := 0
	for _, id := range userIDs {
		if h.Online(id) {
			online++
		}
	}
	select {
	case h.ch <- delivery{userIDs: userIDs, payload: n}:
	default:
		return 0
	}
	return online
}

func (h *NotificationHub) Add(userID int64, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = map[Conn]bool{}
	}
	h.clients[userID][conn] = true
}

func (h *NotificationHub) Remove(userID int64, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients[userID], conn)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

func (h *NotificationHub) Online(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

func (h *NotificationHub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, conns := range h.clients {
		total += len(conns)
	}
	return total
}

func (h *NotificationHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, conns := range h.clients {
		for conn := range conns {
			_ = conn.Close()
		}
		delete(h.clients, userID)
	}
}
