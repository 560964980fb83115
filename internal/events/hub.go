// Package events pushes turn results to the presentation layer.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// subscriberBuffer bounds each subscriber's pending events; the oldest event
// is dropped when a slow consumer falls behind.
const subscriberBuffer = 16

// TurnEvent is the produced event for one completed turn.
type TurnEvent struct {
	ID             string    `json:"id"`
	Username       string    `json:"username,omitempty"`
	SessionKey     string    `json:"session_key"`
	Goal           string    `json:"goal"`
	Module         string    `json:"module"`
	Reply          string    `json:"reply"`
	Output         string    `json:"output,omitempty"`
	CourseComplete bool      `json:"course_complete,omitempty"`
	At             time.Time `json:"at"`
}

// NewTurnEvent stamps an event with an ID and timestamp.
func NewTurnEvent(username, sessionKey, goal, module, reply, output string, courseComplete bool) TurnEvent {
	return TurnEvent{
		ID:             uuid.NewString(),
		Username:       username,
		SessionKey:     sessionKey,
		Goal:           goal,
		Module:         module,
		Reply:          reply,
		Output:         output,
		CourseComplete: courseComplete,
		At:             time.Now(),
	}
}

type subscriber struct {
	id int64
	ch chan TurnEvent
}

// Hub fans turn events out to websocket subscribers, keyed by identity.
// Publishing to a key with no subscribers is a no-op.
type Hub struct {
	mu     sync.RWMutex
	nextID int64
	subs   map[string][]*subscriber
}

// NewHub creates an event hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string][]*subscriber)}
}

// Subscribe registers a consumer for a key and returns its channel plus an
// unsubscribe function. The channel is closed on unsubscribe.
func (h *Hub) Subscribe(key string) (<-chan TurnEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &subscriber{id: h.nextID, ch: make(chan TurnEvent, subscriberBuffer)}
	h.subs[key] = append(h.subs[key], sub)

	return sub.ch, func() { h.unsubscribe(key, sub.id) }
}

func (h *Hub) unsubscribe(key string, id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subs[key]
	for i, s := range subs {
		if s.id != id {
			continue
		}
		h.subs[key] = append(subs[:i], subs[i+1:]...)
		close(s.ch)
		break
	}
	if len(h.subs[key]) == 0 {
		delete(h.subs, key)
	}
}

// Publish delivers the event to every subscriber for the key, dropping the
// oldest pending event for consumers that have fallen behind. An empty key
// identifies no session and is never delivered.
func (h *Hub) Publish(key string, ev TurnEvent) {
	if key == "" {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.subs[key] {
		for {
			select {
			case s.ch <- ev:
			default:
				select {
				case <-s.ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// SubscriberCount reports how many consumers a key currently has.
func (h *Hub) SubscriberCount(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[key])
}
