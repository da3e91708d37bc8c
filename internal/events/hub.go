package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"
)

// Wildcard subscribes to every event type.
const Wildcard = "*"

const DefaultSubscriberBuffer = 16

var ErrHubUnavailable = errors.New("hub_unavailable")

type Event struct {
	Type       string          `json:"type"`
	DeliveryID string          `json:"deliveryId,omitempty"`
	ReceivedAt time.Time       `json:"receivedAt"`
	Payload    json.RawMessage `json:"payload"`
}

// Dispatcher fans a verified event out to live subscribers.
type Dispatcher interface {
	// Publish returns how many subscribers the event was handed to in this process.
	Publish(ctx context.Context, event Event) int
}

// Hub delivers to in-process subscribers only. Slow subscribers drop events.
type Hub struct {
	mu               sync.RWMutex
	subs             map[uint64]*Subscription
	nextID           uint64
	subscriberBuffer int
}

type Subscription struct {
	hub   *Hub
	id    uint64
	types map[string]struct{}
	ch    chan Event
	once  sync.Once
}

func NewHub() *Hub {
	return &Hub{
		subs:             make(map[uint64]*Subscription),
		subscriberBuffer: DefaultSubscriberBuffer,
	}
}

func (h *Hub) Publish(_ context.Context, event Event) int {
	if h == nil {
		return 0
	}
	eventType := strings.TrimSpace(event.Type)

	h.mu.RLock()
	targets := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		if sub.matches(eventType) {
			targets = append(targets, sub)
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, sub := range targets {
		select {
		case sub.ch <- event:
			delivered++
		default:
		}
	}
	return delivered
}

// Subscribe registers for the given types. No types means every type.
func (h *Hub) Subscribe(types ...string) (*Subscription, error) {
	if h == nil {
		return nil, ErrHubUnavailable
	}
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		set[t] = struct{}{}
	}
	if len(set) == 0 {
		set[Wildcard] = struct{}{}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	sub := &Subscription{
		hub:   h,
		id:    id,
		types: set,
		ch:    make(chan Event, h.subscriberBuffer),
	}
	h.subs[id] = sub
	return sub, nil
}

func (h *Hub) SubscriberCount() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) unsubscribe(id uint64) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

func (s *Subscription) matches(eventType string) bool {
	if _, ok := s.types[Wildcard]; ok {
		return true
	}
	_, ok := s.types[eventType]
	return ok
}

func (s *Subscription) Events() <-chan Event {
	if s == nil {
		return nil
	}
	return s.ch
}

func (s *Subscription) Close() {
	if s == nil || s.hub == nil {
		return
	}
	s.once.Do(func() {
		s.hub.unsubscribe(s.id)
	})
}
