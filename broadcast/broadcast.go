// broadcast/broadcast.go
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/wfunc/duelhub/models"
)

var ErrClosed = errors.New("broadcast: fabric closed")

// Event is what travels through the fabric. Origin carries the
// session ID of the publishing connection so a subscriber can filter
// out the bounce-back of its own departure notice.
type Event struct {
	Type     string                `json:"type"`
	Group    string                `json:"group"`
	Origin   string                `json:"origin,omitempty"`
	Snapshot *models.RoomSnapshot  `json:"snapshot,omitempty"`
	Data     json.RawMessage       `json:"data,omitempty"`
}

// Subscriber receives every event published to a group it joined.
// Deliver runs on the fabric's dispatch goroutine and must not block.
type Subscriber interface {
	ID() string
	Deliver(ev *Event)
}

// Fabric fans events out to every connection joined to a group,
// including connections held by other server processes when backed by
// redis or NATS. Delivery to one subscriber preserves publish order
// from a single publisher; there is no cross-publisher ordering.
type Fabric interface {
	Join(group string, sub Subscriber)
	Leave(group string, sub Subscriber)
	Publish(ctx context.Context, ev *Event) error
	Close() error
}

// Hub is the in-process group registry. It is the whole fabric for
// single-node runs and the local delivery end for the redis and NATS
// drivers.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[string]Subscriber
}

func NewHub() *Hub {
	return &Hub{groups: make(map[string]map[string]Subscriber)}
}

func (h *Hub) Join(group string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.groups[group]
	if !ok {
		subs = make(map[string]Subscriber)
		h.groups[group] = subs
	}
	subs[sub.ID()] = sub
}

func (h *Hub) Leave(group string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.groups[group]; ok {
		delete(subs, sub.ID())
		if len(subs) == 0 {
			delete(h.groups, group)
		}
	}
}

func (h *Hub) Publish(ctx context.Context, ev *Event) error {
	h.dispatch(ev)
	return nil
}

func (h *Hub) Close() error { return nil }

// dispatch delivers to the local members of the event's group.
func (h *Hub) dispatch(ev *Event) {
	h.mu.RLock()
	subs := make([]Subscriber, 0, len(h.groups[ev.Group]))
	for _, sub := range h.groups[ev.Group] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		sub.Deliver(ev)
	}
}

// GroupSize reports the local member count of a group.
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// Groups reports how many groups have local members.
func (h *Hub) Groups() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups)
}
