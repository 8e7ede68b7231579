package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"absensi/internal/logging"
	"absensi/internal/metrics"
)

const (
	defaultBuffer  = 32
	outboxSize     = 256
	forwardTimeout = 2 * time.Second
)

// Forwarder ships locally published payloads to other instances.
type Forwarder interface {
	Forward(ctx context.Context, payload []byte) error
}

// Subscription is one live viewer. Payloads arrive on C in publish order.
type Subscription struct {
	ch   chan []byte
	done chan struct{}
	once sync.Once
}

// C delivers JSON payloads.
func (s *Subscription) C() <-chan []byte { return s.ch }

// Done is closed when the subscription is removed from the hub.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Hub fans events out to every connected subscriber. Delivery never blocks
// the publisher: a subscriber whose queue is full misses the event, and so
// does the relay when its outbox is full.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	outbox chan []byte
	outCap int
	remote []func(Event)
	log    logging.Logger
}

// NewHub creates a hub with the given per-subscriber queue depth.
func NewHub(buffer int, log logging.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Hub{subs: make(map[*Subscription]struct{}), buffer: buffer, outCap: outboxSize, log: log}
}

// SetOutboxSize sets the relay queue depth used by the next SetForwarder.
func (h *Hub) SetOutboxSize(n int) {
	if n <= 0 {
		return
	}
	h.mu.Lock()
	h.outCap = n
	h.mu.Unlock()
}

// SetForwarder relays every local publish to other instances. Forwarding
// runs on its own goroutine behind a bounded outbox. A previous forwarder is
// stopped once its queued payloads are sent.
func (h *Hub) SetForwarder(f Forwarder) {
	h.mu.Lock()
	out := make(chan []byte, h.outCap)
	if h.outbox != nil {
		close(h.outbox)
	}
	h.outbox = out
	h.mu.Unlock()
	go h.forwardLoop(f, out)
}

func (h *Hub) forwardLoop(f Forwarder, out <-chan []byte) {
	for payload := range out {
		ctx, cancel := context.WithTimeout(context.Background(), forwardTimeout)
		if err := f.Forward(ctx, payload); err != nil {
			h.log.Warn("relay forward failed", "err", err)
		}
		cancel()
	}
}

// OnRemote registers fn for every event relayed in from another instance.
func (h *Hub) OnRemote(fn func(Event)) {
	h.mu.Lock()
	h.remote = append(h.remote, fn)
	h.mu.Unlock()
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe() *Subscription {
	s := &Subscription{ch: make(chan []byte, h.buffer), done: make(chan struct{})}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	metrics.Subscribers.Inc()
	h.log.Debug("subscriber connected", "subscribers", n)
	return s
}

// Unsubscribe removes s. Safe to call more than once.
func (h *Hub) Unsubscribe(s *Subscription) {
	h.mu.Lock()
	_, ok := h.subs[s]
	delete(h.subs, s)
	h.mu.Unlock()
	if ok {
		metrics.Subscribers.Dec()
	}
	s.once.Do(func() { close(s.done) })
}

// Close drops every subscriber and stops forwarding. Live connections see
// Done and hang up.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.outbox != nil {
		close(h.outbox)
		h.outbox = nil
	}
	snapshot := make([]*Subscription, 0, len(h.subs))
	for s := range h.subs {
		snapshot = append(snapshot, s)
	}
	h.mu.Unlock()
	for _, s := range snapshot {
		h.Unsubscribe(s)
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish delivers evt to local subscribers and queues it for other
// instances when a forwarder is set.
func (h *Hub) Publish(evt Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		h.log.Error("marshal event failed", "type", evt.Type, "err", err)
		return
	}
	metrics.BroadcastEvents.WithLabelValues(evt.Type).Inc()
	h.Deliver(payload)

	// the outbox is only closed under the write lock
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.outbox == nil {
		return
	}
	select {
	case h.outbox <- payload:
	default:
		metrics.BroadcastDropped.Inc()
		h.log.Warn("relay outbox full, event dropped", "type", evt.Type)
	}
}

// Receive handles a payload relayed from another instance: it is delivered
// to local subscribers, passed to OnRemote hooks and never forwarded again.
func (h *Hub) Receive(payload []byte) {
	h.Deliver(payload)

	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		h.log.Warn("relayed event undecodable", "err", err)
		return
	}
	h.mu.RLock()
	hooks := append([]func(Event){}, h.remote...)
	h.mu.RUnlock()
	for _, fn := range hooks {
		fn(evt)
	}
}

// Deliver pushes an already encoded payload to local subscribers only.
func (h *Hub) Deliver(payload []byte) {
	h.mu.RLock()
	snapshot := make([]*Subscription, 0, len(h.subs))
	for s := range h.subs {
		snapshot = append(snapshot, s)
	}
	h.mu.RUnlock()

	for _, s := range snapshot {
		select {
		case <-s.done:
		case s.ch <- payload:
		default:
			metrics.BroadcastDropped.Inc()
		}
	}
}
