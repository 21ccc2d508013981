package socket

import (
	"log/slog"
	"sync"
	"time"

	"github.com/getmockd/wsmock/pkg/logging"
)

// Handler receives dispatched events.
type Handler func(Event)

// ListenerID identifies a listener for RemoveEventListener.
type ListenerID uint64

type listener struct {
	id ListenerID
	fn Handler
}

// EventTarget holds the property handlers and listeners of a socket and
// delivers events to them in FIFO order.
//
// Only one goroutine delivers at a time. Events enqueued while a delivery is
// in progress, including events enqueued by listeners themselves, are handed
// to the delivering goroutine instead of being delivered recursively.
type EventTarget struct {
	id     string
	logger *slog.Logger

	mu        sync.Mutex
	handlers  map[EventType]Handler
	listeners map[EventType][]listener
	nextID    ListenerID
	queue     []Event
	draining  bool
}

// NewEventTarget creates an event target that stamps events with id.
func NewEventTarget(id string, logger *slog.Logger) *EventTarget {
	return &EventTarget{
		id:        id,
		logger:    logging.OrNop(logger),
		handlers:  make(map[EventType]Handler),
		listeners: make(map[EventType][]listener),
	}
}

// SetHandler sets the property handler for an event type. A nil handler clears it.
func (t *EventTarget) SetHandler(typ EventType, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if h == nil {
		delete(t.handlers, typ)
		return
	}
	t.handlers[typ] = h
}

// OnOpen sets the open property handler.
func (t *EventTarget) OnOpen(h Handler) { t.SetHandler(EventOpen, h) }

// OnMessage sets the message property handler.
func (t *EventTarget) OnMessage(h Handler) { t.SetHandler(EventMessage, h) }

// OnClose sets the close property handler.
func (t *EventTarget) OnClose(h Handler) { t.SetHandler(EventClose, h) }

// OnError sets the error property handler.
func (t *EventTarget) OnError(h Handler) { t.SetHandler(EventError, h) }

// AddEventListener appends a listener for an event type.
func (t *EventTarget) AddEventListener(typ EventType, h Handler) ListenerID {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := t.nextID
	if h != nil {
		t.listeners[typ] = append(t.listeners[typ], listener{id: id, fn: h})
	}
	return id
}

// RemoveEventListener removes a listener. It reports whether the listener existed.
func (t *EventTarget) RemoveEventListener(typ EventType, id ListenerID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	ls := t.listeners[typ]
	for i, l := range ls {
		if l.id == id {
			next := make([]listener, 0, len(ls)-1)
			next = append(next, ls[:i]...)
			next = append(next, ls[i+1:]...)
			t.listeners[typ] = next
			return true
		}
	}
	return false
}

// ListenerCount returns the number of listeners for an event type, not
// counting the property handler.
func (t *EventTarget) ListenerCount(typ EventType) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.listeners[typ])
}

// DispatchEvent enqueues ev and delivers the queue.
func (t *EventTarget) DispatchEvent(ev Event) {
	t.Enqueue(ev)
	t.Drain()
}

// Enqueue adds ev to the delivery queue without delivering it. Socket
// implementations call it while holding their own state lock so that queue
// order matches state order, then call Drain after unlocking.
func (t *EventTarget) Enqueue(ev Event) {
	if ev.Target == "" {
		ev.Target = t.id
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	t.mu.Lock()
	t.queue = append(t.queue, ev)
	t.mu.Unlock()
}

// Drain delivers queued events until the queue is empty. It returns at once if
// another goroutine is already delivering; that goroutine picks up the rest.
func (t *EventTarget) Drain() {
	t.mu.Lock()
	if t.draining {
		t.mu.Unlock()
		return
	}
	t.draining = true
	for len(t.queue) > 0 {
		ev := t.queue[0]
		t.queue[0] = Event{}
		t.queue = t.queue[1:]

		h := t.handlers[ev.Type]
		ls := t.listeners[ev.Type]
		t.mu.Unlock()

		if h != nil {
			t.invoke(h, ev, "handler")
		}
		for _, l := range ls {
			t.invoke(l.fn, ev, "listener")
		}

		t.mu.Lock()
	}
	t.queue = nil
	t.draining = false
	t.mu.Unlock()
}

func (t *EventTarget) invoke(fn Handler, ev Event, kind string) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Warn("event "+kind+" panicked",
				"socket", t.id,
				"event", string(ev.Type),
				"panic", r,
			)
		}
	}()
	fn(ev)
}
