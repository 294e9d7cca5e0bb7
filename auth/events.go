package auth

import (
	"sync"
)

// AuthChangeEvent names a session change
type AuthChangeEvent string

const (
	EventSignedIn       AuthChangeEvent = "SIGNED_IN"
	EventSignedOut      AuthChangeEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthChangeEvent = "TOKEN_REFRESHED"
	EventUserUpdated    AuthChangeEvent = "USER_UPDATED"
)

// listenerRegistry delivers events in emission order. Events emitted while
// a delivery is running, including from inside a listener, are queued and
// delivered by the goroutine already draining the queue.
type listenerRegistry struct {
	mu        sync.Mutex
	nextID    int
	order     []int
	listeners map[int]AuthStateListener
	queue     []pendingEvent
	draining  bool
	logger    Logger
}

type pendingEvent struct {
	event   AuthChangeEvent
	session *Session
}

func newListenerRegistry(logger Logger) *listenerRegistry {
	return &listenerRegistry{
		listeners: make(map[int]AuthStateListener),
		logger:    normalizeLogger(logger),
	}
}

func (r *listenerRegistry) add(fn AuthStateListener) Unsubscribe {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.order = append(r.order, id)
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(id) })
	}
}

func (r *listenerRegistry) remove(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.listeners, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *listenerRegistry) emit(event AuthChangeEvent, session *Session) {
	r.mu.Lock()
	r.queue = append(r.queue, pendingEvent{event: event, session: session})
	if r.draining {
		r.mu.Unlock()
		return
	}
	r.draining = true

	for len(r.queue) > 0 {
		next := r.queue[0]
		r.queue = r.queue[1:]

		snapshot := make([]AuthStateListener, 0, len(r.order))
		for _, id := range r.order {
			snapshot = append(snapshot, r.listeners[id])
		}
		r.mu.Unlock()

		for _, fn := range snapshot {
			r.deliver(fn, next.event, next.session)
		}

		r.mu.Lock()
	}

	r.queue = nil
	r.draining = false
	r.mu.Unlock()
}

func (r *listenerRegistry) deliver(fn AuthStateListener, event AuthChangeEvent, session *Session) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("auth state listener panic", "event", event, "panic", rec)
		}
	}()
	fn(event, session)
}
