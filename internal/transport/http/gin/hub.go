package httpgin

import (
	"context"
	"sync"
)

// ClassHub fans class change notices out to the availability streams open
// on this instance. Notices coalesce: a slow stream sees at most one
// pending wake-up and re-reads the current counts.
type ClassHub struct {
	mu   sync.Mutex
	subs map[int64]map[chan struct{}]struct{}

	done      chan struct{}
	closeOnce sync.Once
}

func NewClassHub() *ClassHub {
	return &ClassHub{
		subs: make(map[int64]map[chan struct{}]struct{}),
		done: make(chan struct{}),
	}
}

// Close ends every open stream. http.Server.Shutdown does not cancel
// request contexts, so the server registers Close with RegisterOnShutdown.
func (h *ClassHub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Done is closed once the hub is closed.
func (h *ClassHub) Done() <-chan struct{} { return h.done }

// Subscribe registers interest in classID. The returned func must be called
// to release the subscription.
func (h *ClassHub) Subscribe(classID int64) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	set, ok := h.subs[classID]
	if !ok {
		set = make(map[chan struct{}]struct{})
		h.subs[classID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, classID)
			}
		})
	}
}

// Notify wakes every stream watching classID. Its signature matches the
// handler of redis.ClassesPubSub.Subscribe.
func (h *ClassHub) Notify(_ context.Context, classID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[classID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (h *ClassHub) watchers(classID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[classID])
}
