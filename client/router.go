package client

import (
	"sync"
	"time"

	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/protocol"
)

const (
	// backlogHorizon is how long an unmatched response is kept so a caller
	// that subscribes just after the reply arrived still observes it.
	backlogHorizon = 2 * time.Second
	backlogCap     = 32
)

// waiter is a single-shot response subscription: a predicate and a one-shot
// delivery channel. A waiter is resolved at most once.
type waiter struct {
	match func(protocol.Response) bool
	ch    chan protocol.Response
}

type backlogEntry struct {
	resp protocol.Response
	at   time.Time
}

// responseRouter matches inbound responses to outstanding request waiters.
// Waiters resolve in FIFO order: when two requests await the same response
// kind, the earlier request gets the earlier reply.
type responseRouter struct {
	mu      sync.Mutex
	waiters []*waiter
	backlog []backlogEntry
	closed  bool
}

func newResponseRouter() *responseRouter {
	return &responseRouter{}
}

// dispatch delivers one inbound response: the first matching waiter in FIFO
// order consumes it; otherwise it is kept in the bounded backlog.
func (r *responseRouter) dispatch(resp protocol.Response) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.pruneLocked(time.Now())

	for i, w := range r.waiters {
		if w.match(resp) {
			r.waiters = append(r.waiters[:i], r.waiters[i+1:]...)
			r.mu.Unlock()
			w.ch <- resp
			return
		}
	}

	if len(r.backlog) >= backlogCap {
		r.backlog = r.backlog[1:]
	}
	r.backlog = append(r.backlog, backlogEntry{resp: resp, at: time.Now()})
	r.mu.Unlock()
}

// await blocks until a response matching match arrives, up to timeout.
// Responses already in the backlog are consulted first. ok=false on timeout
// or router shutdown; in both cases no waiter is left behind.
func (r *responseRouter) await(match func(protocol.Response) bool, timeout time.Duration) (protocol.Response, bool) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, false
	}
	r.pruneLocked(time.Now())

	for i, e := range r.backlog {
		if match(e.resp) {
			r.backlog = append(r.backlog[:i], r.backlog[i+1:]...)
			r.mu.Unlock()
			return e.resp, true
		}
	}

	w := &waiter{match: match, ch: make(chan protocol.Response, 1)}
	r.waiters = append(r.waiters, w)
	r.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-w.ch:
		return resp, ok && resp != nil
	case <-timer.C:
	}

	// Timed out: remove the waiter unless dispatch got there first.
	r.mu.Lock()
	for i, other := range r.waiters {
		if other == w {
			r.waiters = append(r.waiters[:i], r.waiters[i+1:]...)
			r.mu.Unlock()
			return nil, false
		}
	}
	r.mu.Unlock()

	// The waiter was already resolved (or the router closed); the channel
	// carries the outcome.
	resp, ok := <-w.ch
	return resp, ok && resp != nil
}

// closeAll flushes every outstanding waiter with a nil result. Safe to call
// more than once.
func (r *responseRouter) closeAll() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	waiters := r.waiters
	r.waiters = nil
	r.backlog = nil
	r.mu.Unlock()

	for _, w := range waiters {
		close(w.ch)
	}
}

func (r *responseRouter) pruneLocked(now time.Time) {
	cutoff := now.Add(-backlogHorizon)
	keep := r.backlog[:0]
	for _, e := range r.backlog {
		if e.at.After(cutoff) {
			keep = append(keep, e)
		}
	}
	r.backlog = keep
}
