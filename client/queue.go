package client

import (
	"fmt"
	"sync"
	"time"

	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/protocol"
)

const maxListeners = 8

// packetQueue is the bounded telemetry FIFO between the reader goroutine and
// consumers. When full it drops the oldest packet so the freshest telemetry
// survives. Listeners observe every enqueued packet without consuming it;
// they are invoked after the lock is released.
type packetQueue struct {
	mu       sync.Mutex
	items    []protocol.TelemetryPacket
	capacity int
	dropped  uint64

	listeners  map[int]func(protocol.TelemetryPacket)
	nextListen int

	// notify wakes at most one blocked reader per push; readers re-check
	// under the lock, so a lost signal only costs a timer tick.
	notify chan struct{}
}

func newPacketQueue(capacity int) *packetQueue {
	return &packetQueue{
		capacity:  capacity,
		listeners: map[int]func(protocol.TelemetryPacket){},
		notify:    make(chan struct{}, 1),
	}
}

func (q *packetQueue) push(p protocol.TelemetryPacket) {
	q.mu.Lock()
	if len(q.items) >= q.capacity {
		q.items = q.items[1:]
		q.dropped++
	}
	q.items = append(q.items, p)

	var observers []func(protocol.TelemetryPacket)
	if len(q.listeners) > 0 {
		observers = make([]func(protocol.TelemetryPacket), 0, len(q.listeners))
		for _, fn := range q.listeners {
			observers = append(observers, fn)
		}
	}
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}

	// User code runs outside the queue lock.
	for _, fn := range observers {
		fn(p)
	}
}

// drainAll removes and returns every queued packet, blocking up to timeout
// for the first one. A zero timeout is a non-blocking drain.
func (q *packetQueue) drainAll(timeout time.Duration) []protocol.TelemetryPacket {
	deadline := time.Now().Add(timeout)
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			out := q.items
			q.items = nil
			q.mu.Unlock()
			return out
		}
		q.mu.Unlock()

		remaining := time.Until(deadline)
		if timeout <= 0 || remaining <= 0 {
			return nil
		}
		timer := time.NewTimer(remaining)
		select {
		case <-q.notify:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// drainLatest discards everything except the newest packet and returns it,
// blocking up to timeout for one to arrive.
func (q *packetQueue) drainLatest(timeout time.Duration) (protocol.TelemetryPacket, bool) {
	pkts := q.drainAll(timeout)
	if len(pkts) == 0 {
		return protocol.TelemetryPacket{}, false
	}
	return pkts[len(pkts)-1], true
}

func (q *packetQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *packetQueue) droppedCount() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// subscribe registers a side-effect listener. Listener count is bounded so a
// leak shows up as an error instead of slow enqueues.
func (q *packetQueue) subscribe(fn func(protocol.TelemetryPacket)) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.listeners) >= maxListeners {
		return 0, fmt.Errorf("client: listener limit (%d) reached", maxListeners)
	}
	q.nextListen++
	id := q.nextListen
	q.listeners[id] = fn
	return id, nil
}

func (q *packetQueue) unsubscribe(id int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.listeners, id)
}
