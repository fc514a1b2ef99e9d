package client

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/mocklog"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/protocol"
)

type mockStreamState struct {
	mu       sync.Mutex
	starting bool
	cancel   context.CancelFunc
	done     chan struct{}
	sent     int
	playErr  error
}

// activeLocked reports whether a stream is starting or its goroutine has not
// exited yet. Callers hold mu.
func (m *mockStreamState) activeLocked() bool {
	if m.starting {
		return true
	}
	if m.done == nil {
		return false
	}
	select {
	case <-m.done:
		return false
	default:
		return true
	}
}

// StartMockLogStream replays a capture file to the device as a synthetic
// sensor stream. The device is switched into mock mode first and must
// acknowledge within startTimeout. The replay itself runs on a background
// goroutine; telemetry keeps flowing through the normal read path while it
// does.
//
// speed scales the recorded pacing; realtime=false streams as fast as the
// sink accepts. With cancelOnFinish the device is sent a cancel command when
// the capture ends.
func (c *Client) StartMockLogStream(path string, startTimeout time.Duration, realtime bool, speed float64, cancelOnFinish bool) error {
	c.mock.mu.Lock()
	if c.mock.activeLocked() {
		c.mock.mu.Unlock()
		return ErrMockStreamRunning
	}
	if c.mock.cancel != nil {
		// Previous stream finished; release its context.
		c.mock.cancel()
		c.mock.cancel = nil
		c.mock.done = nil
	}
	c.mock.starting = true
	c.mock.mu.Unlock()

	defer func() {
		c.mock.mu.Lock()
		c.mock.starting = false
		c.mock.mu.Unlock()
	}()

	if !c.running.Load() {
		return ErrNotRunning
	}

	_, records, err := mocklog.Open(path)
	if err != nil {
		return fmt.Errorf("client: open mock log: %w", err)
	}

	// The device must agree to treat inbound frames as sensor input.
	resp, ok, err := c.request(protocol.EncodeMock(), startTimeout, func(r protocol.Response) bool {
		_, is := r.(protocol.MockAck)
		return is
	})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("client: mock mode acknowledgement timed out")
	}
	if !bool(resp.(protocol.MockAck)) {
		return ErrMockRejected
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.mock.mu.Lock()
	c.mock.cancel = cancel
	c.mock.done = done
	c.mock.sent = 0
	c.mock.playErr = nil
	c.mock.mu.Unlock()

	go func() {
		defer close(done)
		sent, err := mocklog.Play(ctx, records, speed, realtime, nil, c.writeFrame)

		c.mock.mu.Lock()
		c.mock.sent = sent
		c.mock.playErr = err
		c.mock.mu.Unlock()

		if err != nil {
			log.Printf("mock log stream stopped: %v", err)
		}
		if cancelOnFinish && ctx.Err() == nil {
			// Fire and forget; there is no one to wait on the ack here.
			_ = c.writeFrame(protocol.EncodeCancel())
		}
	}()

	return nil
}

// IsMockLogStreaming reports whether a replay goroutine is active.
func (c *Client) IsMockLogStreaming() bool {
	c.mock.mu.Lock()
	defer c.mock.mu.Unlock()
	return c.mock.activeLocked()
}

// StopMockLogStream cancels an active replay. With cancelDevice a cancel
// command is also sent to the device. With wait the call blocks until the
// replay goroutine has exited and returns the frame count it reached.
// Idempotent: stopping an already-stopped stream returns (0, nil).
func (c *Client) StopMockLogStream(cancelDevice, wait bool) (int, error) {
	return c.stopMockStream(cancelDevice, wait)
}

func (c *Client) stopMockStream(cancelDevice, wait bool) (int, error) {
	c.mock.mu.Lock()
	cancel := c.mock.cancel
	done := c.mock.done
	c.mock.mu.Unlock()

	if cancel == nil || done == nil {
		return 0, nil
	}
	cancel()

	if cancelDevice && c.running.Load() {
		_ = c.writeFrame(protocol.EncodeCancel())
	}

	if !wait {
		select {
		case <-done:
		default:
			return 0, nil
		}
	} else {
		<-done
	}

	c.mock.mu.Lock()
	defer c.mock.mu.Unlock()
	c.mock.cancel = nil
	c.mock.done = nil
	return c.mock.sent, c.mock.playErr
}
