package client

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/protocol"
)

// pipe is a buffered in-memory byte stream: writes append, reads block until
// data or close. It backs the mock device pair.
type pipe struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
	notify chan struct{}
}

func newPipe() *pipe {
	return &pipe{notify: make(chan struct{}, 1)}
}

func (p *pipe) Write(b []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	n, _ := p.buf.Write(b)
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
	return n, nil
}

// Read blocks until data is available or the pipe closes.
func (p *pipe) Read(b []byte) (int, error) {
	for {
		p.mu.Lock()
		if p.buf.Len() > 0 {
			n, _ := p.buf.Read(b)
			p.mu.Unlock()
			return n, nil
		}
		closed := p.closed
		p.mu.Unlock()
		if closed {
			return 0, io.EOF
		}
		<-p.notify
	}
}

// readTimeout is Read with a deadline; n=0 with nil error on timeout, like a
// serial port.
func (p *pipe) readTimeout(b []byte, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	for {
		p.mu.Lock()
		if p.buf.Len() > 0 {
			n, _ := p.buf.Read(b)
			p.mu.Unlock()
			return n, nil
		}
		closed := p.closed
		p.mu.Unlock()
		if closed {
			return 0, io.EOF
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, nil
		}
		timer := time.NewTimer(remaining)
		select {
		case <-p.notify:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (p *pipe) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	select {
	case p.notify <- struct{}{}:
	default:
	}
	return nil
}

// duplex joins two pipes into one io.ReadWriteCloser.
type duplex struct {
	r *pipe
	w *pipe
}

func (d duplex) Read(b []byte) (int, error)  { return d.r.Read(b) }
func (d duplex) Write(b []byte) (int, error) { return d.w.Write(b) }

func (d duplex) Close() error {
	_ = d.r.Close()
	return d.w.Close()
}

// MockDevice is the in-process counterpart of a client: what the client
// reads is what the mock writes and vice versa. It frames injected payloads
// with correct CRCs and lets tests observe the command frames the client
// sends. Safe for concurrent use.
type MockDevice struct {
	toClient   *pipe // device -> client
	fromClient *pipe // client -> device

	mu     sync.Mutex
	framer *protocol.Framer
}

// NewMock pairs a client with a mock device. The client is not started.
func NewMock(opts Options) (*Client, *MockDevice) {
	toClient := newPipe()
	fromClient := newPipe()

	c := NewFromStream(duplex{r: toClient, w: fromClient}, opts)
	d := &MockDevice{
		toClient:   toClient,
		fromClient: fromClient,
		framer:     protocol.NewFramer(nil),
	}
	return c, d
}

// InjectResponse frames a payload under the given response identifier and
// queues it on the client's inbound stream. Multiple injects queue up until
// the client reads them.
func (d *MockDevice) InjectResponse(id byte, payload []byte) error {
	_, err := d.toClient.Write(protocol.BuildFrame(id, payload))
	return err
}

// InjectTelemetry queues one framed telemetry packet.
func (d *MockDevice) InjectTelemetry(p protocol.TelemetryPacket) error {
	_, err := d.toClient.Write(protocol.BuildTelemetryFrame(p))
	return err
}

// InjectRaw queues arbitrary bytes, framed or not. Corruption tests use this.
func (d *MockDevice) InjectRaw(b []byte) error {
	_, err := d.toClient.Write(b)
	return err
}

// WaitForCommandIdentifier blocks up to timeout for the next validated frame
// from the client and returns its identifier. That is usually a command, but
// during mock log replay it is also the replayed telemetry frames. ok=false on
// timeout.
func (d *MockDevice) WaitForCommandIdentifier(timeout time.Duration) (byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	deadline := time.Now().Add(timeout)
	buf := make([]byte, 256)
	for {
		if id, _, ok := d.framer.Next(); ok {
			return id, true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, false
		}
		n, err := d.fromClient.readTimeout(buf, remaining)
		if n > 0 {
			d.framer.Feed(buf[:n])
		}
		if err != nil {
			// Client side closed; drain whatever is already framed.
			if id, _, ok := d.framer.Next(); ok {
				return id, true
			}
			return 0, false
		}
	}
}

// Close shuts both directions down.
func (d *MockDevice) Close() {
	_ = d.toClient.Close()
	_ = d.fromClient.Close()
}
