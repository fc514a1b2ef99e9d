package client

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/protocol"
)

// Defaults for real hardware. Browser hosts typically run at 115200.
const (
	DefaultBaud        = 2_000_000
	DefaultReadTimeout = 100 * time.Millisecond

	defaultQueueSize = 1024
	readBufSize      = 1024
)

// Options tunes a client beyond the constructor arguments. The zero value is
// usable.
type Options struct {
	// QueueSize bounds the telemetry FIFO. Default 1024 packets; when full
	// the oldest packet is dropped.
	QueueSize int
	// Diagnostics, if set, observes non-fatal stream faults from the reader
	// goroutine. It must not block.
	Diagnostics protocol.DiagnosticFunc
}

// Client owns the I/O loop for one FIRM device: a dedicated reader
// goroutine, the frame parser, a bounded telemetry queue, and the response
// router. Public operations never block the reader.
type Client struct {
	stream io.ReadWriteCloser
	opts   Options

	queue  *packetQueue
	router *responseRouter

	writeMu sync.Mutex

	mu      sync.Mutex
	started bool
	stopped bool
	wg      sync.WaitGroup

	running atomic.Bool
	lastErr atomic.Value // error

	counters struct {
		framing   atomic.Uint64
		unknownID atomic.Uint64
		malformed atomic.Uint64
		pressure  atomic.Uint64
	}

	mock mockStreamState
}

// NewFromStream wraps an already-open byte stream. The client takes
// ownership: Stop closes it.
func NewFromStream(stream io.ReadWriteCloser, opts Options) *Client {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	return &Client{
		stream: stream,
		opts:   opts,
		queue:  newPacketQueue(opts.QueueSize),
		router: newResponseRouter(),
	}
}

// Start brings up the reader goroutine. It returns ErrAlreadyStarted on a
// live client and ErrNotRunning on one that has been stopped.
func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrNotRunning
	}
	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true
	c.running.Store(true)

	c.wg.Add(1)
	go c.readLoop()
	return nil
}

// Stop shuts the client down: cancels any mock log stream, flushes all
// outstanding waiters with nil results, closes the stream, and joins the
// reader. Stop is idempotent.
func (c *Client) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.mu.Unlock()

	c.stopMockStream(false, true)

	c.running.Store(false)
	// Closing the stream unblocks the reader's pending Read.
	_ = c.stream.Close()
	c.wg.Wait()
	c.router.closeAll()
}

// IsRunning reports whether the reader goroutine is live.
func (c *Client) IsRunning() bool { return c.running.Load() }

// Err returns the error that stopped the reader, if any.
func (c *Client) Err() error {
	if v := c.lastErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// Counters returns cumulative stream fault counts.
func (c *Client) Counters() protocol.Counters {
	return protocol.Counters{
		FramingFaults:     c.counters.framing.Load(),
		UnknownIDs:        c.counters.unknownID.Load(),
		MalformedPayloads: c.counters.malformed.Load(),
		BufferPressure:    c.counters.pressure.Load(),
	}
}

// DroppedPackets returns how many telemetry packets the bounded queue has
// discarded to stay within its capacity.
func (c *Client) DroppedPackets() uint64 { return c.queue.droppedCount() }

func (c *Client) readLoop() {
	defer c.wg.Done()

	parser := protocol.NewParser(c.onFault)
	buf := make([]byte, readBufSize)

	for c.running.Load() {
		n, err := c.stream.Read(buf)
		if n > 0 {
			parser.ParseBytes(buf[:n])
			for {
				pkt, ok := parser.NextPacket()
				if !ok {
					break
				}
				c.queue.push(pkt)
			}
			for {
				resp, ok := parser.NextResponse()
				if !ok {
					break
				}
				c.router.dispatch(resp)
			}
		}
		if err == nil {
			// Serial read timeouts surface as (0, nil); keep polling.
			continue
		}
		var timeoutErr interface{ Timeout() bool }
		if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
			continue
		}
		if c.running.Load() {
			// Unexpected I/O failure (not a Stop-initiated close).
			c.lastErr.Store(err)
			log.Printf("firm client reader stopped: %v", err)
		}
		break
	}

	c.running.Store(false)
	c.router.closeAll()
}

func (c *Client) onFault(kind protocol.FaultKind) {
	switch kind {
	case protocol.FaultFraming:
		c.counters.framing.Add(1)
	case protocol.FaultUnknownID:
		c.counters.unknownID.Add(1)
	case protocol.FaultMalformedPayload:
		c.counters.malformed.Add(1)
	case protocol.FaultBufferPressure:
		c.counters.pressure.Add(1)
	}
	if c.opts.Diagnostics != nil {
		c.opts.Diagnostics(kind)
	}
}

// writeFrame serializes writes from any caller onto the stream.
func (c *Client) writeFrame(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.stream.Write(frame); err != nil {
		return fmt.Errorf("client: write: %w", err)
	}
	return nil
}

// request writes a command frame and waits for the first response accepted
// by match. ok=false on timeout; the waiter is removed either way.
func (c *Client) request(frame []byte, timeout time.Duration, match func(protocol.Response) bool) (protocol.Response, bool, error) {
	if !c.running.Load() {
		return nil, false, ErrNotRunning
	}
	if err := c.writeFrame(frame); err != nil {
		return nil, false, err
	}
	resp, ok := c.router.await(match, timeout)
	return resp, ok, nil
}

// GetDataPackets drains the telemetry queue, blocking up to timeout for the
// first packet. A zero timeout drains without blocking. Packets are returned
// in parse order.
func (c *Client) GetDataPackets(timeout time.Duration) []protocol.TelemetryPacket {
	return c.queue.drainAll(timeout)
}

// MostRecentDataPacket returns the newest queued packet and discards older
// ones, blocking up to timeout for one to arrive.
func (c *Client) MostRecentDataPacket(timeout time.Duration) (protocol.TelemetryPacket, bool) {
	return c.queue.drainLatest(timeout)
}

// Subscribe registers a non-consuming telemetry listener invoked for every
// parsed packet. It returns a token for Unsubscribe. Listeners must be quick
// and must not block.
func (c *Client) Subscribe(fn func(protocol.TelemetryPacket)) (int, error) {
	return c.queue.subscribe(fn)
}

// Unsubscribe removes a listener registered with Subscribe.
func (c *Client) Unsubscribe(token int) {
	c.queue.unsubscribe(token)
}

// GetDeviceInfo requests device identity. nil without error means timeout.
func (c *Client) GetDeviceInfo(timeout time.Duration) (*protocol.DeviceInfo, error) {
	resp, ok, err := c.request(protocol.EncodeGetDeviceInfo(), timeout, func(r protocol.Response) bool {
		_, is := r.(protocol.DeviceInfo)
		return is
	})
	if err != nil || !ok {
		return nil, err
	}
	info := resp.(protocol.DeviceInfo)
	return &info, nil
}

// GetDeviceConfig requests the device configuration. nil without error means
// timeout.
func (c *Client) GetDeviceConfig(timeout time.Duration) (*protocol.DeviceConfig, error) {
	resp, ok, err := c.request(protocol.EncodeGetDeviceConfig(), timeout, func(r protocol.Response) bool {
		_, is := r.(protocol.DeviceConfig)
		return is
	})
	if err != nil || !ok {
		return nil, err
	}
	cfg := resp.(protocol.DeviceConfig)
	return &cfg, nil
}

// SetDeviceConfig uploads a configuration and waits for the acknowledgement.
// Encoder preconditions surface as ErrInvalidArgument before any bytes move.
func (c *Client) SetDeviceConfig(name string, frequencyHz uint16, proto protocol.Protocol, timeout time.Duration) (bool, error) {
	frame, err := protocol.EncodeSetDeviceConfig(name, frequencyHz, proto)
	if err != nil {
		return false, err
	}
	resp, ok, err := c.request(frame, timeout, func(r protocol.Response) bool {
		_, is := r.(protocol.SetDeviceConfigAck)
		return is
	})
	if err != nil || !ok {
		return false, err
	}
	return bool(resp.(protocol.SetDeviceConfigAck)), nil
}

// GetCalibration requests the stored sensor calibration. nil without error
// means timeout.
func (c *Client) GetCalibration(timeout time.Duration) (*protocol.CalibrationValues, error) {
	resp, ok, err := c.request(protocol.EncodeGetCalibration(), timeout, func(r protocol.Response) bool {
		_, is := r.(protocol.CalibrationValues)
		return is
	})
	if err != nil || !ok {
		return nil, err
	}
	cal := resp.(protocol.CalibrationValues)
	return &cal, nil
}

// SetIMUCalibration uploads accelerometer and gyroscope calibration and
// waits for the acknowledgement.
func (c *Client) SetIMUCalibration(accelOffsets [3]float32, accelScale [9]float32, gyroOffsets [3]float32, gyroScale [9]float32, timeout time.Duration) (bool, error) {
	frame, err := protocol.EncodeSetIMUCalibration(accelOffsets, accelScale, gyroOffsets, gyroScale)
	if err != nil {
		return false, err
	}
	resp, ok, err := c.request(frame, timeout, func(r protocol.Response) bool {
		_, is := r.(protocol.SetIMUCalibrationAck)
		return is
	})
	if err != nil || !ok {
		return false, err
	}
	return bool(resp.(protocol.SetIMUCalibrationAck)), nil
}

// SetMagnetometerCalibration uploads hard and soft iron correction and waits
// for the acknowledgement.
func (c *Client) SetMagnetometerCalibration(offsets [3]float32, scale [9]float32, timeout time.Duration) (bool, error) {
	frame, err := protocol.EncodeSetMagCalibration(offsets, scale)
	if err != nil {
		return false, err
	}
	resp, ok, err := c.request(frame, timeout, func(r protocol.Response) bool {
		_, is := r.(protocol.SetMagCalibrationAck)
		return is
	})
	if err != nil || !ok {
		return false, err
	}
	return bool(resp.(protocol.SetMagCalibrationAck)), nil
}

// Cancel asks the device to abort its current activity and waits for the
// acknowledgement.
func (c *Client) Cancel(timeout time.Duration) (bool, error) {
	resp, ok, err := c.request(protocol.EncodeCancel(), timeout, func(r protocol.Response) bool {
		_, is := r.(protocol.CancelAck)
		return is
	})
	if err != nil || !ok {
		return false, err
	}
	return bool(resp.(protocol.CancelAck)), nil
}

// Reboot sends the reboot command. The device does not acknowledge it.
func (c *Client) Reboot() error {
	if !c.running.Load() {
		return ErrNotRunning
	}
	return c.writeFrame(protocol.EncodeReboot())
}
