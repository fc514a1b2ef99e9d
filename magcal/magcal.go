// Package magcal accumulates magnetometer samples while the user rotates the
// device and fits hard-iron offsets plus a soft-iron correction matrix with a
// least-squares ellipsoid fit.
package magcal

import (
	"sync"

	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/protocol"
)

// MinSamples is the fewest samples Calculate will attempt a fit with. Nine
// points determine an ellipsoid; well above that is needed for noise.
const MinSamples = 200

// State is the calibrator's lifecycle position.
type State int

const (
	StateIdle State = iota
	StateCollecting
	StateFitting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCollecting:
		return "collecting"
	case StateFitting:
		return "fitting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Calibration is a completed fit. Applying it as Scale*(m-Offsets) maps raw
// readings onto a sphere.
type Calibration struct {
	// Offsets is the hard-iron bias to subtract, in µT.
	Offsets [3]float32
	// Scale is the row-major soft-iron correction matrix.
	Scale [9]float32
	// FieldStrength is the fit's normalising factor B = sqrt(1 + bᵀQb). It
	// is dimensionless, not a field magnitude in µT; Scale already includes
	// the 1/B factor.
	FieldStrength float32
}

// Apply corrects one raw magnetometer reading.
func (c Calibration) Apply(x, y, z float32) [3]float32 {
	dx := float64(x - c.Offsets[0])
	dy := float64(y - c.Offsets[1])
	dz := float64(z - c.Offsets[2])
	var out [3]float32
	for row := 0; row < 3; row++ {
		m := c.Scale[row*3:]
		out[row] = float32(float64(m[0])*dx + float64(m[1])*dy + float64(m[2])*dz)
	}
	return out
}

// Identity returns a no-op calibration.
func Identity() Calibration {
	return Calibration{Scale: [9]float32{1, 0, 0, 0, 1, 0, 0, 0, 1}}
}

// Calibrator collects samples and runs the fit once. Safe for concurrent use:
// AddSample is typically called from the client's reader goroutine while the
// controlling goroutine drives the state transitions.
type Calibrator struct {
	mu      sync.Mutex
	state   State
	samples [][3]float64
	result  *Calibration
}

// New returns an idle calibrator.
func New() *Calibrator {
	return &Calibrator{}
}

// State returns the current lifecycle state.
func (c *Calibrator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start clears any previous collection and begins accepting samples.
func (c *Calibrator) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = c.samples[:0]
	c.result = nil
	c.state = StateCollecting
}

// AddSample records the magnetometer triple of a telemetry packet. Samples
// are ignored unless the calibrator is collecting.
func (c *Calibrator) AddSample(p protocol.TelemetryPacket) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateCollecting {
		return
	}
	c.samples = append(c.samples, [3]float64{
		float64(p.MagXMicroteslas),
		float64(p.MagYMicroteslas),
		float64(p.MagZMicroteslas),
	})
}

// SampleCount returns how many samples have been collected.
func (c *Calibrator) SampleCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.samples)
}

// Stop ends collection; the next Calculate runs the fit.
func (c *Calibrator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateCollecting {
		c.state = StateFitting
	}
}

// Calculate runs the fit once and returns the calibration, or nil when the
// fit is underdetermined or not an ellipsoid. Repeated calls return the
// stored outcome.
func (c *Calibrator) Calculate() *Calibration {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateDone:
		return c.result
	case StateFitting:
	default:
		return nil
	}

	res := fitEllipsoid(c.samples)
	if res == nil {
		c.state = StateFailed
		return nil
	}
	c.result = res
	c.state = StateDone
	return res
}
