package client

import (
	"context"
	"log"
	"time"

	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/magcal"
)

var identityScale = [9]float32{1, 0, 0, 0, 1, 0, 0, 0, 1}

// RunAndApplyMagnetometerCalibration runs the full magnetometer calibration
// sequence: reset the device to an identity calibration, collect telemetry
// for collectDuration while the user rotates the device, fit hard and soft
// iron corrections, and upload the result.
//
// Returns the fit and whether the device acknowledged the upload. A nil fit
// with nil error means the collection was underdetermined (or a device ack
// was missing); a communication failure is an error.
func (c *Client) RunAndApplyMagnetometerCalibration(ctx context.Context, collectDuration, applyTimeout time.Duration) (*magcal.Calibration, bool, error) {
	// Stale calibration would bias every collected sample, so zero it first.
	ok, err := c.SetMagnetometerCalibration([3]float32{}, identityScale, applyTimeout)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	cal := magcal.New()
	cal.Start()
	token, err := c.Subscribe(cal.AddSample)
	if err != nil {
		return nil, false, err
	}

	// Collection window: the caller (or their user) rotates the device.
	timer := time.NewTimer(collectDuration)
	select {
	case <-ctx.Done():
		timer.Stop()
	case <-timer.C:
	}

	c.Unsubscribe(token)
	cal.Stop()

	fit := cal.Calculate()
	if fit == nil {
		log.Printf("magnetometer calibration failed: %d samples", cal.SampleCount())
		return nil, false, nil
	}
	if ctx.Err() != nil {
		// Cancelled: report the fit but do not touch the device.
		return fit, false, nil
	}

	acked, err := c.SetMagnetometerCalibration(fit.Offsets, fit.Scale, applyTimeout)
	if err != nil {
		return fit, false, err
	}
	log.Printf("magnetometer calibration applied: samples=%d field=%.2f acked=%v",
		cal.SampleCount(), fit.FieldStrength, acked)
	return fit, acked, nil
}
