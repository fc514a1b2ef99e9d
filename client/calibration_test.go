package client

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/protocol"
)

// magSphere generates deterministic telemetry whose magnetometer readings
// lie on an offset sphere, enough for the ellipsoid fit to converge.
func magSphere(n int, radius float64, offset [3]float64) []protocol.TelemetryPacket {
	const goldenAngle = 2.39996322972865332
	out := make([]protocol.TelemetryPacket, 0, n)
	for i := 0; i < n; i++ {
		t := (float64(i) + 0.5) / float64(n)
		z := 1 - 2*t
		r := math.Sqrt(math.Max(0, 1-z*z))
		phi := float64(i) * goldenAngle

		p := protocol.NewTelemetryPacket()
		p.TimestampSeconds = float32(i) * 0.01
		p.MagXMicroteslas = float32(radius*r*math.Cos(phi) + offset[0])
		p.MagYMicroteslas = float32(radius*r*math.Sin(phi) + offset[1])
		p.MagZMicroteslas = float32(radius*z + offset[2])
		out = append(out, p)
	}
	return out
}

func TestRunAndApplyMagnetometerCalibration(t *testing.T) {
	c, d := startMockClient(t)

	offset := [3]float64{12, -7, 4}

	// Device side: ack the calibration reset, feed rotation telemetry once
	// the collection window is open, then ack the calibration upload.
	go func() {
		if id, ok := d.WaitForCommandIdentifier(time.Second); !ok || id != protocol.IDSetMagCalibration {
			t.Errorf("first command id = 0x%02x (ok=%v), want set-mag-calibration", id, ok)
			return
		}
		_ = d.InjectResponse(protocol.IDSetMagCalibrationAck, []byte{1})

		// The calibrator subscribes only after the reset ack is received;
		// telemetry parsed before that is not collected.
		time.Sleep(100 * time.Millisecond)
		for _, p := range magSphere(400, 45.0, offset) {
			_ = d.InjectTelemetry(p)
		}

		if id, ok := d.WaitForCommandIdentifier(5 * time.Second); !ok || id != protocol.IDSetMagCalibration {
			t.Errorf("apply command id = 0x%02x (ok=%v), want set-mag-calibration", id, ok)
			return
		}
		_ = d.InjectResponse(protocol.IDSetMagCalibrationAck, []byte{1})
	}()

	fit, acked, err := c.RunAndApplyMagnetometerCalibration(context.Background(), 500*time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("RunAndApplyMagnetometerCalibration() error: %v", err)
	}
	if fit == nil {
		t.Fatalf("fit failed")
	}
	if !acked {
		t.Fatalf("device ack not received")
	}
	for i, want := range offset {
		if got := float64(fit.Offsets[i]); math.Abs(got-want) > 0.1 {
			t.Fatalf("offset[%d] = %v, want ~%v", i, got, want)
		}
	}
}

func TestRunAndApplyMagnetometerCalibration_NoSamples(t *testing.T) {
	c, d := startMockClient(t)

	go func() {
		if id, ok := d.WaitForCommandIdentifier(time.Second); ok && id == protocol.IDSetMagCalibration {
			_ = d.InjectResponse(protocol.IDSetMagCalibrationAck, []byte{1})
		}
	}()

	fit, acked, err := c.RunAndApplyMagnetometerCalibration(context.Background(), 50*time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("RunAndApplyMagnetometerCalibration() error: %v", err)
	}
	if fit != nil || acked {
		t.Fatalf("calibration succeeded with no telemetry: fit=%v acked=%v", fit, acked)
	}
}

func TestRunAndApplyMagnetometerCalibration_ResetNotAcked(t *testing.T) {
	c, _ := startMockClient(t)

	// No device responses at all: the reset times out, nothing is applied.
	fit, acked, err := c.RunAndApplyMagnetometerCalibration(context.Background(), 50*time.Millisecond, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("RunAndApplyMagnetometerCalibration() error: %v", err)
	}
	if fit != nil || acked {
		t.Fatalf("calibration proceeded without reset ack")
	}
}
