package protocol

import "testing"

func TestNewTelemetryPacket_IdentityQuaternion(t *testing.T) {
	p := NewTelemetryPacket()
	if p.QuatW != 1 || p.QuatX != 0 || p.QuatY != 0 || p.QuatZ != 0 {
		t.Fatalf("zero packet quaternion = (%v,%v,%v,%v), want identity", p.QuatW, p.QuatX, p.QuatY, p.QuatZ)
	}
}

func TestTelemetry_EncodeDecodeRoundTrip(t *testing.T) {
	in := TelemetryPacket{
		TimestampSeconds:      12.345,
		TemperatureCelsius:    -7.25,
		PressurePascals:       84200,
		AccelXG:               0.01,
		AccelYG:               -0.98,
		AccelZG:               0.12,
		GyroXDegPerSec:        250.5,
		GyroYDegPerSec:        -1.0,
		GyroZDegPerSec:        0.125,
		MagXMicroteslas:       22.0,
		MagYMicroteslas:       -41.5,
		MagZMicroteslas:       7.75,
		PositionXMeters:       10,
		PositionYMeters:       -20,
		PositionZMeters:       1523.5,
		VelocityXMetersPerSec: 0.5,
		VelocityYMetersPerSec: -2.25,
		VelocityZMetersPerSec: 88,
		EstAccelXG:            0.02,
		EstAccelYG:            -1.01,
		EstAccelZG:            3.5,
		AngularRateXRadPerSec: 0.017,
		AngularRateYRadPerSec: -0.5,
		AngularRateZRadPerSec: 6.28,
		QuatW:                 0.7071,
		QuatX:                 0,
		QuatY:                 0.7071,
		QuatZ:                 0,
	}

	body := EncodeTelemetryBody(in)
	if len(body) != telemetryBodyLen {
		t.Fatalf("body length = %d, want %d", len(body), telemetryBodyLen)
	}
	out, err := decodeTelemetry(body)
	if err != nil {
		t.Fatalf("decodeTelemetry() error: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", out, in)
	}
}

func TestDecodeTelemetry_RejectsWrongLength(t *testing.T) {
	for _, n := range []int{0, telemetryBodyLen - 1, telemetryBodyLen + 1, telemetryBodyLen * 2} {
		if _, err := decodeTelemetry(make([]byte, n)); err == nil {
			t.Fatalf("decodeTelemetry accepted %d-byte body", n)
		}
	}
}
