package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// TelemetryPacket is one decoded FIRM data frame: raw sensor readings plus
// the device's onboard state estimate. All values are in the units the
// device reports; nothing is reinterpreted on the host.
type TelemetryPacket struct {
	// TimestampSeconds is seconds since device boot, monotonic within a
	// session.
	TimestampSeconds float32

	TemperatureCelsius float32
	PressurePascals    float32

	AccelXG float32
	AccelYG float32
	AccelZG float32

	GyroXDegPerSec float32
	GyroYDegPerSec float32
	GyroZDegPerSec float32

	MagXMicroteslas float32
	MagYMicroteslas float32
	MagZMicroteslas float32

	PositionXMeters float32
	PositionYMeters float32
	PositionZMeters float32

	VelocityXMetersPerSec float32
	VelocityYMetersPerSec float32
	VelocityZMetersPerSec float32

	EstAccelXG float32
	EstAccelYG float32
	EstAccelZG float32

	AngularRateXRadPerSec float32
	AngularRateYRadPerSec float32
	AngularRateZRadPerSec float32

	QuatW float32
	QuatX float32
	QuatY float32
	QuatZ float32
}

// NewTelemetryPacket returns a zero packet with an identity orientation
// quaternion. An all-zero quaternion is never a valid orientation.
func NewTelemetryPacket() TelemetryPacket {
	return TelemetryPacket{QuatW: 1}
}

// fields enumerates the wire order of the 28 scalars.
func (p *TelemetryPacket) fields() []*float32 {
	return []*float32{
		&p.TimestampSeconds,
		&p.TemperatureCelsius,
		&p.PressurePascals,
		&p.AccelXG, &p.AccelYG, &p.AccelZG,
		&p.GyroXDegPerSec, &p.GyroYDegPerSec, &p.GyroZDegPerSec,
		&p.MagXMicroteslas, &p.MagYMicroteslas, &p.MagZMicroteslas,
		&p.PositionXMeters, &p.PositionYMeters, &p.PositionZMeters,
		&p.VelocityXMetersPerSec, &p.VelocityYMetersPerSec, &p.VelocityZMetersPerSec,
		&p.EstAccelXG, &p.EstAccelYG, &p.EstAccelZG,
		&p.AngularRateXRadPerSec, &p.AngularRateYRadPerSec, &p.AngularRateZRadPerSec,
		&p.QuatW, &p.QuatX, &p.QuatY, &p.QuatZ,
	}
}

// decodeTelemetry parses a telemetry frame body. The body must be exactly 28
// little-endian float32 scalars; a NaN timestamp is rejected.
func decodeTelemetry(body []byte) (TelemetryPacket, error) {
	var p TelemetryPacket
	if len(body) != telemetryBodyLen {
		return p, fmt.Errorf("telemetry body length %d, want %d", len(body), telemetryBodyLen)
	}
	for i, f := range p.fields() {
		*f = math.Float32frombits(binary.LittleEndian.Uint32(body[i*4:]))
	}
	if isNaN32(p.TimestampSeconds) {
		return p, fmt.Errorf("telemetry timestamp is NaN")
	}
	return p, nil
}

// EncodeTelemetryBody serializes a packet into the 112-byte wire body.
func EncodeTelemetryBody(p TelemetryPacket) []byte {
	body := make([]byte, telemetryBodyLen)
	for i, f := range p.fields() {
		binary.LittleEndian.PutUint32(body[i*4:], math.Float32bits(*f))
	}
	return body
}

// BuildTelemetryFrame frames a packet as a complete wire data frame.
func BuildTelemetryFrame(p TelemetryPacket) []byte {
	return BuildFrame(IDTelemetry, EncodeTelemetryBody(p))
}

func isNaN32(f float32) bool { return f != f }
