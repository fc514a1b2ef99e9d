package protocol

import (
	"math"
	"testing"
)

func telemetryAt(ts float32) TelemetryPacket {
	p := NewTelemetryPacket()
	p.TimestampSeconds = ts
	p.TemperatureCelsius = 21.5
	p.PressurePascals = 101325
	p.MagXMicroteslas = 23.1
	p.MagYMicroteslas = -4.2
	p.MagZMicroteslas = 40.0
	return p
}

func TestParser_HappyPathTelemetry(t *testing.T) {
	par := NewParser(nil)

	var stream []byte
	for _, ts := range []float32{0.000, 0.010, 0.020} {
		stream = append(stream, BuildTelemetryFrame(telemetryAt(ts))...)
	}
	par.ParseBytes(stream)

	for i, want := range []float32{0.000, 0.010, 0.020} {
		pkt, ok := par.NextPacket()
		if !ok {
			t.Fatalf("packet %d missing", i)
		}
		if pkt.TimestampSeconds != want {
			t.Fatalf("packet %d timestamp = %v, want %v", i, pkt.TimestampSeconds, want)
		}
	}
	if _, ok := par.NextPacket(); ok {
		t.Fatalf("extra packet queued")
	}
	if _, ok := par.NextResponse(); ok {
		t.Fatalf("telemetry leaked into the response queue")
	}
}

func TestParser_CorruptionRecovery(t *testing.T) {
	par := NewParser(nil)

	stream := []byte{0xFF, 0xFF, 0xFF}
	stream = append(stream, BuildTelemetryFrame(telemetryAt(1.5))...)
	par.ParseBytes(stream)

	pkt, ok := par.NextPacket()
	if !ok {
		t.Fatalf("packet after corruption not decoded")
	}
	if pkt.TimestampSeconds != 1.5 {
		t.Fatalf("timestamp = %v, want 1.5", pkt.TimestampSeconds)
	}
	if par.Counters().FramingFaults == 0 {
		t.Fatalf("discarded garbage not charged as a framing fault")
	}
}

func TestParser_ResponsesAndPacketsSeparate(t *testing.T) {
	par := NewParser(nil)

	var stream []byte
	stream = append(stream, BuildTelemetryFrame(telemetryAt(0.1))...)
	stream = append(stream, BuildFrame(IDCancelAck, []byte{1})...)
	stream = append(stream, BuildTelemetryFrame(telemetryAt(0.2))...)
	par.ParseBytes(stream)

	if _, ok := par.NextPacket(); !ok {
		t.Fatalf("first packet missing")
	}
	if _, ok := par.NextPacket(); !ok {
		t.Fatalf("second packet missing")
	}
	resp, ok := par.NextResponse()
	if !ok {
		t.Fatalf("response missing")
	}
	if ack, isAck := resp.(CancelAck); !isAck || !bool(ack) {
		t.Fatalf("response = %#v, want CancelAck(true)", resp)
	}
}

func TestParser_UnknownIDCountedNotFatal(t *testing.T) {
	par := NewParser(nil)

	var stream []byte
	stream = append(stream, BuildFrame(0x3E, []byte{1, 2, 3})...) // data range, unassigned
	stream = append(stream, BuildFrame(0x7E, nil)...)             // response range, unassigned
	stream = append(stream, BuildFrame(0xC5, nil)...)             // outside all ranges
	stream = append(stream, BuildTelemetryFrame(telemetryAt(3.0))...)
	par.ParseBytes(stream)

	if got := par.Counters().UnknownIDs; got != 3 {
		t.Fatalf("UnknownIDs = %d, want 3", got)
	}
	if _, ok := par.NextPacket(); !ok {
		t.Fatalf("stream did not continue past unknown ids")
	}
}

func TestParser_MalformedPayloadCounted(t *testing.T) {
	par := NewParser(nil)

	// Wrong body length for a telemetry frame.
	par.ParseBytes(BuildFrame(IDTelemetry, make([]byte, 16)))

	// NaN timestamp.
	bad := telemetryAt(0)
	bad.TimestampSeconds = float32(math.NaN())
	par.ParseBytes(BuildTelemetryFrame(bad))

	// Device config with an out-of-range protocol enum.
	body := make([]byte, deviceConfigBodyLen)
	body[deviceNameLen+frequencyLen] = 9
	par.ParseBytes(BuildFrame(IDDeviceConfigResponse, body))

	if got := par.Counters().MalformedPayloads; got != 3 {
		t.Fatalf("MalformedPayloads = %d, want 3", got)
	}
	if _, ok := par.NextPacket(); ok {
		t.Fatalf("malformed telemetry delivered")
	}
	if _, ok := par.NextResponse(); ok {
		t.Fatalf("malformed response delivered")
	}
}

func TestParser_DiagnosticHookObservesFaults(t *testing.T) {
	seen := map[FaultKind]int{}
	par := NewParser(func(kind FaultKind) { seen[kind]++ })

	par.ParseBytes([]byte{sync0, sync1, IDTelemetry, 0x70, 0x00}) // header only, then corrupt
	par.ParseBytes(make([]byte, telemetryBodyLen+2))              // zero body, zero CRC: mismatch
	par.ParseBytes(BuildFrame(0xBF, nil))                         // command id inbound

	if seen[FaultFraming] == 0 {
		t.Fatalf("hook did not see framing fault: %v", seen)
	}
	if seen[FaultUnknownID] == 0 {
		t.Fatalf("hook did not see unknown id: %v", seen)
	}
}
