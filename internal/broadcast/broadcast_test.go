package broadcast

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/protocol"
)

func TestBroadcaster_SendPacket(t *testing.T) {
	lc, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("ListenUDP() error: %v", err)
	}
	defer lc.Close()

	b, err := NewBroadcaster(lc.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewBroadcaster() error: %v", err)
	}
	defer b.Close()

	p := protocol.NewTelemetryPacket()
	p.TimestampSeconds = 1.25
	p.TemperatureCelsius = 20.5
	p.MagXMicroteslas = 33
	if err := b.SendPacket(p); err != nil {
		t.Fatalf("SendPacket() error: %v", err)
	}

	_ = lc.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 2048)
	n, _, err := lc.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("ReadFromUDP() error: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(buf[:n], &got); err != nil {
		t.Fatalf("datagram is not JSON: %v", err)
	}
	if got["timestamp_s"] != 1.25 {
		t.Fatalf("timestamp_s = %v, want 1.25", got["timestamp_s"])
	}
	if got["quat_wxyz"].([]any)[0] != 1.0 {
		t.Fatalf("quat w = %v, want identity", got["quat_wxyz"])
	}
}

func TestBroadcaster_EmptyPayloadIsNoop(t *testing.T) {
	b, err := NewBroadcaster("127.0.0.1:9")
	if err != nil {
		t.Fatalf("NewBroadcaster() error: %v", err)
	}
	defer b.Close()
	if err := b.Send(nil); err != nil {
		t.Fatalf("Send(nil) error: %v", err)
	}
}

func TestBroadcaster_BadDest(t *testing.T) {
	if _, err := NewBroadcaster("not a dest"); err == nil {
		t.Fatalf("NewBroadcaster() accepted a bad destination")
	}
}
