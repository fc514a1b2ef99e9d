// Package broadcast re-publishes decoded telemetry as JSON datagrams so
// plotting and logging tools can watch a stream without touching the serial
// port.
package broadcast

import (
	"encoding/json"
	"fmt"
	"net"

	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/protocol"
)

type Broadcaster struct {
	dest string
	conn *net.UDPConn
}

func NewBroadcaster(dest string) (*Broadcaster, error) {
	addr, err := net.ResolveUDPAddr("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve dest: %w", err)
	}

	// DialUDP selects a suitable local address automatically.
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}

	return &Broadcaster{
		dest: dest,
		conn: conn,
	}, nil
}

// packetJSON is the wire shape of one telemetry datagram. Field names are
// stable; consumers key on them.
type packetJSON struct {
	TimestampS float64    `json:"timestamp_s"`
	TempC      float64    `json:"temp_c"`
	PressurePa float64    `json:"pressure_pa"`
	AccelG     [3]float64 `json:"accel_g"`
	GyroDps    [3]float64 `json:"gyro_dps"`
	MagUT      [3]float64 `json:"mag_ut"`
	PosM       [3]float64 `json:"pos_m"`
	VelMps     [3]float64 `json:"vel_mps"`
	Quat       [4]float64 `json:"quat_wxyz"`
}

// SendPacket marshals one telemetry packet and sends it as a datagram.
func (b *Broadcaster) SendPacket(p protocol.TelemetryPacket) error {
	msg := packetJSON{
		TimestampS: float64(p.TimestampSeconds),
		TempC:      float64(p.TemperatureCelsius),
		PressurePa: float64(p.PressurePascals),
		AccelG:     [3]float64{float64(p.AccelXG), float64(p.AccelYG), float64(p.AccelZG)},
		GyroDps:    [3]float64{float64(p.GyroXDegPerSec), float64(p.GyroYDegPerSec), float64(p.GyroZDegPerSec)},
		MagUT:      [3]float64{float64(p.MagXMicroteslas), float64(p.MagYMicroteslas), float64(p.MagZMicroteslas)},
		PosM:       [3]float64{float64(p.PositionXMeters), float64(p.PositionYMeters), float64(p.PositionZMeters)},
		VelMps:     [3]float64{float64(p.VelocityXMetersPerSec), float64(p.VelocityYMetersPerSec), float64(p.VelocityZMetersPerSec)},
		Quat:       [4]float64{float64(p.QuatW), float64(p.QuatX), float64(p.QuatY), float64(p.QuatZ)},
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.Send(payload)
}

func (b *Broadcaster) Send(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	_, err := b.conn.Write(payload)
	return err
}

func (b *Broadcaster) Close() error {
	if b.conn == nil {
		return nil
	}
	return b.conn.Close()
}
