package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Protocol is the device's host-facing communication interface.
type Protocol uint8

const (
	ProtocolUSB  Protocol = 1
	ProtocolUART Protocol = 2
	ProtocolI2C  Protocol = 3
	ProtocolSPI  Protocol = 4
)

func (p Protocol) String() string {
	switch p {
	case ProtocolUSB:
		return "USB"
	case ProtocolUART:
		return "UART"
	case ProtocolI2C:
		return "I2C"
	case ProtocolSPI:
		return "SPI"
	default:
		return fmt.Sprintf("Protocol(%d)", uint8(p))
	}
}

func (p Protocol) valid() bool {
	return p >= ProtocolUSB && p <= ProtocolSPI
}

// Response is a decoded reply frame. The set of variants is closed; routers
// match on the concrete type.
type Response interface {
	isResponse()
}

// DeviceInfo identifies the device and its firmware.
type DeviceInfo struct {
	FirmwareVersion string
	ID              uint64
}

// DeviceConfig is the device's reported configuration.
type DeviceConfig struct {
	Name        string
	FrequencyHz uint16
	Protocol    Protocol
}

// CalibrationValues holds the device's stored sensor calibration. Scale
// matrices are row-major.
type CalibrationValues struct {
	IMUAccelOffsets [3]float32
	IMUAccelScale   [9]float32
	IMUGyroOffsets  [3]float32
	IMUGyroScale    [9]float32
	MagOffsets      [3]float32
	MagScale        [9]float32
}

// Acks. Each command with an acknowledgement gets its own type so a waiter
// for one never consumes another's reply.
type (
	SetDeviceConfigAck   bool
	SetIMUCalibrationAck bool
	SetMagCalibrationAck bool
	MockAck              bool
	CancelAck            bool
)

// ErrorResponse is a device-reported error message.
type ErrorResponse struct {
	Message string
}

func (DeviceInfo) isResponse()           {}
func (DeviceConfig) isResponse()         {}
func (CalibrationValues) isResponse()    {}
func (SetDeviceConfigAck) isResponse()   {}
func (SetIMUCalibrationAck) isResponse() {}
func (SetMagCalibrationAck) isResponse() {}
func (MockAck) isResponse()              {}
func (CancelAck) isResponse()            {}
func (ErrorResponse) isResponse()        {}

// decodeResponse parses a response frame body for a recognized response id.
// Length is validated exactly; enum fields outside their defined range make
// the payload malformed.
func decodeResponse(id byte, body []byte) (Response, error) {
	switch id {
	case IDDeviceInfoResponse:
		if len(body) != deviceInfoBodyLen {
			return nil, fmt.Errorf("device info body length %d, want %d", len(body), deviceInfoBodyLen)
		}
		return DeviceInfo{
			ID:              binary.LittleEndian.Uint64(body[:deviceIDLen]),
			FirmwareVersion: trimPadded(body[deviceIDLen:]),
		}, nil

	case IDDeviceConfigResponse:
		if len(body) != deviceConfigBodyLen {
			return nil, fmt.Errorf("device config body length %d, want %d", len(body), deviceConfigBodyLen)
		}
		proto := Protocol(body[deviceNameLen+frequencyLen])
		if !proto.valid() {
			return nil, fmt.Errorf("device config protocol %d out of range", uint8(proto))
		}
		return DeviceConfig{
			Name:        trimPadded(body[:deviceNameLen]),
			FrequencyHz: binary.LittleEndian.Uint16(body[deviceNameLen:]),
			Protocol:    proto,
		}, nil

	case IDCalibrationResponse:
		if len(body) != calibrationBodyLen {
			return nil, fmt.Errorf("calibration body length %d, want %d", len(body), calibrationBodyLen)
		}
		var c CalibrationValues
		off := 0
		readVec(body, &off, c.IMUAccelOffsets[:])
		readVec(body, &off, c.IMUAccelScale[:])
		readVec(body, &off, c.IMUGyroOffsets[:])
		readVec(body, &off, c.IMUGyroScale[:])
		readVec(body, &off, c.MagOffsets[:])
		readVec(body, &off, c.MagScale[:])
		return c, nil

	case IDSetDeviceConfigAck:
		ok, err := decodeAck(body)
		return SetDeviceConfigAck(ok), err
	case IDSetIMUCalibrationAck:
		ok, err := decodeAck(body)
		return SetIMUCalibrationAck(ok), err
	case IDSetMagCalibrationAck:
		ok, err := decodeAck(body)
		return SetMagCalibrationAck(ok), err
	case IDMockAck:
		ok, err := decodeAck(body)
		return MockAck(ok), err
	case IDCancelAck:
		ok, err := decodeAck(body)
		return CancelAck(ok), err

	case IDErrorResponse:
		if len(body) == 0 || len(body) > errorBodyMaxLen {
			return nil, fmt.Errorf("error body length %d out of range", len(body))
		}
		return ErrorResponse{Message: string(body)}, nil
	}
	return nil, fmt.Errorf("%w: 0x%02x", errUnknownResponseID, id)
}

// errUnknownResponseID marks a response-range identifier missing from the
// firmware table; the parser counts it as an unknown id, not a bad payload.
var errUnknownResponseID = errors.New("unrecognized response id")

func decodeAck(body []byte) (bool, error) {
	if len(body) != ackBodyLen {
		return false, fmt.Errorf("ack body length %d, want %d", len(body), ackBodyLen)
	}
	return body[0] == 1, nil
}

func readVec(body []byte, off *int, dst []float32) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[*off:]))
		*off += 4
	}
}

// trimPadded interprets a fixed-width NUL-padded string field.
func trimPadded(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
