package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Command encoders. Each returns a complete wire frame ready to write to the
// device. Preconditions are enforced before any bytes are produced; a
// violation returns an error wrapping ErrInvalidArgument.

// EncodeGetDeviceInfo builds the device info request.
func EncodeGetDeviceInfo() []byte { return BuildFrame(IDGetDeviceInfo, nil) }

// EncodeGetDeviceConfig builds the device config request.
func EncodeGetDeviceConfig() []byte { return BuildFrame(IDGetDeviceConfig, nil) }

// EncodeGetCalibration builds the stored-calibration request.
func EncodeGetCalibration() []byte { return BuildFrame(IDGetCalibration, nil) }

// EncodeMock builds the enter-mock-mode command.
func EncodeMock() []byte { return BuildFrame(IDMock, nil) }

// EncodeCancel builds the cancel command.
func EncodeCancel() []byte { return BuildFrame(IDCancel, nil) }

// EncodeReboot builds the reboot command.
func EncodeReboot() []byte { return BuildFrame(IDReboot, nil) }

// EncodeSetDeviceConfig builds the set-config command. The name must fit in
// 32 UTF-8 bytes and the sampling frequency must be 1-1000 Hz.
func EncodeSetDeviceConfig(name string, frequencyHz uint16, proto Protocol) ([]byte, error) {
	if len(name) > deviceNameLen {
		return nil, fmt.Errorf("%w: device name %d bytes, max %d", ErrInvalidArgument, len(name), deviceNameLen)
	}
	if frequencyHz < 1 || frequencyHz > 1000 {
		return nil, fmt.Errorf("%w: frequency %d Hz outside [1,1000]", ErrInvalidArgument, frequencyHz)
	}
	if !proto.valid() {
		return nil, fmt.Errorf("%w: protocol %d", ErrInvalidArgument, uint8(proto))
	}

	body := make([]byte, 0, deviceConfigBodyLen)
	var padded [deviceNameLen]byte
	copy(padded[:], name)
	body = append(body, padded[:]...)
	body = binary.LittleEndian.AppendUint16(body, frequencyHz)
	body = append(body, byte(proto))
	return BuildFrame(IDSetDeviceConfig, body), nil
}

// EncodeSetIMUCalibration builds the IMU calibration upload. Scale matrices
// are row-major.
func EncodeSetIMUCalibration(accelOffsets [3]float32, accelScale [9]float32, gyroOffsets [3]float32, gyroScale [9]float32) ([]byte, error) {
	for _, vs := range [][]float32{accelOffsets[:], accelScale[:], gyroOffsets[:], gyroScale[:]} {
		if err := checkFinite(vs); err != nil {
			return nil, err
		}
	}
	body := make([]byte, 0, imuCalibrationBodyLen)
	body = appendVec(body, accelOffsets[:])
	body = appendVec(body, accelScale[:])
	body = appendVec(body, gyroOffsets[:])
	body = appendVec(body, gyroScale[:])
	return BuildFrame(IDSetIMUCalibration, body), nil
}

// EncodeSetMagCalibration builds the magnetometer calibration upload: hard
// iron offsets then the row-major soft iron matrix, both in µT scale.
func EncodeSetMagCalibration(offsets [3]float32, scale [9]float32) ([]byte, error) {
	if err := checkFinite(offsets[:]); err != nil {
		return nil, err
	}
	if err := checkFinite(scale[:]); err != nil {
		return nil, err
	}
	body := make([]byte, 0, magCalibrationBodyLen)
	body = appendVec(body, offsets[:])
	body = appendVec(body, scale[:])
	return BuildFrame(IDSetMagCalibration, body), nil
}

func checkFinite(vs []float32) error {
	for _, v := range vs {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: calibration value %v", ErrInvalidArgument, v)
		}
	}
	return nil
}

func appendVec(body []byte, vs []float32) []byte {
	for _, v := range vs {
		body = binary.LittleEndian.AppendUint32(body, math.Float32bits(v))
	}
	return body
}
