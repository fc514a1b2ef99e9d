package protocol

import "testing"

// Reference vectors for CRC-16/CCITT-FALSE. These must match the device
// firmware byte-for-byte.
func TestCRC16_ReferenceVectors(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want uint16
	}{
		{"check-string", []byte("123456789"), 0x29B1},
		{"empty", nil, 0xFFFF},
		{"single-zero", []byte{0x00}, 0xE1F0},
		{"all-ones", []byte{0xFF, 0xFF, 0xFF, 0xFF}, 0x1D0F},
		{"ascii", []byte("FIRM"), 0xBF4D},
		{"telemetry-header", []byte{0x01, 0x70, 0x00}, 0xF3F5},
		{"ramp", []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}, 0x3B37},
	}
	for _, tc := range cases {
		if got := crc16(tc.in); got != tc.want {
			t.Errorf("crc16(%s) = 0x%04X, want 0x%04X", tc.name, got, tc.want)
		}
	}
}

func TestCRC16_Deterministic(t *testing.T) {
	// The same input, reassembled from two slices into a fresh buffer, must
	// give the same CRC as the original buffer.
	data := make([]byte, 257)
	for i := range data {
		data[i] = byte(i * 7)
	}
	whole := crc16(data)
	again := crc16(append(append([]byte(nil), data[:100]...), data[100:]...))
	if whole != again {
		t.Fatalf("crc16 not deterministic: 0x%04X vs 0x%04X", whole, again)
	}
}
