package mocklog

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/protocol"
)

func telemetryFrame(ts float32) []byte {
	p := protocol.NewTelemetryPacket()
	p.TimestampSeconds = ts
	return protocol.BuildTelemetryFrame(p)
}

func TestWriteRead_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.frm")

	w, err := CreateWriter(path, Header{SampleRateHz: 100})
	if err != nil {
		t.Fatalf("CreateWriter() error: %v", err)
	}
	base := time.Now()
	frames := [][]byte{telemetryFrame(0.00), telemetryFrame(0.01), telemetryFrame(0.02)}
	for i, fr := range frames {
		if err := w.WriteFrame(base.Add(time.Duration(i)*10*time.Millisecond), fr); err != nil {
			t.Fatalf("WriteFrame(%d) error: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}

	hdr, recs, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if hdr.SampleRateHz != 100 {
		t.Fatalf("SampleRateHz = %d, want 100", hdr.SampleRateHz)
	}
	if len(recs) != len(frames) {
		t.Fatalf("records = %d, want %d", len(recs), len(frames))
	}
	for i, rec := range recs {
		if !bytes.Equal(rec.Frame, frames[i]) {
			t.Fatalf("record %d frame mismatch", i)
		}
	}
	if recs[0].Delay != 0 {
		t.Fatalf("first record delay = %v, want 0", recs[0].Delay)
	}
	for i := 1; i < len(recs); i++ {
		d := recs[i].Delay
		if d < 5*time.Millisecond || d > 15*time.Millisecond {
			t.Fatalf("record %d delay = %v, want ~10ms", i, d)
		}
	}
}

func TestNewReader_BadHeader(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", []byte("FRM1")},
		{"wrong-magic", append([]byte("NOPE"), make([]byte, 12)...)},
		{"wrong-version", func() []byte {
			b := Header{}.encode()
			b[4] = 9
			return b
		}()},
	}
	for _, tc := range cases {
		_, err := NewReader(bytes.NewReader(tc.data))
		if !errors.Is(err, ErrBadHeader) {
			t.Errorf("%s: err = %v, want ErrBadHeader", tc.name, err)
		}
	}
}

func TestReader_TruncatedRecord(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(Header{SampleRateHz: 50}.encode())
	buf.Write([]byte{0, 0, 0, 0})              // delay
	buf.Write(telemetryFrame(1.0)[:20])        // cut mid-frame

	r, err := NewReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewReader() error: %v", err)
	}
	if _, err := r.Next(); err == nil || err == io.EOF {
		t.Fatalf("Next() on truncated record: err = %v, want decode error", err)
	}
}

func TestReader_CorruptFrameCRC(t *testing.T) {
	frame := telemetryFrame(1.0)
	frame[len(frame)-1] ^= 0xFF

	var buf bytes.Buffer
	buf.Write(Header{}.encode())
	buf.Write([]byte{0, 0, 0, 0})
	buf.Write(frame)

	r, err := NewReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewReader() error: %v", err)
	}
	if _, err := r.Next(); err == nil {
		t.Fatalf("Next() accepted a corrupt frame")
	}
}

func TestOpen_MissingFile(t *testing.T) {
	if _, _, err := Open(filepath.Join(t.TempDir(), "absent.frm")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Open(absent) err = %v, want not-exist", err)
	}
}
