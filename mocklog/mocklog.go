// Package mocklog reads and writes FIRM capture files and replays them into
// a live client as a synthetic device stream.
//
// Capture format: a fixed 16-byte header (magic, version, sample rate hint)
// followed by records of `delay(f32 LE seconds) | frame`, where frame uses
// the normal wire framing. The delay is the inter-arrival time relative to
// the prior record; the final record carries the tail delay.
package mocklog

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/protocol"
)

// ErrBadHeader reports a capture whose header magic or version is wrong.
var ErrBadHeader = errors.New("mocklog: bad capture header")

const (
	headerSize    = 16
	formatVersion = 1
)

var magic = [4]byte{'F', 'R', 'M', '1'}

// Header is the decoded capture header.
type Header struct {
	SampleRateHz uint16
}

func (h Header) encode() []byte {
	out := make([]byte, headerSize)
	copy(out, magic[:])
	binary.LittleEndian.PutUint16(out[4:], formatVersion)
	binary.LittleEndian.PutUint16(out[6:], h.SampleRateHz)
	return out
}

// Record is one replayable frame and its delay since the previous record.
type Record struct {
	Delay time.Duration
	Frame []byte
}

// Reader decodes a capture stream record by record.
type Reader struct {
	r      *bufio.Reader
	header Header
}

// NewReader validates the capture header and positions the reader at the
// first record.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	var hdr [headerSize]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if [4]byte(hdr[:4]) != magic {
		return nil, fmt.Errorf("%w: magic %x", ErrBadHeader, hdr[:4])
	}
	if v := binary.LittleEndian.Uint16(hdr[4:6]); v != formatVersion {
		return nil, fmt.Errorf("%w: version %d", ErrBadHeader, v)
	}

	return &Reader{
		r:      br,
		header: Header{SampleRateHz: binary.LittleEndian.Uint16(hdr[6:8])},
	}, nil
}

// Header returns the decoded capture header.
func (r *Reader) Header() Header { return r.header }

// Next returns the next record, or io.EOF at a clean end of capture.
// Captures are trusted files: a corrupt or truncated record is an error,
// not a resync.
func (r *Reader) Next() (Record, error) {
	var delayBuf [4]byte
	if _, err := io.ReadFull(r.r, delayBuf[:]); err != nil {
		if err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("mocklog: truncated record delay: %w", err)
	}
	delaySec := math.Float32frombits(binary.LittleEndian.Uint32(delayBuf[:]))
	if isBadDelay(delaySec) {
		return Record{}, fmt.Errorf("mocklog: invalid record delay %v", delaySec)
	}

	// Frame header: sync(2) + id(1) + len(2).
	var fh [5]byte
	if _, err := io.ReadFull(r.r, fh[:]); err != nil {
		return Record{}, fmt.Errorf("mocklog: truncated frame header: %w", err)
	}
	bodyLen := int(binary.LittleEndian.Uint16(fh[3:5]))
	if bodyLen > protocol.MaxBodyLen {
		return Record{}, fmt.Errorf("mocklog: frame body length %d exceeds %d", bodyLen, protocol.MaxBodyLen)
	}

	frame := make([]byte, len(fh)+bodyLen+2)
	copy(frame, fh[:])
	if _, err := io.ReadFull(r.r, frame[len(fh):]); err != nil {
		return Record{}, fmt.Errorf("mocklog: truncated frame: %w", err)
	}

	// Validate with the stream framer so replayed bytes are known good.
	f := protocol.NewFramer(nil)
	f.Feed(frame)
	if _, _, ok := f.Next(); !ok {
		return Record{}, fmt.Errorf("mocklog: corrupt frame in capture")
	}

	return Record{
		Delay: time.Duration(float64(delaySec) * float64(time.Second)),
		Frame: frame,
	}, nil
}

// ReadAll drains the remaining records.
func (r *Reader) ReadAll() ([]Record, error) {
	recs := make([]Record, 0, 1024)
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return recs, nil
		}
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
}

// Open reads a whole capture file.
func Open(path string) (Header, []Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, nil, err
	}
	defer f.Close()

	r, err := NewReader(f)
	if err != nil {
		return Header{}, nil, err
	}
	recs, err := r.ReadAll()
	if err != nil {
		return Header{}, nil, err
	}
	return r.Header(), recs, nil
}

func isBadDelay(d float32) bool {
	f := float64(d)
	return math.IsNaN(f) || math.IsInf(f, 0) || f < 0
}

// Writer produces a capture file from timestamped frames.
type Writer struct {
	f      *os.File
	w      *bufio.Writer
	last   time.Time
	closed bool
}

// CreateWriter creates a capture file and writes its header.
func CreateWriter(path string, hdr Header) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriterSize(f, 64*1024)
	if _, err := bw.Write(hdr.encode()); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, w: bw}, nil
}

// WriteFrame appends one frame; the record delay is derived from the gap
// since the previous WriteFrame (zero for the first).
func (w *Writer) WriteFrame(now time.Time, frame []byte) error {
	if w.closed {
		return errors.New("mocklog: writer is closed")
	}
	if len(frame) == 0 {
		return errors.New("mocklog: frame is empty")
	}

	var delay float32
	if !w.last.IsZero() {
		if d := now.Sub(w.last); d > 0 {
			delay = float32(d.Seconds())
		}
	}
	w.last = now

	var delayBuf [4]byte
	binary.LittleEndian.PutUint32(delayBuf[:], math.Float32bits(delay))
	if _, err := w.w.Write(delayBuf[:]); err != nil {
		return err
	}
	_, err := w.w.Write(frame)
	return err
}

// Close flushes and closes the underlying file. Safe to call twice.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.w.Flush(); err != nil {
		_ = w.f.Close()
		return err
	}
	return w.f.Close()
}
