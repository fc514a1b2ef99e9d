package protocol

import "encoding/binary"

const (
	sync0 = 0x5A
	sync1 = 0xA5

	headerLen = 2 + 1 + 2 // sync + id + length
	crcLen    = 2

	// MaxBodyLen bounds the declared body length of a frame. A larger
	// declared length is treated as a framing fault and resynced past.
	MaxBodyLen = 512

	// feedSoftCap is the input buffer size beyond which Feed reports
	// buffer pressure. Bytes are still accepted.
	feedSoftCap = 64 * 1024
)

// DiagnosticFunc observes non-fatal stream faults. It must not block.
type DiagnosticFunc func(kind FaultKind)

// Framer is a single-pass streaming frame extractor. Feed it arbitrary byte
// chunks and pull validated frames with Next. Corrupt input costs exactly one
// discarded byte per failed candidate, so a genuine frame that shared a
// prefix with garbage is still recovered.
//
// Framer is not safe for concurrent use; the reader goroutine owns it.
type Framer struct {
	buf []byte
	pos int

	// garbageRun is set while non-sync bytes are being discarded; the run
	// is charged as one framing fault when the stream recovers.
	garbageRun bool

	counters Counters
	hook     DiagnosticFunc
}

// NewFramer returns an empty framer. hook may be nil.
func NewFramer(hook DiagnosticFunc) *Framer {
	return &Framer{hook: hook}
}

// Counters returns the cumulative fault counts.
func (f *Framer) Counters() Counters { return f.counters }

func (f *Framer) fault(kind FaultKind) {
	switch kind {
	case FaultFraming:
		f.counters.FramingFaults++
	case FaultUnknownID:
		f.counters.UnknownIDs++
	case FaultMalformedPayload:
		f.counters.MalformedPayloads++
	case FaultBufferPressure:
		f.counters.BufferPressure++
	}
	if f.hook != nil {
		f.hook(kind)
	}
}

// Feed appends bytes to the input buffer. It never fails; feeding past the
// soft cap reports buffer pressure through the diagnostic hook because losing
// telemetry is preferred to dropping the connection.
func (f *Framer) Feed(p []byte) {
	if len(f.buf)-f.pos+len(p) > feedSoftCap {
		f.fault(FaultBufferPressure)
	}
	f.buf = append(f.buf, p...)
}

// Next returns the next validated frame, or ok=false when more input is
// needed. The returned body aliases the internal buffer only until the next
// Feed or Next call; callers that retain it must copy.
func (f *Framer) Next() (id byte, body []byte, ok bool) {
	for {
		avail := len(f.buf) - f.pos
		if avail < headerLen {
			f.compact()
			return 0, nil, false
		}

		if f.buf[f.pos] != sync0 || f.buf[f.pos+1] != sync1 {
			// Not a sync prefix; discard one byte and keep hunting.
			f.pos++
			f.garbageRun = true
			continue
		}

		id = f.buf[f.pos+2]
		bodyLen := int(binary.LittleEndian.Uint16(f.buf[f.pos+3 : f.pos+5]))
		if bodyLen > MaxBodyLen {
			f.fault(FaultFraming)
			f.pos++
			continue
		}

		total := headerLen + bodyLen + crcLen
		if avail < total {
			f.compact()
			return 0, nil, false
		}

		crcEnd := f.pos + headerLen + bodyLen
		want := binary.LittleEndian.Uint16(f.buf[crcEnd : crcEnd+crcLen])
		got := crc16(f.buf[f.pos+2 : crcEnd])
		if got != want {
			// Drop only the first byte of the candidate so a real sync
			// hiding inside it is still found.
			f.fault(FaultFraming)
			f.pos++
			continue
		}

		if f.garbageRun {
			f.garbageRun = false
			f.fault(FaultFraming)
		}
		body = f.buf[f.pos+headerLen : crcEnd]
		f.pos += total
		return id, body, true
	}
}

// compact drops consumed bytes once the whole buffer is consumed or at least
// 4 KiB of it has been.
func (f *Framer) compact() {
	if f.pos == 0 {
		return
	}
	if f.pos == len(f.buf) {
		f.buf = f.buf[:0]
		f.pos = 0
		return
	}
	if f.pos >= 4096 {
		f.buf = append(f.buf[:0], f.buf[f.pos:]...)
		f.pos = 0
	}
}

// BuildFrame wraps a body in the wire framing: sync, id, length, body, CRC.
func BuildFrame(id byte, body []byte) []byte {
	out := make([]byte, 0, headerLen+len(body)+crcLen)
	out = append(out, sync0, sync1, id)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(body)))
	out = append(out, body...)
	crc := crc16(out[2:])
	out = binary.LittleEndian.AppendUint16(out, crc)
	return out
}
