package protocol

import "errors"

// Parser is the streaming decode pipeline: a framer plus typed output queues.
// Feed it raw serial bytes; telemetry packets and responses accumulate in
// separate queues drained independently. Bad input is counted, never fatal.
//
// Parser is not safe for concurrent use.
type Parser struct {
	framer    *Framer
	packets   []TelemetryPacket
	responses []Response
}

// NewParser returns an empty parser. hook, if non-nil, observes stream
// faults (framing, unknown id, malformed payload, buffer pressure).
func NewParser(hook DiagnosticFunc) *Parser {
	return &Parser{framer: NewFramer(hook)}
}

// ParseBytes consumes a chunk of raw input and advances as far as possible.
func (p *Parser) ParseBytes(chunk []byte) {
	p.framer.Feed(chunk)
	for {
		id, body, ok := p.framer.Next()
		if !ok {
			return
		}
		switch KindOf(id) {
		case KindData:
			if id != IDTelemetry {
				p.framer.fault(FaultUnknownID)
				continue
			}
			pkt, err := decodeTelemetry(body)
			if err != nil {
				p.framer.fault(FaultMalformedPayload)
				continue
			}
			p.packets = append(p.packets, pkt)
		case KindResponse:
			resp, err := decodeResponse(id, body)
			if errors.Is(err, errUnknownResponseID) {
				p.framer.fault(FaultUnknownID)
				continue
			}
			if err != nil {
				p.framer.fault(FaultMalformedPayload)
				continue
			}
			p.responses = append(p.responses, resp)
		default:
			// Command identifiers are outbound-only; anything else is
			// outside the firmware table. Either way: count and drop.
			p.framer.fault(FaultUnknownID)
		}
	}
}

// NextPacket pops the oldest queued telemetry packet.
func (p *Parser) NextPacket() (TelemetryPacket, bool) {
	if len(p.packets) == 0 {
		return TelemetryPacket{}, false
	}
	pkt := p.packets[0]
	p.packets = p.packets[1:]
	if len(p.packets) == 0 {
		p.packets = nil
	}
	return pkt, true
}

// NextResponse pops the oldest queued response.
func (p *Parser) NextResponse() (Response, bool) {
	if len(p.responses) == 0 {
		return nil, false
	}
	r := p.responses[0]
	p.responses = p.responses[1:]
	if len(p.responses) == 0 {
		p.responses = nil
	}
	return r, true
}

// Counters returns cumulative fault counts.
func (p *Parser) Counters() Counters { return p.framer.Counters() }
