// Package protocol implements the FIRM wire protocol: byte-level framing
// with CRC validation and resynchronization, decoding of telemetry packets
// and command responses, and encoding of outbound commands.
//
// The protocol is a stream of self-delimited frames:
//
//	sync(2) | id(1) | len(2, LE) | body(len) | crc16(2, LE)
//
// where the CRC covers id, length, and body. The identifier space is split
// into three disjoint ranges: data packets (unsolicited telemetry), command
// responses, and host commands. See ids.go for the numeric table.
//
// Parser is the streaming entry point: feed it raw serial bytes and drain
// decoded telemetry packets and responses from its two queues. Corrupted
// input never stops the stream; it is counted and skipped.
package protocol
