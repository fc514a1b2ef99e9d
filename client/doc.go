// Package client is the threaded FIRM client runtime. It owns the serial
// byte stream, runs a dedicated reader goroutine that feeds the protocol
// parser, maintains a bounded telemetry queue and a response router, and
// exposes request/reply operations with per-request timeouts.
//
// A client bound to a real serial port comes from New; NewFromStream accepts
// any io.ReadWriteCloser (a Web Serial shim, a file, a test double); NewMock
// pairs a client with an in-process mock device for tests without hardware.
package client
