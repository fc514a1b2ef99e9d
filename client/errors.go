package client

import "errors"

var (
	// ErrAlreadyStarted is returned by Start on a client whose reader is
	// already live.
	ErrAlreadyStarted = errors.New("client: already started")

	// ErrNotRunning is returned by operations that need a live reader.
	ErrNotRunning = errors.New("client: not running")

	// ErrMockStreamRunning is returned when a mock log stream is started
	// while one is already active.
	ErrMockStreamRunning = errors.New("client: mock log stream already running")

	// ErrMockRejected is returned when the device refuses to enter mock
	// mode.
	ErrMockRejected = errors.New("client: device rejected mock mode")
)
