package hass

import "errors"

// Sentinel errors for Home Assistant operations.
var (
	// ErrNotConnected indicates no authenticated connection is available.
	ErrNotConnected = errors.New("hass: not connected")

	// ErrAuthFailed indicates Home Assistant rejected the access token.
	// Run stops retrying when it sees this error.
	ErrAuthFailed = errors.New("hass: authentication failed")

	// ErrDialFailed indicates the WebSocket connection could not be opened.
	ErrDialFailed = errors.New("hass: dial failed")

	// ErrProtocol indicates an unexpected message during the handshake.
	ErrProtocol = errors.New("hass: protocol error")

	// ErrCommandFailed indicates Home Assistant answered a command with
	// success=false. The wrapped message carries its error code and text.
	ErrCommandFailed = errors.New("hass: command failed")
)
