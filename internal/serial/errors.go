// Package serial implements the port session engine: opening a physical or
// mock serial device, fanning its received bytes out to any number of
// subscribers, and accepting writes from a bounded mailbox.
package serial

import "errors"

// Sentinel errors for the session and registry lifecycle. Handlers in
// internal/api translate these into the JSON error envelope.
var (
	// ErrDeviceOpen is returned by Open when the underlying device could not
	// be opened (missing, busy, or permission denied).
	ErrDeviceOpen = errors.New("serial: failed to open device")

	// ErrLogOpen is returned by Open when logging is enabled but the log
	// file could not be created or opened for append.
	ErrLogOpen = errors.New("serial: failed to open audit log")

	// ErrMailboxClosed is returned by Send once the writer task has exited.
	ErrMailboxClosed = errors.New("serial: write mailbox closed")

	// ErrMailboxFull is returned by Send when a caller-supplied deadline
	// elapses before the mailbox has room.
	ErrMailboxFull = errors.New("serial: write mailbox full")

	// ErrNotFound is returned by the registry when a name has no session.
	ErrNotFound = errors.New("serial: connection not found")

	// ErrDuplicateName is returned by the registry when add() is called
	// twice for the same name without an intervening remove().
	ErrDuplicateName = errors.New("serial: duplicate connection name")
)
