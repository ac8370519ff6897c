// Package exitcode centralizes the terminal outcomes both binaries can
// report, pairing each with the exact stderr message and process exit
// status the specification mandates (the original's errors.c keeps the
// same four messages behind a single exit_with_msg helper).
package exitcode

import "sync"

// Code is a terminal outcome for a server or client process.
type Code int

const (
	// Normal is a graceful exit with no error.
	Normal Code = 0
	// Usage is a command-line or authfile argument error.
	Usage Code = 1
	// Comms is a network setup or unexpected-disconnect error.
	Comms Code = 2
	// Kicked means a client was removed from the roster by another peer.
	Kicked Code = 3
	// FailedAuth means the shared password did not match.
	FailedAuth Code = 4
)

// ServerUsageMessage is printed to stderr on a server argument error.
const ServerUsageMessage = "Usage: server authfile [port]\n"

// ClientUsageMessage is printed to stderr on a client argument error.
const ClientUsageMessage = "Usage: client name authfile port\n"

// CommsMessage is printed to stderr on a communications failure.
const CommsMessage = "Communications error\n"

// KickedMessage is printed to stderr when the client was kicked.
const KickedMessage = "Kicked\n"

// FailedAuthMessage is printed to stderr on an authentication failure.
const FailedAuthMessage = "Authentication error\n"

// First wraps a *Code slot so that only the first assignment sticks — later
// terminal conditions (e.g. a comms error observed after a kick already
// closed the connection) must not overwrite the one already recorded. Safe
// for concurrent use: a client's inbound and outbound tasks may both race to
// set the final exit code.
type First struct {
	mu   sync.Mutex
	set  bool
	code Code
}

// Set records code if no code has been recorded yet. Returns true if this
// call was the one that set it.
func (f *First) Set(code Code) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.set {
		return false
	}
	f.set = true
	f.code = code
	return true
}

// Get returns the recorded code, defaulting to Normal if none was set.
func (f *First) Get() Code {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.set {
		return Normal
	}
	return f.code
}
