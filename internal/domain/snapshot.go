// Package domain contains core domain types for the relay.
package domain

// Snapshot is the captured visible buffer of the remote terminal session at
// one point in time. It has no identity beyond its content.
type Snapshot string

// Fingerprint is a short deterministic digest of a Snapshot, used only for
// change comparison.
type Fingerprint string

// PollResult is the outcome of one change-detection poll.
type PollResult struct {
	Changed     bool
	Fingerprint Fingerprint
	// Snapshot is empty when Changed is false.
	Snapshot Snapshot
}
