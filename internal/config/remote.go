package config

import "sync/atomic"

// RemoteCell is the single owned mutable cell holding the current remote
// connection settings. Readers always get a consistent copy.
type RemoteCell struct {
	v atomic.Pointer[Remote]
}

// NewRemoteCell creates a cell holding r.
func NewRemoteCell(r Remote) *RemoteCell {
	c := &RemoteCell{}
	c.Store(r)
	return c
}

// Load returns a copy of the current settings.
func (c *RemoteCell) Load() Remote {
	return *c.v.Load()
}

// Store replaces the current settings.
func (c *RemoteCell) Store(r Remote) {
	c.v.Store(&r)
}
