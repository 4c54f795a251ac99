package terminal

import (
	"sync"
	"time"

	"github.com/ashureev/claude-relay/internal/domain"
)

// LastSeen remembers the most recent snapshot any request observed. It is
// advisory: nothing reads it to decide a response, and concurrent writers
// may overwrite each other.
type LastSeen struct {
	mu          sync.Mutex
	snapshot    domain.Snapshot
	fingerprint domain.Fingerprint
	at          time.Time
}

// Record stores a freshly observed snapshot.
func (c *LastSeen) Record(snapshot domain.Snapshot, fp domain.Fingerprint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = snapshot
	c.fingerprint = fp
	c.at = time.Now()
}

// Get returns the last recorded snapshot and when it was seen. The zero time
// means nothing has been recorded.
func (c *LastSeen) Get() (domain.Snapshot, domain.Fingerprint, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot, c.fingerprint, c.at
}
