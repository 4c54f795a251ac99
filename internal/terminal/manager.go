package terminal

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// WatcherManager tracks open output-watch WebSocket connections so they can
// be closed on shutdown.
type WatcherManager struct {
	mu     sync.RWMutex
	active map[string]*websocket.Conn
}

// NewWatcherManager creates an empty manager.
func NewWatcherManager() *WatcherManager {
	return &WatcherManager{
		active: make(map[string]*websocket.Conn),
	}
}

// Register adds conn and returns its watcher ID.
func (m *WatcherManager) Register(conn *websocket.Conn) string {
	id := uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[id] = conn
	slog.Debug("Output watcher registered", "watcher_id", id, "active", len(m.active))
	return id
}

// Unregister removes id if it still refers to conn.
func (m *WatcherManager) Unregister(id string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.active[id]; ok && current == conn {
		delete(m.active, id)
		slog.Debug("Output watcher unregistered", "watcher_id", id, "active", len(m.active))
	}
}

// Count returns the number of open watchers.
func (m *WatcherManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// CloseAll closes every watcher with StatusGoingAway.
func (m *WatcherManager) CloseAll() {
	m.mu.Lock()
	conns := m.active
	m.active = make(map[string]*websocket.Conn)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for id, conn := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
			slog.Info("Output watcher closed", "watcher_id", id)
		}()
	}
	wg.Wait()
}
