// Package terminal drives the remote tmux session: snapshot capture,
// change detection and session control.
package terminal

import (
	"context"
	"strconv"
	"sync"

	"github.com/ashureev/claude-relay/internal/config"
	"github.com/ashureev/claude-relay/internal/domain"
	"github.com/ashureev/claude-relay/internal/executor"
	"golang.org/x/sync/singleflight"
)

// SnapshotSource captures the current pane contents.
type SnapshotSource interface {
	Fetch(ctx context.Context) (domain.Snapshot, error)
}

// Fetcher captures the last scrollback lines of the configured session.
// Every Fetch is answered by a capture dispatched no earlier than the call.
// Calls arriving while a capture is in flight share one follow-up capture,
// issued once the current one finishes. Results are not kept between calls.
type Fetcher struct {
	exec   executor.Executor
	remote *config.RemoteCell
	group  singleflight.Group

	mu sync.Mutex
	// gen numbers the next capture to be dispatched; callers join it by key.
	gen      uint64
	inflight chan struct{}
}

// NewFetcher creates a fetcher reading the session name from remote.
func NewFetcher(exec executor.Executor, remote *config.RemoteCell) *Fetcher {
	return &Fetcher{exec: exec, remote: remote}
}

// Fetch returns the captured pane verbatim or an *executor.ExecutionError.
func (f *Fetcher) Fetch(ctx context.Context) (domain.Snapshot, error) {
	cmd := captureCommand(f.remote.Load().Session)

	f.mu.Lock()
	key := cmd + "#" + strconv.FormatUint(f.gen, 10)
	f.mu.Unlock()

	// The shared call must outlive any single waiter; the executor chain
	// carries its own timeout.
	callCtx := context.WithoutCancel(ctx)
	ch := f.group.DoChan(key, func() (any, error) {
		done := f.dispatch()
		defer close(done)

		res, err := f.exec.Run(callCtx, cmd)
		if err != nil {
			return nil, executor.Failed(err)
		}
		return domain.Snapshot(res.Stdout), nil
	})

	select {
	case <-ctx.Done():
		return "", executor.Failed(ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return "", r.Err
		}
		return r.Val.(domain.Snapshot), nil
	}
}

// dispatch waits for the capture in flight, then closes the current
// generation to new joiners. The caller closes the returned channel when its
// capture completes.
func (f *Fetcher) dispatch() chan struct{} {
	f.mu.Lock()
	prev := f.inflight
	f.mu.Unlock()
	if prev != nil {
		<-prev
	}

	done := make(chan struct{})
	f.mu.Lock()
	f.gen++
	f.inflight = done
	f.mu.Unlock()
	return done
}
