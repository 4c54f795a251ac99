package terminal

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/claude-relay/internal/config"
	"github.com/ashureev/claude-relay/internal/domain"
	"github.com/ashureev/claude-relay/internal/executor"
	"github.com/ashureev/claude-relay/internal/logging"
)

// Poller implements the long-poll change detection loop.
type Poller struct {
	source   SnapshotSource
	cache    *LastSeen
	maxWait  time.Duration
	interval time.Duration
	log      *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPoller creates a poller over source. cache may be nil.
func NewPoller(source SnapshotSource, cache *LastSeen, cfg config.PollConfig) *Poller {
	return &Poller{
		source:   source,
		cache:    cache,
		maxWait:  cfg.MaxWait,
		interval: cfg.CheckInterval,
		log:      logging.ForComponent(logging.CompPoll),
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Poll fetches until the snapshot fingerprint differs from lastKnown or the
// wait budget runs out. An empty lastKnown always reports a change. A fetch
// failure ends the poll immediately with Changed false and the error; it is
// not retried.
func (p *Poller) Poll(ctx context.Context, lastKnown domain.Fingerprint) (domain.PollResult, error) {
	deadline := p.now().Add(p.maxWait)
	unchanged := domain.PollResult{Fingerprint: lastKnown}

	for {
		snapshot, err := p.source.Fetch(ctx)
		if err != nil {
			return domain.PollResult{}, err
		}

		fp := Fingerprint(string(snapshot))
		if lastKnown == "" || fp != lastKnown {
			if p.cache != nil {
				p.cache.Record(snapshot, fp)
			}
			p.log.Debug("Output changed", "hash", fp)
			return domain.PollResult{Changed: true, Fingerprint: fp, Snapshot: snapshot}, nil
		}

		if !p.now().Before(deadline) {
			p.log.Debug("Poll timed out without change", "hash", lastKnown)
			return unchanged, nil
		}

		if err := p.sleep(ctx, p.interval); err != nil {
			return domain.PollResult{}, executor.Failed(err)
		}
		if !p.now().Before(deadline) {
			p.log.Debug("Poll timed out without change", "hash", lastKnown)
			return unchanged, nil
		}
	}
}

// Interval is the configured re-check interval.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
