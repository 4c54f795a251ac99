package health

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/claude-relay/internal/executor"
	"github.com/ashureev/claude-relay/internal/logging"
)

const probeCommand = "true"

// StatusSetter receives probe outcomes.
type StatusSetter interface {
	SetServing(serving bool)
}

// Prober periodically runs a no-op command through the executor and reports
// whether the remote host answered.
type Prober struct {
	exec     executor.Executor
	status   StatusSetter
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger

	lastOK *bool
}

// NewProber creates a prober. Each probe is bounded by timeout.
func NewProber(exec executor.Executor, status StatusSetter, interval, timeout time.Duration) *Prober {
	return &Prober{
		exec:     exec,
		status:   status,
		interval: interval,
		timeout:  timeout,
		log:      logging.ForComponent(logging.CompHealth),
	}
}

// Start probes once immediately, then every interval until ctx is done.
func (p *Prober) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	go func() {
		defer ticker.Stop()
		p.log.Info("Health prober started", "interval", p.interval)

		p.Check(ctx)
		for {
			select {
			case <-ticker.C:
				p.Check(ctx)
			case <-ctx.Done():
				p.log.Info("Health prober shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// Check runs one probe and publishes the result. It reports whether the
// executor answered.
func (p *Prober) Check(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err := p.exec.Run(probeCtx, probeCommand)
	ok := err == nil
	if ctx.Err() != nil {
		return ok
	}
	p.status.SetServing(ok)

	if p.lastOK == nil || *p.lastOK != ok {
		if ok {
			p.log.Info("Executor reachable")
		} else {
			p.log.Warn("Executor unreachable", "error", executor.Message(err))
		}
	}
	p.lastOK = &ok
	return ok
}
