package terminal

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ashureev/claude-relay/internal/config"
	"github.com/ashureev/claude-relay/internal/domain"
	"github.com/ashureev/claude-relay/internal/executor"
	"github.com/ashureev/claude-relay/internal/logging"
)

// Controller manages the lifecycle of the singleton tmux session and injects
// input into it.
type Controller struct {
	exec   executor.Executor
	remote *config.RemoteCell
	log    *slog.Logger
}

// NewController creates a session controller. Session name and launch
// command are read from remote on every call.
func NewController(exec executor.Executor, remote *config.RemoteCell) *Controller {
	return &Controller{
		exec:   exec,
		remote: remote,
		log:    logging.ForComponent(logging.CompSession),
	}
}

// Start replaces any existing session with a fresh one running the assistant.
func (c *Controller) Start(ctx context.Context) error {
	return c.launch(ctx, false)
}

// Resume replaces any existing session with one resuming the previous
// conversation.
func (c *Controller) Resume(ctx context.Context) error {
	return c.launch(ctx, true)
}

func (c *Controller) launch(ctx context.Context, resume bool) error {
	r := c.remote.Load()

	// A session may not exist yet; kill failures never block creation.
	c.Kill(ctx)

	cmd := r.LaunchCommand
	if resume {
		cmd += resumeSuffix
	}
	if _, err := c.exec.Run(ctx, newSessionCommand(r.Session, cmd)); err != nil {
		c.log.Warn("Failed to start session", "session", r.Session, "resume", resume, "error", err)
		return executor.Failed(err)
	}
	c.log.Info("Session started", "session", r.Session, "resume", resume)
	return nil
}

// Kill terminates the session if present. Failures are logged only.
func (c *Controller) Kill(ctx context.Context) {
	session := c.remote.Load().Session
	if _, err := c.exec.Run(ctx, killCommand(session)); err != nil {
		c.log.Debug("Kill session failed", "session", session, "error", err)
	}
}

// Status reports whether the session exists. Output other than ACTIVE counts
// as NONE; an executor failure yields SessionError and the error.
func (c *Controller) Status(ctx context.Context) (domain.SessionState, error) {
	res, err := c.exec.Run(ctx, statusCommand(c.remote.Load().Session))
	if err != nil {
		return domain.SessionError, executor.Failed(err)
	}
	if strings.TrimSpace(res.Stdout) == string(domain.SessionActive) {
		return domain.SessionActive, nil
	}
	return domain.SessionNone, nil
}

// SendText types text into the session followed by Enter.
func (c *Controller) SendText(ctx context.Context, text string) error {
	if text == "" {
		return domain.ErrNoText
	}
	c.log.Debug("Sending text", "preview", preview(text, 50))
	_, err := c.exec.Run(ctx, sendTextCommand(c.remote.Load().Session, text))
	return executor.Failed(err)
}

// SendKey sends a single named key, mapped through the tmux key vocabulary.
func (c *Controller) SendKey(ctx context.Context, key string) error {
	if key == "" {
		return domain.ErrNoKey
	}
	c.log.Debug("Sending key", "key", key)
	_, err := c.exec.Run(ctx, sendKeyCommand(c.remote.Load().Session, TmuxKey(key)))
	return executor.Failed(err)
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
