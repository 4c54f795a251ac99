package domain

// SessionState classifies the singleton tmux session.
type SessionState string

const (
	SessionActive SessionState = "ACTIVE"
	SessionNone   SessionState = "NONE"
	SessionError  SessionState = "ERROR"
)

// DefaultSessionName is the well-known tmux session the relay manages.
const DefaultSessionName = "claude-ui"
