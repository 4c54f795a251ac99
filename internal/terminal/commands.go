package terminal

import (
	"strconv"
	"strings"
)

const (
	paneWidth    = 200
	paneHeight   = 50
	scrollback   = 100
	settleDelay  = "0.5"
	resumeSuffix = " --resume"
)

// tmuxKeys maps the client key vocabulary to tmux key names.
var tmuxKeys = map[string]string{
	"up":        "Up",
	"down":      "Down",
	"left":      "Left",
	"right":     "Right",
	"enter":     "Enter",
	"escape":    "Escape",
	"esc":       "Escape",
	"tab":       "Tab",
	"space":     "Space",
	"backspace": "BSpace",
	"delete":    "DC",
	"ctrl-c":    "C-c",
	"ctrl-d":    "C-d",
	"ctrl-z":    "C-z",
	"home":      "Home",
	"end":       "End",
	"pageup":    "PPage",
	"pagedown":  "NPage",
}

// TmuxKey resolves a client key name. Unknown names pass through unchanged.
func TmuxKey(name string) string {
	if key, ok := tmuxKeys[strings.ToLower(name)]; ok {
		return key
	}
	return name
}

// quote wraps s in single quotes, escaping embedded quotes with a backslash.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// arg leaves shell-safe words bare and quotes everything else.
func arg(s string) string {
	if s == "" {
		return "''"
	}
	for _, r := range s {
		if !isSafeRune(r) {
			return quote(s)
		}
	}
	return s
}

func isSafeRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune("-_.:/@%+=,", r)
}

func captureCommand(session string) string {
	return "tmux capture-pane -t " + arg(session) + " -p -S -" + strconv.Itoa(scrollback)
}

func statusCommand(session string) string {
	return "tmux has-session -t " + arg(session) + " 2>/dev/null && echo ACTIVE || echo NONE"
}

func killCommand(session string) string {
	return "tmux kill-session -t " + arg(session) + " 2>/dev/null || true"
}

func newSessionCommand(session, launch string) string {
	s := arg(session)
	return "tmux new-session -d -s " + s + " -x " + strconv.Itoa(paneWidth) + " -y " + strconv.Itoa(paneHeight) +
		" && sleep " + settleDelay +
		" && tmux send-keys -t " + s + " " + quote(launch) + " Enter"
}

func sendTextCommand(session, text string) string {
	return "tmux send-keys -t " + arg(session) + " " + quote(text) + " Enter"
}

func sendKeyCommand(session, key string) string {
	return "tmux send-keys -t " + arg(session) + " " + arg(key)
}
