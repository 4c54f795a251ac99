// Package logging configures the process-wide slog logger.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ashureev/claude-relay/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Component names used in the "component" attribute.
const (
	CompHTTP     = "http"
	CompPoll     = "poll"
	CompSession  = "session"
	CompExecutor = "executor"
	CompWatch    = "watch"
	CompHealth   = "health"
)

// Setup builds a JSON logger writing to stdout and, when cfg.File is set, to a
// rotating file. It installs the logger as the slog default. The returned
// closer flushes the file sink.
func Setup(cfg config.LogConfig) (*slog.Logger, io.Closer) {
	return setup(cfg, os.Stdout)
}

func setup(cfg config.LogConfig, stdout io.Writer) (*slog.Logger, io.Closer) {
	var out io.Writer = stdout
	var closer io.Closer = nopCloser{}

	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
		out = io.MultiWriter(stdout, lj)
		closer = lj
	}

	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	}))
	slog.SetDefault(logger)
	return logger, closer
}

// ParseLevel maps "debug", "warn" and "error" to slog levels; anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ForComponent returns a logger tagged with the component name. The default
// handler is resolved on every record, so package-level loggers created
// before Setup still reach the configured sink.
func ForComponent(name string) *slog.Logger {
	return slog.New(&dynamicHandler{ops: []handlerOp{{attrs: []slog.Attr{slog.String("component", name)}}}})
}

// handlerOp is one WithAttrs or WithGroup call; exactly one field is set.
type handlerOp struct {
	attrs []slog.Attr
	group string
}

type dynamicHandler struct {
	ops []handlerOp
}

// current replays the recorded calls, in order, on the default handler.
func (h *dynamicHandler) current() slog.Handler {
	handler := slog.Default().Handler()
	for _, op := range h.ops {
		if op.group != "" {
			handler = handler.WithGroup(op.group)
		} else {
			handler = handler.WithAttrs(op.attrs)
		}
	}
	return handler
}

func (h *dynamicHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return slog.Default().Handler().Enabled(ctx, level)
}

func (h *dynamicHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.current().Handle(ctx, r)
}

func (h *dynamicHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return h.with(handlerOp{attrs: attrs})
}

func (h *dynamicHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.with(handlerOp{group: name})
}

func (h *dynamicHandler) with(op handlerOp) *dynamicHandler {
	ops := make([]handlerOp, 0, len(h.ops)+1)
	ops = append(ops, h.ops...)
	return &dynamicHandler{ops: append(ops, op)}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
