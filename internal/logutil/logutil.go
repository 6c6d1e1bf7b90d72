// Package logutil provides the structured, context-aware logging adapter
// shared by every subsystem package that exposes its own UseLogger hook
// (cluster, pipeline, engine, discovery), mirroring actor.Logger without
// duplicating the btclog adapter in each package.
package logutil

import (
	"context"
	"fmt"
	"strings"

	"github.com/btcsuite/btclog/v2"
)

// Logger is the structured logging interface each subsystem's package-level
// "log" var satisfies.
type Logger interface {
	TraceS(ctx context.Context, msg string, keyvals ...any)
	DebugS(ctx context.Context, msg string, keyvals ...any)
	InfoS(ctx context.Context, msg string, keyvals ...any)
	WarnS(ctx context.Context, msg string, err error, keyvals ...any)
	ErrorS(ctx context.Context, msg string, err error, keyvals ...any)
}

// Disabled discards everything; the zero value every subsystem package
// defaults its "log" var to before UseLogger is called.
type Disabled struct{}

func (Disabled) TraceS(context.Context, string, ...any)        {}
func (Disabled) DebugS(context.Context, string, ...any)        {}
func (Disabled) InfoS(context.Context, string, ...any)         {}
func (Disabled) WarnS(context.Context, string, error, ...any)  {}
func (Disabled) ErrorS(context.Context, string, error, ...any) {}

// New adapts a plain btclog.Logger (one formatted string per call) to
// Logger by flattening key/value pairs into a single logfmt-ish line.
func New(backend btclog.Logger) Logger {
	return &subsystemLogger{backend: backend}
}

type subsystemLogger struct {
	backend btclog.Logger
}

func fieldString(keyvals ...any) string {
	if len(keyvals) == 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i+1 < len(keyvals); i += 2 {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%v=%v", keyvals[i], keyvals[i+1])
	}
	return b.String()
}

func (l *subsystemLogger) TraceS(_ context.Context, msg string, kv ...any) {
	l.backend.Tracef("%s %s", msg, fieldString(kv...))
}

func (l *subsystemLogger) DebugS(_ context.Context, msg string, kv ...any) {
	l.backend.Debugf("%s %s", msg, fieldString(kv...))
}

func (l *subsystemLogger) InfoS(_ context.Context, msg string, kv ...any) {
	l.backend.Infof("%s %s", msg, fieldString(kv...))
}

func (l *subsystemLogger) WarnS(
	_ context.Context, msg string, err error, kv ...any,
) {

	l.backend.Warnf("%s err=%v %s", msg, err, fieldString(kv...))
}

func (l *subsystemLogger) ErrorS(
	_ context.Context, msg string, err error, kv ...any,
) {

	l.backend.Errorf("%s err=%v %s", msg, err, fieldString(kv...))
}
