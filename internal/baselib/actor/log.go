package actor

import (
	"context"
	"fmt"
	"strings"

	"github.com/btcsuite/btclog/v2"
)

// Logger is the context-aware, structured logging interface used throughout
// the actor runtime. It mirrors the lnd convention of pairing a message with
// trailing key/value pairs, plus an explicit error argument for the Warn and
// Error levels since those almost always report a failure.
type Logger interface {
	TraceS(ctx context.Context, msg string, keyvals ...any)
	DebugS(ctx context.Context, msg string, keyvals ...any)
	InfoS(ctx context.Context, msg string, keyvals ...any)
	WarnS(ctx context.Context, msg string, err error, keyvals ...any)
	ErrorS(ctx context.Context, msg string, err error, keyvals ...any)
}

// log is the package-level subsystem logger. It defaults to a disabled
// logger so the package stays silent until a caller wires in a real backend
// via UseLogger, exactly as cmd/substrated wires actor.UseLogger at
// start-up.
var log Logger = disabledLogger{}

// UseLogger sets the package-wide logger used by the actor runtime. Callers
// (typically the daemon's main package) should call this once during
// start-up before spawning any actors.
func UseLogger(logger btclog.Logger) {
	log = &subsystemLogger{backend: logger}
}

// disabledLogger discards everything; it is the default before UseLogger is
// called so unit tests that never configure logging stay quiet.
type disabledLogger struct{}

func (disabledLogger) TraceS(context.Context, string, ...any)             {}
func (disabledLogger) DebugS(context.Context, string, ...any)             {}
func (disabledLogger) InfoS(context.Context, string, ...any)              {}
func (disabledLogger) WarnS(context.Context, string, error, ...any)       {}
func (disabledLogger) ErrorS(context.Context, string, error, ...any)      {}

// subsystemLogger adapts a plain btclog.Logger (one formatted string per
// call) to the Logger interface by flattening the message and key/value
// pairs into a single logfmt-ish line. The context is accepted for call-site
// symmetry with future trace-propagation but is not yet consulted.
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
