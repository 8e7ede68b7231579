package logging

import (
	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
)

// RollbarConfig configures error reporting.
type RollbarConfig struct {
	Token       string
	Environment string
	ServerHost  string
	CodeVersion string
}

// Rollbar forwards warnings and errors to Rollbar and echoes every entry to
// the wrapped logger.
type Rollbar struct {
	next Logger
}

var _ Logger = (*Rollbar)(nil)

// NewRollbar configures the rollbar client and wraps next.
func NewRollbar(next Logger, conf RollbarConfig) *Rollbar {
	rollbar.SetToken(conf.Token)
	rollbar.SetEnvironment(conf.Environment)
	rollbar.SetServerHost(conf.ServerHost)
	rollbar.SetCodeVersion(conf.CodeVersion)
	rollbar.SetStackTracer(errors.StackTracer)
	return &Rollbar{next: next}
}

// Flush waits for queued reports to be sent.
func (l *Rollbar) Flush() {
	rollbar.Wait()
}

func (l *Rollbar) Debug(msg string, keyvals ...any) { l.next.Debug(msg, keyvals...) }
func (l *Rollbar) Info(msg string, keyvals ...any)  { l.next.Info(msg, keyvals...) }

func (l *Rollbar) Warn(msg string, keyvals ...any) {
	rollbar.Warning(prepare(msg, keyvals)...)
	l.next.Warn(msg, keyvals...)
}

func (l *Rollbar) Error(msg string, keyvals ...any) {
	rollbar.Error(prepare(msg, keyvals)...)
	l.next.Error(msg, keyvals...)
}

// expected fmt: msg, then error (if any value is one) and the remaining
// fields as custom data
func prepare(msg string, keyvals []any) []any {
	args := []any{msg}
	fields := Fields(keyvals)
	for k, v := range fields {
		if err, ok := v.(error); ok {
			args = append(args, err)
			fields[k] = err.Error()
			break
		}
	}
	if len(fields) > 0 {
		args = append(args, map[string]interface{}(fields))
	}
	return args
}
