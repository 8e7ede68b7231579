package logging

import (
	"fmt"
	"io"
	"log"
	"strings"
)

// Logger is the leveled logger shared by the service. keyvals are
// alternating keys and values.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

// Std writes "LEVEL msg key=value ..." lines to a std logger.
type Std struct {
	std   *log.Logger
	debug bool
}

var _ Logger = (*Std)(nil)

// New returns a Std logger writing to w.
func New(w io.Writer, prefix string, debug bool) *Std {
	return &Std{std: log.New(w, prefix, log.LstdFlags), debug: debug}
}

// Discard drops everything. Handy in tests.
func Discard() *Std {
	return New(io.Discard, "", false)
}

func (l *Std) Debug(msg string, keyvals ...any) {
	if l.debug {
		l.print("DEBUG", msg, keyvals)
	}
}

func (l *Std) Info(msg string, keyvals ...any)  { l.print("INFO", msg, keyvals) }
func (l *Std) Warn(msg string, keyvals ...any)  { l.print("WARN", msg, keyvals) }
func (l *Std) Error(msg string, keyvals ...any) { l.print("ERROR", msg, keyvals) }

func (l *Std) print(level, msg string, keyvals []any) {
	var b strings.Builder
	b.WriteString(level)
	b.WriteByte(' ')
	b.WriteString(msg)
	for i := 0; i < len(keyvals); i += 2 {
		b.WriteByte(' ')
		if i+1 < len(keyvals) {
			fmt.Fprintf(&b, "%v=%v", keyvals[i], keyvals[i+1])
		} else {
			fmt.Fprintf(&b, "%v=(missing)", keyvals[i])
		}
	}
	l.std.Println(b.String())
}

// Fields turns keyvals into a map. Non-string keys are formatted with %v.
func Fields(keyvals []any) map[string]any {
	out := make(map[string]any, len(keyvals)/2)
	for i := 0; i+1 < len(keyvals); i += 2 {
		out[fmt.Sprint(keyvals[i])] = keyvals[i+1]
	}
	return out
}
