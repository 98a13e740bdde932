// Package clog is the leveled logging abstraction shared by every MAC
// subsystem. It follows the gated-provider pattern used throughout this
// codebase: callers never format a message unless logging is enabled, and
// the formatting backend is pluggable behind LogProvider.
package clog

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

// LogProvider are the four levels this module logs at. No Info level:
// Debug covers routine tracing, Warn covers recoverable protocol errors.
type LogProvider interface {
	Critical(format string, v ...interface{})
	Error(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Debug(format string, v ...interface{})
}

// Clog wraps a LogProvider behind an atomic enable flag so subsystems can be
// muted in production without touching call sites.
type Clog struct {
	provider LogProvider
	has      uint32
}

// NewLogger builds a Clog using the default console provider, tagged with a
// fresh run correlation ID so concurrent runs in one log stream can be told
// apart.
func NewLogger(prefix string) Clog {
	return Clog{
		provider: defaultLogger{
			runID:  uuid.NewString()[:8],
			logger: log.New(os.Stdout, prefix, log.LstdFlags|log.Lmicroseconds),
		},
		has: 1,
	}
}

// LogMode enables or disables log output.
func (sf *Clog) LogMode(enable bool) {
	if enable {
		atomic.StoreUint32(&sf.has, 1)
	} else {
		atomic.StoreUint32(&sf.has, 0)
	}
}

// SetLogProvider overrides the backend used to render log lines.
func (sf *Clog) SetLogProvider(p LogProvider) {
	if p != nil {
		sf.provider = p
	}
}

func (sf Clog) Critical(format string, v ...interface{}) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Critical(format, v...)
	}
}

func (sf Clog) Error(format string, v ...interface{}) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Error(format, v...)
	}
}

func (sf Clog) Warn(format string, v ...interface{}) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Warn(format, v...)
	}
}

func (sf Clog) Debug(format string, v ...interface{}) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Debug(format, v...)
	}
}

// defaultLogger renders level prefixes in color the way an operator console
// distinguishes severity at a glance.
type defaultLogger struct {
	runID  string
	logger *log.Logger
}

var _ LogProvider = defaultLogger{}

func (sf defaultLogger) Critical(format string, v ...interface{}) {
	sf.logger.Printf("[%s] %s "+format, sf.args(color.New(color.FgRed, color.Bold).Sprint("C"), v)...)
}

func (sf defaultLogger) Error(format string, v ...interface{}) {
	sf.logger.Printf("[%s] %s "+format, sf.args(color.RedString("E"), v)...)
}

func (sf defaultLogger) Warn(format string, v ...interface{}) {
	sf.logger.Printf("[%s] %s "+format, sf.args(color.YellowString("W"), v)...)
}

func (sf defaultLogger) Debug(format string, v ...interface{}) {
	sf.logger.Printf("[%s] %s "+format, sf.args(color.New(color.Faint).Sprint("D"), v)...)
}

func (sf defaultLogger) args(level string, v []interface{}) []interface{} {
	out := make([]interface{}, 0, len(v)+2)
	out = append(out, sf.runID, level)
	out = append(out, v...)
	return out
}

// Sprintf is a small convenience used by callers building one-off context
// strings before handing them to a Clog level method.
func Sprintf(format string, v ...interface{}) string {
	return fmt.Sprintf(format, v...)
}
