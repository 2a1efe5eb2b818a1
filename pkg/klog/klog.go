// Package klog is the kernel's leveled logger, giving every subsystem a
// consistent shape on top of logrus, with a "subsystem" field set once per
// package so a boot transcript can be filtered by component.
package klog

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	base     = logrus.New()
	initOnce sync.Once
)

// Mode selects the base formatter.
type Mode int

const (
	// Interactive is human-readable text, for a console boot.
	Interactive Mode = iota
	// Daemon emits structured JSON, for a headless boot logged to a file.
	Daemon
)

// Init configures the base logger. Safe to call once; later calls are no-ops.
func Init(mode Mode, level logrus.Level) {
	initOnce.Do(func() {
		base.SetOutput(os.Stderr)
		base.SetLevel(level)
		switch mode {
		case Daemon:
			base.SetFormatter(&logrus.JSONFormatter{})
		default:
			base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		}
	})
}

// Logger is a subsystem-scoped logger.
type Logger struct {
	entry *logrus.Entry
}

// For returns a Logger scoped to the named subsystem (e.g. "vfs", "sched",
// "tty", "sock").
func For(subsystem string) *Logger {
	return &Logger{entry: base.WithField("subsystem", subsystem)}
}

func (l *Logger) Debugf(format string, args ...any)   { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...any)    { l.entry.Infof(format, args...) }
func (l *Logger) Warningf(format string, args ...any) { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...any)   { l.entry.Errorf(format, args...) }

// Fatalf logs and halts the process, reserved for conditions that are
// genuinely unrecoverable (a write failure during the global dirty-buffer
// flush, corrupt on-disk structures).
func (l *Logger) Fatalf(format string, args ...any) { l.entry.Fatalf(format, args...) }

// WithField returns a derived Logger carrying one more structured field.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}
