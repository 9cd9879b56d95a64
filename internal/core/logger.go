package core

import (
	"log"
	"os"

	"github.com/julien-sobczak/nt-anki/pkg/resync"
)

var (
	// Lazy-load and ensure a single instance
	loggerOnce      resync.Once
	loggerSingleton *Logger
)

// VerboseLevel controls how chatty the CLI is on stderr.
type VerboseLevel int

const (
	VerboseOff VerboseLevel = iota
	VerboseInfo
	VerboseDebug
	VerboseTrace
)

func CurrentLogger() *Logger {
	loggerOnce.Do(func() {
		loggerSingleton = NewLogger()
	})
	return loggerSingleton
}

// Logger writes leveled messages to stderr. Warnings and fatal errors are
// always emitted; the other levels are gated by the verbose flags.
type Logger struct {
	out       *log.Logger
	threshold VerboseLevel
}

func NewLogger() *Logger {
	return &Logger{
		out:       log.New(os.Stderr, "", log.LstdFlags),
		threshold: VerboseOff,
	}
}

// SetVerboseLevel overrides the default verbose level
func (l *Logger) SetVerboseLevel(level VerboseLevel) *Logger {
	l.threshold = level
	return l
}

func (l *Logger) logln(level VerboseLevel, v ...any) {
	if level <= l.threshold {
		l.out.Println(v...)
	}
}

func (l *Logger) logf(level VerboseLevel, format string, v ...any) {
	if level <= l.threshold {
		l.out.Printf(format, v...)
	}
}

func (l *Logger) Fatal(v ...any) {
	l.out.Fatalln(v...)
}
func (l *Logger) Fatalf(format string, v ...any) {
	l.out.Fatalf(format, v...)
}

func (l *Logger) Warn(v ...any) {
	l.out.Println(v...)
}
func (l *Logger) Warnf(format string, v ...any) {
	l.out.Printf(format, v...)
}

func (l *Logger) Info(v ...any) {
	l.logln(VerboseInfo, v...)
}
func (l *Logger) Infof(format string, v ...any) {
	l.logf(VerboseInfo, format, v...)
}

func (l *Logger) Debug(v ...any) {
	l.logln(VerboseDebug, v...)
}
func (l *Logger) Debugf(format string, v ...any) {
	l.logf(VerboseDebug, format, v...)
}

func (l *Logger) Trace(v ...any) {
	l.logln(VerboseTrace, v...)
}
func (l *Logger) Tracef(format string, v ...any) {
	l.logf(VerboseTrace, format, v...)
}
