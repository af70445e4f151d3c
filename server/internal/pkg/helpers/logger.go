package helpers

import (
	"os"

	logging "github.com/op/go-logging"
)

var format = logging.MustStringFormatter(
	`%{time:15:04:05.000} [%{module}] %{level:.4s} %{message}`,
)

func init() {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	logging.SetBackend(logging.NewBackendFormatter(backend, format))
}

// Logger provides simplified logging with module prefixes
type Logger struct {
	log *logging.Logger
}

// NewLogger creates a new logger for a module prefix
func NewLogger(prefix string) *Logger {
	return &Logger{log: logging.MustGetLogger(prefix)}
}

// Info logs an info message
func (l *Logger) Info(msg string, args ...interface{}) {
	l.log.Infof(msg, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.log.Warningf(msg, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string, err error, args ...interface{}) {
	l.log.Errorf(msg+": %v", append(args, err)...)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.log.Debugf(msg, args...)
}
