package confdiff

import "time"

// LogEvent describes one reconciliation call for logging.
type LogEvent struct {
	Operation  string
	Keys       string
	Duration   time.Duration
	Collisions int
	Protected  int
	Empty      bool
	Err        error
}

// Logger records reconciliation events.
type Logger interface {
	LogReconcile(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// LogReconcile implements Logger.
func (f LoggerFunc) LogReconcile(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogReconcile(LogEvent) {}

// MultiLogger fans events out to every non-nil logger.
func MultiLogger(loggers ...Logger) Logger {
	out := make(multiLogger, 0, len(loggers))
	for _, logger := range loggers {
		if logger != nil {
			out = append(out, logger)
		}
	}
	if len(out) == 0 {
		return noopLogger{}
	}
	return out
}

type multiLogger []Logger

func (m multiLogger) LogReconcile(event LogEvent) {
	for _, logger := range m {
		logger.LogReconcile(event)
	}
}
