package guard

import "time"

// LogEvent describes one rule evaluation for logging.
type LogEvent struct {
	Engine    string
	Rule      string
	Path      string
	Duration  time.Duration
	Protected bool
	Err       error
}

// Logger records rule evaluations.
type Logger interface {
	LogEvaluation(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// LogEvaluation implements Logger.
func (f LoggerFunc) LogEvaluation(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogEvaluation(LogEvent) {}

// MultiLogger fans evaluations out to every non-nil logger.
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

func (m multiLogger) LogEvaluation(event LogEvent) {
	for _, logger := range m {
		logger.LogEvaluation(event)
	}
}
