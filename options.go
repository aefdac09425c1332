package confdiff

import "time"

// Option configures a Reconciler.
type Option func(*config)

type config struct {
	logger Logger
	strict bool
	filter RemovalFilter
	clock  func() time.Time
}

func applyOptions(opts []Option) config {
	cfg := config{
		logger: noopLogger{},
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithLogger attaches a logger receiving one event per reconciliation call.
func WithLogger(logger Logger) Option {
	return func(cfg *config) {
		if logger == nil {
			cfg.logger = noopLogger{}
			return
		}
		cfg.logger = logger
	}
}

// WithStrictIdentity rejects sibling records sharing an identity with
// ErrDuplicateIdentity instead of letting the later record win.
func WithStrictIdentity() Option {
	return func(cfg *config) {
		cfg.strict = true
	}
}

// WithRemovalFilter lets filter protect records from removal deltas.
func WithRemovalFilter(filter RemovalFilter) Option {
	return func(cfg *config) {
		cfg.filter = filter
	}
}

// WithClock overrides the clock used to time reconciliation calls.
func WithClock(clock func() time.Time) Option {
	return func(cfg *config) {
		if clock == nil {
			clock = time.Now
		}
		cfg.clock = clock
	}
}
