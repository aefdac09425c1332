package activity

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"
)

// DefaultChannel is stamped on events emitted without a channel.
const DefaultChannel = "reconcile"

// Config controls emission. Verbs, when set, limits emission to those verbs.
type Config struct {
	Enabled bool     `mapstructure:"enabled" yaml:"enabled"`
	Channel string   `mapstructure:"channel" yaml:"channel"`
	Verbs   []string `mapstructure:"verbs" yaml:"verbs"`
}

// EmitterOption customizes an Emitter.
type EmitterOption func(*Emitter)

// WithEmitterClock stamps events lacking OccurredAt from clock.
func WithEmitterClock(clock func() time.Time) EmitterOption {
	return func(e *Emitter) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// Emitter applies channel and timestamp defaults before fanning out.
type Emitter struct {
	hooks   Hooks
	enabled bool
	channel string
	verbs   []string
	clock   func() time.Time
}

// NewEmitter builds an emitter. It stays disabled without hooks.
func NewEmitter(hooks Hooks, cfg Config, opts ...EmitterOption) *Emitter {
	e := &Emitter{
		hooks:   hooks.compact(),
		channel: strings.TrimSpace(cfg.Channel),
		clock:   time.Now,
	}
	if e.channel == "" {
		e.channel = DefaultChannel
	}
	for _, verb := range cfg.Verbs {
		if verb = strings.TrimSpace(verb); verb != "" {
			e.verbs = append(e.verbs, verb)
		}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.enabled = cfg.Enabled && len(e.hooks) > 0
	return e
}

// Enabled reports whether Emit reaches any hook.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled
}

// Emits reports whether events with verb would be forwarded.
func (e *Emitter) Emits(verb string) bool {
	if !e.Enabled() {
		return false
	}
	return len(e.verbs) == 0 || slices.Contains(e.verbs, strings.TrimSpace(verb))
}

// Emit forwards event to the hooks.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Emits(event.Verb) {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = e.clock()
	}
	return e.hooks.Notify(ctx, event)
}

// EmitAll emits events in order. A failing event does not stop the rest.
func (e *Emitter) EmitAll(ctx context.Context, events ...Event) error {
	errs := make([]error, 0, len(events))
	for _, event := range events {
		errs = append(errs, e.Emit(ctx, event))
	}
	return errors.Join(errs...)
}
