package zaplog

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-confdiff"
	"github.com/goliatone/go-confdiff/pkg/activity"
	"github.com/goliatone/go-confdiff/pkg/guard"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the level and encoding of a logger.
type Config struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// New creates a zap logger. Level "debug" starts from the development
// config; "console" format disables stack traces and colours levels.
func New(cfg Config) (*zap.Logger, error) {
	var config zap.Config
	if cfg.Level == "debug" {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}
	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("zaplog: %w", err)
		}
		config.Level = zap.NewAtomicLevelAt(level)
	}

	switch strings.ToLower(cfg.Format) {
	case "console":
		config.Encoding = "console"
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.DisableStacktrace = true
	case "", "json":
		config.Encoding = "json"
	default:
		return nil, fmt.Errorf("zaplog: unknown format %q", cfg.Format)
	}

	config.EncoderConfig.LevelKey = "level"
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.MessageKey = "message"
	config.OutputPaths = []string{"stderr"}

	return config.Build()
}

// Reconcile logs every reconciliation call at debug level, failures at
// error level.
func Reconcile(l *zap.Logger) confdiff.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return confdiff.LoggerFunc(func(event confdiff.LogEvent) {
		fields := []zap.Field{
			zap.String("operation", event.Operation),
			zap.String("keys", event.Keys),
			zap.Duration("duration", event.Duration),
			zap.Bool("empty", event.Empty),
		}
		if event.Collisions > 0 {
			fields = append(fields, zap.Int("collisions", event.Collisions))
		}
		if event.Protected > 0 {
			fields = append(fields, zap.Int("protected", event.Protected))
		}
		if event.Err != nil {
			l.Error("reconcile failed", append(fields, zap.Error(event.Err))...)
			return
		}
		if event.Collisions > 0 {
			l.Warn("reconcile merged colliding records", fields...)
			return
		}
		l.Debug("reconcile", fields...)
	})
}

// Guard logs rule evaluations. Protections are logged at info level since
// they change what gets removed.
func Guard(l *zap.Logger) guard.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return guard.LoggerFunc(func(event guard.LogEvent) {
		fields := []zap.Field{
			zap.String("engine", event.Engine),
			zap.String("rule", event.Rule),
			zap.String("path", event.Path),
			zap.Duration("duration", event.Duration),
		}
		switch {
		case event.Err != nil:
			l.Error("guard evaluation failed", append(fields, zap.Error(event.Err))...)
		case event.Protected:
			l.Info("guard protected record", fields...)
		default:
			l.Debug("guard evaluated", fields...)
		}
	})
}

// Activity returns a hook writing lifecycle events to l.
func Activity(l *zap.Logger) activity.ActivityHook {
	if l == nil {
		l = zap.NewNop()
	}
	return activity.HookFunc(func(_ context.Context, event activity.Event) error {
		fields := []zap.Field{
			zap.String("verb", event.Verb),
			zap.String("object_type", event.ObjectType),
			zap.String("object_id", event.ObjectID),
			zap.String("channel", event.Channel),
			zap.Time("occurred_at", event.OccurredAt),
		}
		if ref := event.Ref(); ref != "" {
			fields = append(fields, zap.String("ref", ref))
		}
		if event.ActorID != "" {
			fields = append(fields, zap.String("actor_id", event.ActorID))
		}
		if len(event.Metadata) > 0 {
			fields = append(fields, zap.Any("metadata", event.Metadata))
		}
		l.Info("activity", fields...)
		return nil
	})
}
