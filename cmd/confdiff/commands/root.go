// Package commands defines the confdiff command tree.
//
// Every command shares one app: the resolved Config, the zap logger and the
// Prometheus registry the run reports into. Commands read documents with
// internal/hydrate and write results to the command's output stream.
package commands

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-confdiff"
	"github.com/goliatone/go-confdiff/pkg/guard"
	"github.com/goliatone/go-confdiff/pkg/metrics"
	"github.com/goliatone/go-confdiff/pkg/resources"
	"github.com/goliatone/go-confdiff/pkg/zaplog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ErrChanges is returned with --exit-code when the computed result is not
// empty. Metrics are written before it is returned.
var ErrChanges = errors.New("changes detected")

type app struct {
	viper     *viper.Viper
	config    Config
	logger    *zap.Logger
	registry  *prometheus.Registry
	collector *metrics.Collector
	resources *resources.Registry
	changed   bool
}

func newApp() *app {
	return &app{
		viper:     viper.New(),
		logger:    zap.NewNop(),
		resources: resources.Default(),
	}
}

// Root returns the root command for the confdiff CLI.
func Root() *cobra.Command {
	return newRoot(newApp())
}

func newRoot(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confdiff",
		Short: "Compute merge and removal deltas between device configurations",
		Long: `confdiff reconciles the configuration a device runs with the one it should run.

Documents are JSON, YAML or TOML files. Records in lists are matched by the
identity fields of their resource, so reordering never shows up as a change.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return a.teardown()
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "Path to a YAML config file")
	flags.String("env-file", ".env", "Dotenv file loaded before reading the environment")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.String("log-format", "", "Log format: console or json")
	flags.String("guard-engine", "", "Engine evaluating --guard rules: expr, cel or js")
	flags.String("metrics-file", "", "Write Prometheus metrics to this textfile after the run")

	cmd.AddCommand(newDiffCmd(a))
	cmd.AddCommand(newIntersectCmd(a))
	cmd.AddCommand(newPlanCmd(a))
	cmd.AddCommand(newResourcesCmd(a))
	cmd.AddCommand(newSchemaCmd(a))
	cmd.AddCommand(Version())

	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	configFile, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")

	cfg, err := LoadConfig(a.viper, cmd.Flags(), configFile, envFile)
	if err != nil {
		return err
	}
	a.config = cfg

	logger, err := zaplog.New(cfg.Log)
	if err != nil {
		return err
	}
	a.logger = logger

	a.registry = prometheus.NewRegistry()
	collector, err := metrics.NewCollector(a.registry)
	if err != nil {
		return err
	}
	a.collector = collector
	return nil
}

func (a *app) teardown() error {
	defer func() { _ = a.logger.Sync() }()
	if a.config.Metrics.File != "" && a.registry != nil {
		if err := prometheus.WriteToTextfile(a.config.Metrics.File, a.registry); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	if a.changed {
		return ErrChanges
	}
	return nil
}

// reconcilerOptions wires logging, metrics and the removal guard into every
// reconciler the command builds.
func (a *app) reconcilerOptions(in *inputFlags, resource string) ([]confdiff.Option, error) {
	opts := []confdiff.Option{
		confdiff.WithLogger(confdiff.MultiLogger(zaplog.Reconcile(a.logger), a.collectorLogger())),
	}
	if in.strict {
		opts = append(opts, confdiff.WithStrictIdentity())
	}
	g, err := a.guard(in.guards, resource)
	if err != nil {
		return nil, err
	}
	if g != nil {
		opts = append(opts, confdiff.WithRemovalFilter(g))
	}
	return opts, nil
}

func (a *app) collectorLogger() confdiff.Logger {
	if a.collector == nil {
		return nil
	}
	return a.collector
}

func (a *app) guard(flagRules []string, resource string) (*guard.Guard, error) {
	raw := append(append([]string{}, a.config.Guard.Rules...), flagRules...)
	if len(raw) == 0 {
		return nil, nil
	}
	rules := make([]guard.Rule, 0, len(raw))
	for _, entry := range raw {
		rule, err := guard.ParseRule(entry)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	loggers := []guard.Logger{zaplog.Guard(a.logger)}
	if a.collector != nil {
		loggers = append(loggers, a.collector)
	}
	return guard.New(rules,
		guard.WithEngine(a.config.Guard.Engine),
		guard.WithResource(resource),
		guard.WithBuiltins(),
		guard.WithLogger(guard.MultiLogger(loggers...)),
	)
}
