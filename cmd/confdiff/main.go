// Package main is the entry point for the confdiff CLI.
//
// confdiff compares the configuration a device currently runs against the
// desired configuration and prints the merge delta to apply or the removal
// delta to delete, keyed by the identity fields of each resource.
//
// Commands: diff, intersect, plan, resources, version.
//
//	confdiff --help
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/goliatone/go-confdiff/cmd/confdiff/commands"
	"github.com/goliatone/go-confdiff/pkg/zaplog"
	"go.uber.org/zap"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		if errors.Is(err, commands.ErrChanges) {
			os.Exit(1)
		}
		l, logErr := zaplog.New(zaplog.Config{Level: "debug", Format: "console"})
		if logErr != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		l.Error("command failed", zap.Error(err))
		_ = l.Sync()
		os.Exit(2)
	}
}
