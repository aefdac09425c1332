// Package zaplog adapts go.uber.org/zap to the loggers of the module.
//
// New builds a *zap.Logger from a level and an encoding. Reconcile, Guard
// and Activity wrap such a logger so reconciliations, removal guard
// evaluations and lifecycle events land in the same structured log.
//
// # Usage
//
//	log, _ := zaplog.New(zaplog.Config{Level: "info", Format: "json"})
//	r := confdiff.New(keys, confdiff.WithLogger(zaplog.Reconcile(log)))
package zaplog
