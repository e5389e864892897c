// Package log provides the structured logging facade used across the
// settlement pipeline.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// simple Field type for structured context. Components receive a Logger via
// constructor injection; there is no package-level default logger.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("worker"))
//	l.Info("settled payment", log.Str("payment_id", id))
//
// # Configuration
//
// Use ApplyConfig to build a logger from a declarative Config holding a level
// name and an output format (text or json).
//
// # Interop
//
// RedirectStdLog routes standard library log output (Pebble, net/http) into a
// Logger so all process output shares one format.
package log
