// Package runtime wires the queue store, the ledger, and configuration into
// a single settlement node. It exposes Open/Close, basic health checks, and
// helpers to open the components the server and CLI compose.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(ctx, runtime.Options{DataDir: cfg.DataDir, Fsync: pebblestore.FsyncModeAlways, Config: cfg})
//	defer rt.Close()
//	q, _ := rt.OpenQueue(cfg.QueueName)
package runtime
