// Package serverrun exposes a shared Run entrypoint used by the CLI to start
// the settlement node: the payments HTTP API, the worker pool, the stale-work
// reaper, and the queue monitor, with lifecycle and shutdown handling.
//
// Example:
//
//	opts := serverrun.Options{HTTPAddr: ":8080", Fsync: pebblestore.FsyncModeAlways, Config: config.Default()}
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = serverrun.Run(ctx, opts)
package serverrun
