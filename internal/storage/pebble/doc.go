// Package pebblestore wraps Pebble with an fsync policy, atomic batches, and
// optional latency metrics. The payment queue keeps all of its lists in one
// DB and commits every state transition as a single batch.
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: cfg.DataDir,
//	    Fsync:   pebblestore.FsyncModeAlways,
//	    Metrics: pebblestore.PromMetrics{},
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
package pebblestore
