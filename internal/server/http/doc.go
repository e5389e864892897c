// Package httpserver is the REST surface of the settlement pipeline: accept
// payments idempotently, report payment state, and expose queue depths and
// Prometheus metrics.
//
// Example:
//
//	s := httpserver.New(httpserver.Options{Ledger: store, Queue: q, Health: rt, Logger: logger})
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":8080")
package httpserver
