// Package client provides the `fintech` command-line client.
//
// The CLI talks to the settlement node's HTTP API to submit payments and
// inspect queue state from a terminal. It is primarily intended for
// developers and operators.
//
// # Address configuration
//
// The HTTP base URL is discovered by the application that embeds the
// commands via a BaseURLFunc. The standalone binary reads FINTECH_HTTP and
// defaults to http://127.0.0.1:8080.
//
// Usage
//
//	fintech payment submit \
//	    --from 7c9f...e1 --to 3b10...9a \
//	    --amount 125.50 --type ach_debit \
//	    --idempotency-key pay-2026-03-001
//
//	fintech payment get 3f0b0c6e-...
//
//	fintech queue stats
package client
