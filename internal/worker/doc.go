// Package worker hosts the background loops of the settlement pipeline: the
// settlement workers that drain the queue into the ledger, the reaper that
// recovers work from crashed workers, and the depth monitor.
package worker
