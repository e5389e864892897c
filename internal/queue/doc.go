// Package queue implements the durable settlement work queue with
// at-least-once delivery.
//
// Items move through three logical lists:
//
//   - pending: FIFO availability index, head dequeued first
//   - in-flight: lease per payment while a worker holds the item
//   - dead-letter: terminal parking after the retry budget is spent
//
// Every list transition is a single Pebble batch, so an item is never
// visible in two lists at once and no item is lost between them under
// concurrent dequeuers.
//
// # Keyspace
//
// All keys are prefixed with q/{name}/:
//
//	meta                        - last issued sequence
//	msg/{seq}                   - item record (length-framed, CRC-checked JSON)
//	pending/{seq}               - FIFO availability index
//	lease/{payment_id}          - in-flight lease (deadline_ms, seq)
//	lease_idx/{deadline}/{seq}  - lease deadline index for reaping
//	retry/{payment_id}          - retry counter, cleared on ack or dead-letter
//	dlq/{seq}                   - dead-letter records
//
// # Lifecycle
//
//  1. Enqueue: record written and indexed in pending, retries = 0
//  2. Dequeue: head of pending moved to a lease with a visibility deadline
//  3. Acknowledge: lease, record, and retry counter deleted
//  4. Retry: counter incremented; re-appended to the pending tail, or moved
//     to dlq once the counter passes the budget
//  5. ReapStale: expired leases funneled back through the Retry policy
//
// Delivery is at-least-once: a worker crash after settling but before
// Acknowledge re-delivers the item, so consumers must tolerate re-delivery
// (the settlement worker treats an already-completed payment as a no-op).
package queue
