package queue

import (
	"encoding/binary"
	"fmt"
)

// Key prefixes under q/{name}/:
const (
	prefixMsg      = "msg/"       // message records keyed by sequence
	prefixPending  = "pending/"   // FIFO availability index
	prefixLease    = "lease/"     // in-flight leases keyed by payment id
	prefixLeaseIdx = "lease_idx/" // lease deadline index for reaping
	prefixRetry    = "retry/"     // per-payment retry counters
	prefixDLQ      = "dlq/"       // dead-letter records
)

// queuePrefix returns the base prefix for a queue.
// Format: q/{name}/
func queuePrefix(name string) string {
	return fmt.Sprintf("q/%s/", name)
}

// metaKey returns the queue metadata key holding the last issued sequence.
func metaKey(name string) []byte {
	return []byte(queuePrefix(name) + "meta")
}

// msgKey returns the record key for a sequence.
// Format: q/{name}/msg/{seq}
func msgKey(name string, seq uint64) []byte {
	prefix := queuePrefix(name) + prefixMsg
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], seq)
	return key
}

// pendingKey returns the FIFO index key for a sequence. Sequences are
// big-endian so iteration order is enqueue order.
// Format: q/{name}/pending/{seq}
func pendingKey(name string, seq uint64) []byte {
	prefix := queuePrefix(name) + prefixPending
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], seq)
	return key
}

// leaseKey returns the in-flight lease key for a payment.
// Format: q/{name}/lease/{payment_id}
func leaseKey(name, paymentID string) []byte {
	return []byte(queuePrefix(name) + prefixLease + paymentID)
}

// leaseIdxKey returns the lease deadline index key.
// Format: q/{name}/lease_idx/{deadline_ms}/{seq}
func leaseIdxKey(name string, deadlineMs int64, seq uint64) []byte {
	prefix := queuePrefix(name) + prefixLeaseIdx
	key := make([]byte, len(prefix)+8+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], uint64(deadlineMs))
	binary.BigEndian.PutUint64(key[len(prefix)+8:], seq)
	return key
}

// retryKey returns the retry counter key for a payment.
// Format: q/{name}/retry/{payment_id}
func retryKey(name, paymentID string) []byte {
	return []byte(queuePrefix(name) + prefixRetry + paymentID)
}

// dlqKey returns the dead-letter record key for a sequence.
// Format: q/{name}/dlq/{seq}
func dlqKey(name string, seq uint64) []byte {
	prefix := queuePrefix(name) + prefixDLQ
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], seq)
	return key
}

// keyRange returns inclusive lower and exclusive upper bounds for scanning a
// sub-prefix of the queue keyspace.
func keyRange(name, sub string) ([]byte, []byte) {
	prefix := queuePrefix(name) + sub
	lo := []byte(prefix)
	hi := make([]byte, len(prefix)+1)
	copy(hi, prefix)
	hi[len(prefix)] = 0xFF
	return lo, hi
}
