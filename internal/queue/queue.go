package queue

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	pebblestore "github.com/Zuzuna54/fintech-app-demo/internal/storage/pebble"
)

var (
	// ErrEmpty is returned by Dequeue when no item became available within
	// the blocking window.
	ErrEmpty = errors.New("queue: no item available")
	// ErrCorruptRecord is returned when a stored record fails its checksum.
	ErrCorruptRecord = errors.New("queue: corrupt record")
)

var (
	enqueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_queue_enqueued_total",
		Help: "Items appended to the pending list",
	})
	retriedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_queue_retried_total",
		Help: "Items re-queued for another settlement attempt",
	})
	deadLetteredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_queue_dead_lettered_total",
		Help: "Items moved to the dead-letter list after retry exhaustion",
	})
)

// RetryOutcome reports which path Retry took.
type RetryOutcome int

// Retry outcomes.
const (
	Retried RetryOutcome = iota
	DeadLettered
)

// String returns a printable outcome name.
func (o RetryOutcome) String() string {
	if o == DeadLettered {
		return "dead_lettered"
	}
	return "retried"
}

// Stats are the current list depths. Read-only; computed by prefix scans so
// sampling has no side effects.
type Stats struct {
	Pending    int `json:"pending"`
	InFlight   int `json:"in_flight"`
	DeadLetter int `json:"dead_letter"`
}

// Delivery is a dequeued item together with its storage sequence and lease
// deadline.
type Delivery struct {
	Seq        uint64
	DeadlineMs int64
	Item       *Item
}

// Options tune queue behavior.
type Options struct {
	MaxRetries   int           // retry budget before dead-lettering (default 3)
	PollInterval time.Duration // sleep between polls while pending is empty
	BlockFor     time.Duration // how long Dequeue blocks before ErrEmpty
}

// Queue is a durable at-least-once FIFO work queue over Pebble. Items move
// pending -> in-flight -> gone (ack) | pending (retry) | dead-letter, and
// every transition is a single atomic batch so an item is never visible in
// two lists at once.
type Queue struct {
	db   *pebblestore.DB
	name string

	mu      sync.Mutex
	lastSeq uint64

	maxRetries int
	poll       time.Duration
	block      time.Duration
}

// Open initializes a queue and restores the last issued sequence from
// metadata if present.
func Open(db *pebblestore.DB, name string) (*Queue, error) {
	q := &Queue{
		db:         db,
		name:       name,
		maxRetries: 3,
		poll:       100 * time.Millisecond,
		block:      time.Second,
	}
	if meta, err := db.Get(metaKey(name)); err == nil && len(meta) >= 8 {
		q.lastSeq = binary.BigEndian.Uint64(meta[:8])
	}
	return q, nil
}

// WithOptions applies non-zero options and returns the queue.
func (q *Queue) WithOptions(opts Options) *Queue {
	if opts.MaxRetries > 0 {
		q.maxRetries = opts.MaxRetries
	}
	if opts.PollInterval > 0 {
		q.poll = opts.PollInterval
	}
	if opts.BlockFor > 0 {
		q.block = opts.BlockFor
	}
	return q
}

// MaxRetries returns the configured retry budget.
func (q *Queue) MaxRetries() int { return q.maxRetries }

// Enqueue appends an item to the tail of pending in one atomic batch.
// A zero timestamp is stamped with the current time.
func (q *Queue) Enqueue(ctx context.Context, item *Item) (uint64, error) {
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now().UTC()
	}
	val, err := MarshalItem(item)
	if err != nil {
		return 0, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	b := q.db.NewBatch()
	defer b.Close()

	q.lastSeq++
	seq := q.lastSeq
	if err := b.Set(msgKey(q.name, seq), val, nil); err != nil {
		return 0, err
	}
	if err := b.Set(pendingKey(q.name, seq), []byte(item.PaymentID), nil); err != nil {
		return 0, err
	}
	if err := q.putMeta(b); err != nil {
		return 0, err
	}
	if err := q.db.CommitBatch(ctx, b); err != nil {
		return 0, err
	}
	enqueuedTotal.Inc()
	return seq, nil
}

// Dequeue moves the head of pending to in-flight and returns it. The move is
// one atomic batch, so concurrent dequeuers never share an item. When pending
// is empty it polls with a bounded interval and gives up with ErrEmpty after
// the blocking window so callers can observe cancellation.
//
// If nowMs <= 0, time.Now().UnixMilli() is used.
func (q *Queue) Dequeue(ctx context.Context, visibility time.Duration, nowMs int64) (*Delivery, error) {
	deadline := time.Now().Add(q.block)
	for {
		d, err := q.tryDequeue(ctx, visibility, nowMs)
		if err != nil {
			return nil, err
		}
		if d != nil {
			return d, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrEmpty
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.poll):
		}
	}
}

func (q *Queue) tryDequeue(ctx context.Context, visibility time.Duration, nowMs int64) (*Delivery, error) {
	if nowMs <= 0 {
		nowMs = time.Now().UnixMilli()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	lo, hi := keyRange(q.name, prefixPending)
	iter, err := q.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	for ok := iter.First(); ok; ok = iter.Next() {
		k := iter.Key()
		if len(k) < len(lo)+8 {
			continue
		}
		seq := binary.BigEndian.Uint64(k[len(k)-8:])

		val, errGet := q.db.Get(msgKey(q.name, seq))
		if errGet != nil {
			// Orphaned index entry; drop it and keep scanning.
			_ = q.db.Delete(append([]byte(nil), k...))
			continue
		}
		item, errDec := UnmarshalItem(val)
		if errDec != nil {
			_ = q.db.Delete(append([]byte(nil), k...))
			continue
		}

		deadlineMs := nowMs + visibility.Milliseconds()
		b := q.db.NewBatch()
		defer b.Close()
		if err := b.Delete(append([]byte(nil), k...), nil); err != nil {
			return nil, err
		}
		if err := b.Set(leaseKey(q.name, item.PaymentID), leaseValue(deadlineMs, seq), nil); err != nil {
			return nil, err
		}
		if err := b.Set(leaseIdxKey(q.name, deadlineMs, seq), []byte(item.PaymentID), nil); err != nil {
			return nil, err
		}
		if err := q.db.CommitBatch(ctx, b); err != nil {
			return nil, err
		}
		return &Delivery{Seq: seq, DeadlineMs: deadlineMs, Item: item}, nil
	}
	return nil, nil
}

// Acknowledge removes the in-flight item for a payment and clears its retry
// counter. Acknowledging an unknown or already-removed payment is a no-op.
func (q *Queue) Acknowledge(ctx context.Context, paymentID string) error {
	lease, err := q.db.Get(leaseKey(q.name, paymentID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil
		}
		return err
	}
	deadlineMs, seq, ok := parseLease(lease)
	if !ok {
		return ErrCorruptRecord
	}

	b := q.db.NewBatch()
	defer b.Close()
	if err := b.Delete(leaseKey(q.name, paymentID), nil); err != nil {
		return err
	}
	if err := b.Delete(leaseIdxKey(q.name, deadlineMs, seq), nil); err != nil {
		return err
	}
	if err := b.Delete(msgKey(q.name, seq), nil); err != nil {
		return err
	}
	if err := b.Delete(retryKey(q.name, paymentID), nil); err != nil {
		return err
	}
	return q.db.CommitBatch(ctx, b)
}

// Retry increments the payment's retry counter and either re-appends the item
// to the pending tail with a refreshed timestamp, or moves it to the
// dead-letter list once the budget is exhausted. This is the only place
// dead-lettering is decided.
//
// A caller whose lease is gone (acknowledged elsewhere, or already recycled
// by the reaper) gets a no-op, mirroring Acknowledge. Requeueing without the
// lease would add a second pending copy of the payment.
//
// If nowMs <= 0, time.Now().UnixMilli() is used.
func (q *Queue) Retry(ctx context.Context, paymentID string, item *Item, nowMs int64) (RetryOutcome, error) {
	if nowMs <= 0 {
		nowMs = time.Now().UnixMilli()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	lease, err := q.db.Get(leaseKey(q.name, paymentID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return Retried, nil
		}
		return 0, err
	}
	deadlineMs, oldSeq, ok := parseLease(lease)
	if !ok {
		return 0, ErrCorruptRecord
	}

	count, err := q.retryCount(paymentID)
	if err != nil {
		return 0, err
	}
	count++

	b := q.db.NewBatch()
	defer b.Close()

	if err := b.Delete(leaseKey(q.name, paymentID), nil); err != nil {
		return 0, err
	}
	if err := b.Delete(leaseIdxKey(q.name, deadlineMs, oldSeq), nil); err != nil {
		return 0, err
	}
	if err := b.Delete(msgKey(q.name, oldSeq), nil); err != nil {
		return 0, err
	}

	if count <= q.maxRetries {
		item.Retries = count
		item.Timestamp = time.UnixMilli(nowMs).UTC()
		val, err := MarshalItem(item)
		if err != nil {
			return 0, err
		}
		var cb [4]byte
		binary.BigEndian.PutUint32(cb[:], uint32(count))
		if err := b.Set(retryKey(q.name, paymentID), cb[:], nil); err != nil {
			return 0, err
		}
		q.lastSeq++
		if err := b.Set(msgKey(q.name, q.lastSeq), val, nil); err != nil {
			return 0, err
		}
		if err := b.Set(pendingKey(q.name, q.lastSeq), []byte(paymentID), nil); err != nil {
			return 0, err
		}
		if err := q.putMeta(b); err != nil {
			return 0, err
		}
		if err := q.db.CommitBatch(ctx, b); err != nil {
			return 0, err
		}
		retriedTotal.Inc()
		return Retried, nil
	}

	// Budget exhausted: park the item in the dead-letter list.
	item.Retries = count
	val, err := MarshalItem(item)
	if err != nil {
		return 0, err
	}
	q.lastSeq++
	if err := b.Set(dlqKey(q.name, q.lastSeq), val, nil); err != nil {
		return 0, err
	}
	if err := b.Delete(retryKey(q.name, paymentID), nil); err != nil {
		return 0, err
	}
	if err := q.putMeta(b); err != nil {
		return 0, err
	}
	if err := q.db.CommitBatch(ctx, b); err != nil {
		return 0, err
	}
	deadLetteredTotal.Inc()
	return DeadLettered, nil
}

// Stats returns current list depths.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	var err error
	if s.Pending, err = q.countPrefix(prefixPending); err != nil {
		return Stats{}, err
	}
	if s.InFlight, err = q.countPrefix(prefixLease); err != nil {
		return Stats{}, err
	}
	if s.DeadLetter, err = q.countPrefix(prefixDLQ); err != nil {
		return Stats{}, err
	}
	return s, nil
}

func (q *Queue) countPrefix(sub string) (int, error) {
	lo, hi := keyRange(q.name, sub)
	iter, err := q.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	n := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		n++
	}
	return n, nil
}

func (q *Queue) retryCount(paymentID string) (int, error) {
	val, err := q.db.Get(retryKey(q.name, paymentID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if len(val) < 4 {
		return 0, nil
	}
	return int(binary.BigEndian.Uint32(val[:4])), nil
}

// putMeta stages the lastSeq metadata into the batch. Callers hold q.mu.
func (q *Queue) putMeta(b *pebble.Batch) error {
	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], q.lastSeq)
	return b.Set(metaKey(q.name), meta[:], nil)
}

// Lease value: deadlineMs(8B BE) | seq(8B BE)

func leaseValue(deadlineMs int64, seq uint64) []byte {
	var v [16]byte
	binary.BigEndian.PutUint64(v[0:8], uint64(deadlineMs))
	binary.BigEndian.PutUint64(v[8:16], seq)
	return v[:]
}

func parseLease(v []byte) (deadlineMs int64, seq uint64, ok bool) {
	if len(v) < 16 {
		return 0, 0, false
	}
	return int64(binary.BigEndian.Uint64(v[0:8])), binary.BigEndian.Uint64(v[8:16]), true
}
