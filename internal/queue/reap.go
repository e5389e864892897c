package queue

import (
	"context"
	"encoding/binary"
	"errors"
	"time"

	"github.com/cockroachdb/pebble"
)

// ReapStale scans the lease deadline index for in-flight items whose
// visibility window expired before nowMs and routes each through the same
// retry policy as Retry. The lease is removed in the same batch as the
// requeue, so one pass never recovers the same item twice.
//
// If nowMs <= 0, time.Now().UnixMilli() is used. Returns the number of items
// recovered.
func (q *Queue) ReapStale(ctx context.Context, nowMs int64) (int, error) {
	if nowMs <= 0 {
		nowMs = time.Now().UnixMilli()
	}

	type stale struct {
		paymentID  string
		deadlineMs int64
		seq        uint64
	}

	lo, hi := keyRange(q.name, prefixLeaseIdx)
	iter, err := q.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return 0, err
	}

	var expired []stale
	for ok := iter.First(); ok; ok = iter.Next() {
		k := iter.Key()
		if len(k) < len(lo)+8+8 {
			continue
		}
		deadlineMs := int64(binary.BigEndian.Uint64(k[len(lo) : len(lo)+8]))
		if deadlineMs > nowMs {
			// Index is ordered by deadline; everything past here is live.
			break
		}
		expired = append(expired, stale{
			paymentID:  string(iter.Value()),
			deadlineMs: deadlineMs,
			seq:        binary.BigEndian.Uint64(k[len(k)-8:]),
		})
	}
	if err := iter.Close(); err != nil {
		return 0, err
	}

	reaped := 0
	for _, s := range expired {
		// The index entry is only authoritative while the lease still points
		// at this delivery. A missing or re-pointed lease means a later
		// delivery of the same payment overwrote it, leaving the entry and
		// its record orphaned.
		lease, err := q.db.Get(leaseKey(q.name, s.paymentID))
		if err != nil {
			if errors.Is(err, pebble.ErrNotFound) {
				if err := q.dropOrphan(ctx, s.deadlineMs, s.seq); err != nil {
					return reaped, err
				}
				continue
			}
			return reaped, err
		}
		if _, seq, ok := parseLease(lease); !ok || seq != s.seq {
			if err := q.dropOrphan(ctx, s.deadlineMs, s.seq); err != nil {
				return reaped, err
			}
			continue
		}

		val, err := q.db.Get(msgKey(q.name, s.seq))
		if err != nil {
			if errors.Is(err, pebble.ErrNotFound) {
				// Record already gone; drop the orphaned lease state.
				if err := q.Acknowledge(ctx, s.paymentID); err != nil {
					return reaped, err
				}
				continue
			}
			return reaped, err
		}
		item, err := UnmarshalItem(val)
		if err != nil {
			if err := q.Acknowledge(ctx, s.paymentID); err != nil {
				return reaped, err
			}
			continue
		}
		if _, err := q.Retry(ctx, s.paymentID, item, nowMs); err != nil {
			return reaped, err
		}
		reaped++
	}
	return reaped, nil
}

// dropOrphan removes a lease index entry no live lease points at, together
// with the record it references.
func (q *Queue) dropOrphan(ctx context.Context, deadlineMs int64, seq uint64) error {
	b := q.db.NewBatch()
	defer b.Close()
	if err := b.Delete(leaseIdxKey(q.name, deadlineMs, seq), nil); err != nil {
		return err
	}
	if err := b.Delete(msgKey(q.name, seq), nil); err != nil {
		return err
	}
	return q.db.CommitBatch(ctx, b)
}
