package worker

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Zuzuna54/fintech-app-demo/internal/domain"
	"github.com/Zuzuna54/fintech-app-demo/internal/ledger"
	"github.com/Zuzuna54/fintech-app-demo/internal/queue"
	pebblestore "github.com/Zuzuna54/fintech-app-demo/internal/storage/pebble"
	"github.com/Zuzuna54/fintech-app-demo/pkg/log"
)

func testLogger() log.Logger {
	return log.NewLogger(log.WithOutput(log.NewWriterOutput(io.Discard)))
}

func openTestQueue(t *testing.T) *queue.Queue {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	q, err := queue.Open(db, "payments")
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	return q.WithOptions(queue.Options{PollInterval: 2 * time.Millisecond, BlockFor: 20 * time.Millisecond})
}

// fakeLedger settles against an in-memory balance and can be programmed to
// fail per payment.
type fakeLedger struct {
	mu      sync.Mutex
	balance decimal.Decimal
	amounts map[uuid.UUID]decimal.Decimal
	errFor  map[uuid.UUID]error
	applied map[uuid.UUID]int
	failed  map[uuid.UUID]int
}

func newFakeLedger(balance int64) *fakeLedger {
	return &fakeLedger{
		balance: decimal.NewFromInt(balance),
		amounts: make(map[uuid.UUID]decimal.Decimal),
		errFor:  make(map[uuid.UUID]error),
		applied: make(map[uuid.UUID]int),
		failed:  make(map[uuid.UUID]int),
	}
}

func (f *fakeLedger) ApplyTransfer(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied[id]++
	if err, ok := f.errFor[id]; ok {
		return err
	}
	amount, ok := f.amounts[id]
	if !ok {
		return ledger.ErrPaymentNotFound
	}
	if f.balance.LessThan(amount) {
		return ledger.ErrInsufficientFunds
	}
	f.balance = f.balance.Sub(amount)
	return nil
}

func (f *fakeLedger) MarkPaymentFailed(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id]++
	return nil
}

func testPayload(amount int64) queue.Payload {
	return queue.Payload{
		Amount:      decimal.NewFromInt(amount),
		FromAccount: uuid.NewString(),
		ToAccount:   uuid.NewString(),
		PaymentType: domain.PaymentTypeACHDebit,
	}
}

func enqueuePayment(t *testing.T, q *queue.Queue, id uuid.UUID, amount int64) {
	t.Helper()
	item := &queue.Item{PaymentID: id.String(), Payload: testPayload(amount)}
	if _, err := q.Enqueue(context.Background(), item); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
}

// drain runs the worker until the queue stops yielding work.
func drain(t *testing.T, w *Worker, q *queue.Queue) {
	t.Helper()
	ctx := context.Background()
	for {
		d, err := q.Dequeue(ctx, time.Minute, 0)
		if errors.Is(err, queue.ErrEmpty) {
			return
		}
		if err != nil {
			t.Fatalf("dequeue: %v", err)
		}
		w.process(ctx, d)
	}
}

func TestWorkerSettlesAndAcks(t *testing.T) {
	q := openTestQueue(t)
	l := newFakeLedger(500)
	w := New(q, l, time.Minute, testLogger())

	pid := uuid.New()
	l.amounts[pid] = decimal.NewFromInt(100)
	enqueuePayment(t, q, pid, 100)

	drain(t, w, q)

	if got := l.applied[pid]; got != 1 {
		t.Fatalf("applied %d times, want 1", got)
	}
	if !l.balance.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("balance %s, want 400", l.balance)
	}
	s, err := q.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if s.Pending+s.InFlight+s.DeadLetter != 0 {
		t.Fatalf("queue not drained: %+v", s)
	}
}

func TestWorkerDropsMissingPayment(t *testing.T) {
	q := openTestQueue(t)
	l := newFakeLedger(0)
	w := New(q, l, time.Minute, testLogger())

	pid := uuid.New() // no amount registered: ledger reports not found
	enqueuePayment(t, q, pid, 100)

	drain(t, w, q)

	if l.failed[pid] != 0 {
		t.Fatalf("missing payment should not be marked failed")
	}
	s, _ := q.Stats(context.Background())
	if s.Pending+s.InFlight+s.DeadLetter != 0 {
		t.Fatalf("orphan item not dropped: %+v", s)
	}
}

func TestWorkerAcksTerminalFailure(t *testing.T) {
	q := openTestQueue(t)
	l := newFakeLedger(50)
	w := New(q, l, time.Minute, testLogger())

	pid := uuid.New()
	l.amounts[pid] = decimal.NewFromInt(100) // more than the balance
	enqueuePayment(t, q, pid, 100)

	drain(t, w, q)

	if got := l.applied[pid]; got != 1 {
		t.Fatalf("terminal failure retried: applied %d times", got)
	}
	// The ledger commits the failed status inside ApplyTransfer; the worker
	// must not mark it failed again.
	if l.failed[pid] != 0 {
		t.Fatalf("MarkPaymentFailed called %d times on terminal path", l.failed[pid])
	}
	s, _ := q.Stats(context.Background())
	if s.DeadLetter != 0 || s.Pending != 0 || s.InFlight != 0 {
		t.Fatalf("terminal failure left queue state: %+v", s)
	}
}

func TestWorkerRetriesTransientThenDeadLetters(t *testing.T) {
	q := openTestQueue(t)
	l := newFakeLedger(500)
	w := New(q, l, time.Minute, testLogger())

	pid := uuid.New()
	l.errFor[pid] = errors.New("connection reset")
	enqueuePayment(t, q, pid, 100)

	drain(t, w, q)

	// Initial delivery plus the full retry budget.
	if want := q.MaxRetries() + 1; l.applied[pid] != want {
		t.Fatalf("applied %d times, want %d", l.applied[pid], want)
	}
	if l.failed[pid] != q.MaxRetries()+1 {
		t.Fatalf("tentative failure marked %d times", l.failed[pid])
	}
	s, _ := q.Stats(context.Background())
	if s.DeadLetter != 1 || s.Pending != 0 || s.InFlight != 0 {
		t.Fatalf("expected single dead-lettered item: %+v", s)
	}
}

func TestWorkerRecoversAfterTransientFailure(t *testing.T) {
	q := openTestQueue(t)
	l := newFakeLedger(500)
	w := New(q, l, time.Minute, testLogger())

	pid := uuid.New()
	l.amounts[pid] = decimal.NewFromInt(100)
	l.errFor[pid] = errors.New("timeout")
	enqueuePayment(t, q, pid, 100)

	ctx := context.Background()
	d, err := q.Dequeue(ctx, time.Minute, 0)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	w.process(ctx, d)

	// Transport recovers before the retry is delivered.
	l.mu.Lock()
	delete(l.errFor, pid)
	l.mu.Unlock()

	drain(t, w, q)

	if !l.balance.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("balance %s after recovery, want 400", l.balance)
	}
	s, _ := q.Stats(ctx)
	if s.Pending+s.InFlight+s.DeadLetter != 0 {
		t.Fatalf("queue not drained: %+v", s)
	}
}

func TestWorkerDropsMalformedPaymentID(t *testing.T) {
	q := openTestQueue(t)
	l := newFakeLedger(0)
	w := New(q, l, time.Minute, testLogger())

	item := &queue.Item{PaymentID: "not-a-uuid", Payload: testPayload(10)}
	if _, err := q.Enqueue(context.Background(), item); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	drain(t, w, q)

	if len(l.applied) != 0 {
		t.Fatal("ledger touched for malformed id")
	}
	s, _ := q.Stats(context.Background())
	if s.Pending+s.InFlight+s.DeadLetter != 0 {
		t.Fatalf("malformed item not dropped: %+v", s)
	}
}

func TestConcurrentWorkersNeverOverdraw(t *testing.T) {
	q := openTestQueue(t)
	l := newFakeLedger(500)

	// Seven payments of 100 against 500: exactly five settle.
	for i := 0; i < 7; i++ {
		pid := uuid.New()
		l.amounts[pid] = decimal.NewFromInt(100)
		enqueuePayment(t, q, pid, 100)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := New(q, l, time.Minute, testLogger())
			_ = w.Run(ctx)
		}()
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		s, err := q.Stats(context.Background())
		if err != nil {
			t.Fatalf("stats: %v", err)
		}
		if s.Pending+s.InFlight == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("queue did not drain: %+v", s)
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	wg.Wait()

	if !l.balance.Equal(decimal.NewFromInt(0)) {
		t.Fatalf("balance %s, want 0", l.balance)
	}
	if l.balance.IsNegative() {
		t.Fatal("balance went negative")
	}
	settled := 0
	for _, n := range l.applied {
		if n != 1 {
			t.Fatalf("payment applied %d times", n)
		}
		settled++
	}
	if settled != 7 {
		t.Fatalf("applied %d payments, want 7", settled)
	}
}

func TestReaperRecoversExpiredLease(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	pid := uuid.New()
	enqueuePayment(t, q, pid, 100)
	if _, err := q.Dequeue(ctx, time.Millisecond, 0); err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	r := NewReaper(q, 10*time.Millisecond, testLogger())
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(runCtx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		s, err := q.Stats(ctx)
		if err != nil {
			t.Fatalf("stats: %v", err)
		}
		if s.Pending == 1 && s.InFlight == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("lease not recovered: %+v", s)
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
}

func TestMonitorSamplesDepths(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	enqueuePayment(t, q, uuid.New(), 100)

	var buf safeBuffer
	logger := log.NewLogger(log.WithOutput(log.NewWriterOutput(&buf)), log.WithFormatter(&log.JSONFormatter{}))
	m := NewMonitor(q, 10*time.Millisecond, logger)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Run(runCtx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for buf.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("monitor never logged a sample")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
}

type safeBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *safeBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}
