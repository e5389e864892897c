package ledger

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Zuzuna54/fintech-app-demo/internal/domain"
)

// Tests here need a real database. Set FINTECH_TEST_DATABASE_URL to run them:
//
//	FINTECH_TEST_DATABASE_URL=postgres://localhost:5432/fintech_test go test ./internal/ledger/
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("FINTECH_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("FINTECH_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.EnsureSchema(ctx))
	return s
}

func seedAccount(t *testing.T, s *Store, kind domain.AccountKind, balance int64, status domain.AccountStatus) uuid.UUID {
	t.Helper()
	a := &domain.Account{
		ID:            uuid.New(),
		Kind:          kind,
		Name:          "test account",
		AccountNumber: "000123456789",
		RoutingNumber: "021000021",
		Balance:       decimal.NewFromInt(balance),
		Status:        status,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, s.CreateAccount(context.Background(), a))
	return a.ID
}

func seedPayment(t *testing.T, s *Store, from, to uuid.UUID, amount int64, typ domain.PaymentType) uuid.UUID {
	t.Helper()
	p := &domain.Payment{
		ID:          uuid.New(),
		FromAccount: from,
		ToAccount:   to,
		Amount:      decimal.NewFromInt(amount),
		Status:      domain.PaymentPending,
		Type:        typ,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, s.CreatePayment(context.Background(), p))
	return p.ID
}

func TestApplyTransferMovesBalances(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ext := seedAccount(t, s, domain.AccountExternal, 500, domain.AccountActive)
	internal := seedAccount(t, s, domain.AccountInternal, 0, domain.AccountActive)
	pid := seedPayment(t, s, ext, internal, 125, domain.PaymentTypeACHDebit)

	require.NoError(t, s.ApplyTransfer(ctx, pid))

	from, err := s.GetAccount(ctx, ext, domain.AccountExternal)
	require.NoError(t, err)
	require.True(t, from.Balance.Equal(decimal.NewFromInt(375)), "source balance %s", from.Balance)

	to, err := s.GetAccount(ctx, internal, domain.AccountInternal)
	require.NoError(t, err)
	require.True(t, to.Balance.Equal(decimal.NewFromInt(125)), "destination balance %s", to.Balance)

	p, err := s.GetPayment(ctx, pid)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentCompleted, p.Status)
}

func TestApplyTransferCompletedIsNoOp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ext := seedAccount(t, s, domain.AccountExternal, 500, domain.AccountActive)
	internal := seedAccount(t, s, domain.AccountInternal, 0, domain.AccountActive)
	pid := seedPayment(t, s, ext, internal, 100, domain.PaymentTypeACHDebit)

	require.NoError(t, s.ApplyTransfer(ctx, pid))
	// Redelivery of an already settled payment must not move money again.
	require.NoError(t, s.ApplyTransfer(ctx, pid))

	from, err := s.GetAccount(ctx, ext, domain.AccountExternal)
	require.NoError(t, err)
	require.True(t, from.Balance.Equal(decimal.NewFromInt(400)), "balance %s", from.Balance)
}

func TestApplyTransferInsufficientFunds(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ext := seedAccount(t, s, domain.AccountExternal, 50, domain.AccountActive)
	internal := seedAccount(t, s, domain.AccountInternal, 0, domain.AccountActive)
	pid := seedPayment(t, s, ext, internal, 100, domain.PaymentTypeACHDebit)

	err := s.ApplyTransfer(ctx, pid)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.True(t, IsTerminal(err))

	p, err := s.GetPayment(ctx, pid)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentFailed, p.Status)

	from, err := s.GetAccount(ctx, ext, domain.AccountExternal)
	require.NoError(t, err)
	require.True(t, from.Balance.Equal(decimal.NewFromInt(50)), "balance moved: %s", from.Balance)
}

func TestApplyTransferInactiveAccount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ext := seedAccount(t, s, domain.AccountExternal, 500, domain.AccountSuspended)
	internal := seedAccount(t, s, domain.AccountInternal, 0, domain.AccountActive)
	pid := seedPayment(t, s, ext, internal, 100, domain.PaymentTypeACHDebit)

	err := s.ApplyTransfer(ctx, pid)
	require.ErrorIs(t, err, ErrAccountInactive)

	p, err := s.GetPayment(ctx, pid)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentFailed, p.Status)
}

func TestApplyTransferMissingAccount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	internal := seedAccount(t, s, domain.AccountInternal, 0, domain.AccountActive)
	pid := seedPayment(t, s, uuid.New(), internal, 100, domain.PaymentTypeACHDebit)

	err := s.ApplyTransfer(ctx, pid)
	require.ErrorIs(t, err, ErrAccountNotFound)

	p, err := s.GetPayment(ctx, pid)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentFailed, p.Status)
}

func TestApplyTransferMissingPayment(t *testing.T) {
	s := openTestStore(t)
	err := s.ApplyTransfer(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestIdempotencyKeyReuse(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	key := uuid.NewString()
	p := &domain.Payment{
		ID:             uuid.New(),
		FromAccount:    uuid.New(),
		ToAccount:      uuid.New(),
		Amount:         decimal.NewFromInt(10),
		Status:         domain.PaymentPending,
		Type:           domain.PaymentTypeBook,
		IdempotencyKey: key,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, s.CreatePayment(ctx, p))

	dup := *p
	dup.ID = uuid.New()
	require.ErrorIs(t, s.CreatePayment(ctx, &dup), ErrDuplicateIdempotency)

	found, err := s.FindPaymentByIdempotencyKey(ctx, key)
	require.NoError(t, err)
	require.Equal(t, p.ID, found.ID)
}

func TestConcurrentTransfersNeverOverdraw(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ext := seedAccount(t, s, domain.AccountExternal, 500, domain.AccountActive)
	internal := seedAccount(t, s, domain.AccountInternal, 0, domain.AccountActive)

	// Seven transfers of 100 against a balance of 500: exactly five settle.
	const n = 7
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = seedPayment(t, s, ext, internal, 100, domain.PaymentTypeACHDebit)
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.ApplyTransfer(ctx, ids[i])
		}(i)
	}
	wg.Wait()

	completed, failed := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			completed++
		case IsTerminal(err):
			failed++
		default:
			t.Fatalf("transient error: %v", err)
		}
	}
	require.Equal(t, 5, completed)
	require.Equal(t, 2, failed)

	from, err := s.GetAccount(ctx, ext, domain.AccountExternal)
	require.NoError(t, err)
	require.True(t, from.Balance.Equal(decimal.NewFromInt(0)), "source balance %s", from.Balance)

	to, err := s.GetAccount(ctx, internal, domain.AccountInternal)
	require.NoError(t, err)
	require.True(t, to.Balance.Equal(decimal.NewFromInt(500)), "destination balance %s", to.Balance)
}
