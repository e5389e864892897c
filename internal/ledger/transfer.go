package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/Zuzuna54/fintech-app-demo/internal/domain"
)

// lockedAccount is an account row held under FOR UPDATE inside a transfer tx.
type lockedAccount struct {
	id      uuid.UUID
	status  domain.AccountStatus
	balance decimal.Decimal
}

// ApplyTransfer settles one payment: debit the source account, credit the
// destination, and mark the payment completed, all in a single transaction.
//
// Terminal business failures (ErrAccountNotFound, ErrAccountInactive,
// ErrInsufficientFunds) mark the payment failed, commit that, and return the
// sentinel; the caller should acknowledge the work item. Any other error is
// transient: the transaction rolls back and the item should be retried.
// Settling an already completed or cancelled payment is a no-op.
func (s *Store) ApplyTransfer(ctx context.Context, paymentID uuid.UUID) error {
	// Read committed: after a lock wait the re-read sees the committed balance,
	// so concurrent debits against one account serialize instead of erroring.
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("ledger: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := scanPayment(tx.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, paymentID))
	if err != nil {
		return err
	}
	if p.Status == domain.PaymentCompleted || p.Status == domain.PaymentCancelled {
		return nil
	}

	route, err := p.Type.Route()
	if err != nil {
		return s.failAndCommit(ctx, tx, paymentID, fmt.Errorf("%w: %v", ErrUnroutable, err))
	}
	fromTable := accountTable(route.Source)
	toTable := accountTable(route.Destination)

	// Lock both accounts in id order so concurrent transfers over the same
	// pair cannot deadlock.
	first, second := p.FromAccount, p.ToAccount
	firstTable, secondTable := fromTable, toTable
	if strings.Compare(second.String(), first.String()) < 0 {
		first, second = second, first
		firstTable, secondTable = secondTable, firstTable
	}

	a1, err := lockAccount(ctx, tx, firstTable, first)
	if err != nil {
		return s.settleLockErr(ctx, tx, paymentID, err)
	}
	a2, err := lockAccount(ctx, tx, secondTable, second)
	if err != nil {
		return s.settleLockErr(ctx, tx, paymentID, err)
	}

	from, to := a1, a2
	if a1.id != p.FromAccount {
		from, to = a2, a1
	}

	if from.status != domain.AccountActive || to.status != domain.AccountActive {
		return s.failAndCommit(ctx, tx, paymentID, ErrAccountInactive)
	}
	if from.balance.LessThan(p.Amount) {
		return s.failAndCommit(ctx, tx, paymentID, ErrInsufficientFunds)
	}

	// The balance guard re-checks under the row lock; it cannot fire after the
	// comparison above but keeps the debit conditional at the SQL level.
	tag, err := tx.Exec(ctx,
		`UPDATE `+fromTable+` SET balance = balance - $1, updated_at = now()
		 WHERE id = $2 AND balance >= $1`, p.Amount.String(), p.FromAccount)
	if err != nil {
		return fmt.Errorf("ledger: debit: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return s.failAndCommit(ctx, tx, paymentID, ErrInsufficientFunds)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE `+toTable+` SET balance = balance + $1, updated_at = now() WHERE id = $2`,
		p.Amount.String(), p.ToAccount); err != nil {
		return fmt.Errorf("ledger: credit: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE payments SET status = $1, updated_at = now() WHERE id = $2`,
		domain.PaymentCompleted, paymentID); err != nil {
		return fmt.Errorf("ledger: complete payment: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ledger: commit transfer: %w", err)
	}
	return nil
}

func lockAccount(ctx context.Context, tx pgx.Tx, table string, id uuid.UUID) (*lockedAccount, error) {
	var a lockedAccount
	var balance string
	err := tx.QueryRow(ctx,
		`SELECT id, status, balance::text FROM `+table+` WHERE id = $1 FOR UPDATE`, id).
		Scan(&a.id, &a.status, &balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("ledger: lock account: %w", err)
	}
	if a.balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("ledger: parse balance %q: %w", balance, err)
	}
	return &a, nil
}

// settleLockErr maps a lock failure onto the terminal or transient path.
func (s *Store) settleLockErr(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID, err error) error {
	if errors.Is(err, ErrAccountNotFound) {
		return s.failAndCommit(ctx, tx, paymentID, err)
	}
	return err
}

// failAndCommit records a terminal settlement failure inside the open
// transaction, commits it, and returns the business error.
func (s *Store) failAndCommit(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID, cause error) error {
	if _, err := tx.Exec(ctx,
		`UPDATE payments SET status = $1, updated_at = now() WHERE id = $2`,
		domain.PaymentFailed, paymentID); err != nil {
		return fmt.Errorf("ledger: mark payment failed: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ledger: commit failure status: %w", err)
	}
	return cause
}
