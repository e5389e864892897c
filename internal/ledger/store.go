package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Zuzuna54/fintech-app-demo/internal/domain"
)

var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountInactive      = errors.New("account not active")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrUnroutable           = errors.New("payment cannot be routed")
	ErrDuplicateIdempotency = errors.New("idempotency key already used")
)

// IsTerminal reports whether a settlement error is a business failure that no
// retry can fix. Terminal failures are acknowledged; everything else goes back
// to the queue.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrAccountInactive) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrUnroutable)
}

// Store is the Postgres-backed ledger: payments plus the two account books.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore builds a connection pool from a connection string and pings it.
func NewStore(ctx context.Context, connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("ledger: parse database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("ledger: create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ledger: ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewStoreWithPool wraps an existing pool. The caller keeps ownership.
func NewStoreWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping reports database reachability for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const paymentColumns = `id, from_account, to_account, amount::text, status, payment_type,
	description, source_routing_number, destination_routing_number,
	COALESCE(idempotency_key, ''), created_at, updated_at`

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	var amount string
	err := row.Scan(&p.ID, &p.FromAccount, &p.ToAccount, &amount, &p.Status, &p.Type,
		&p.Description, &p.SourceRoutingNumber, &p.DestinationRoutingNumber,
		&p.IdempotencyKey, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("ledger: scan payment: %w", err)
	}
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("ledger: parse amount %q: %w", amount, err)
	}
	return &p, nil
}

// GetPayment fetches a payment by id.
func (s *Store) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	return scanPayment(row)
}

// FindPaymentByIdempotencyKey returns the payment previously created under the
// key, or ErrPaymentNotFound when the key is unused.
func (s *Store) FindPaymentByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE idempotency_key = $1`, key)
	return scanPayment(row)
}

// CreatePayment inserts a new PENDING payment. A reused idempotency key maps
// the unique-violation onto ErrDuplicateIdempotency so callers can re-read.
func (s *Store) CreatePayment(ctx context.Context, p *domain.Payment) error {
	var key any
	if p.IdempotencyKey != "" {
		key = p.IdempotencyKey
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO payments (id, from_account, to_account, amount, status, payment_type,
			description, source_routing_number, destination_routing_number, idempotency_key,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`,
		p.ID, p.FromAccount, p.ToAccount, p.Amount.String(), p.Status, p.Type,
		p.Description, p.SourceRoutingNumber, p.DestinationRoutingNumber, key, p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateIdempotency
		}
		return fmt.Errorf("ledger: insert payment: %w", err)
	}
	return nil
}

// MarkPaymentFailed records a failure without touching a finished payment.
// A later successful settlement attempt flips the status back to completed.
func (s *Store) MarkPaymentFailed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE payments SET status = $1, updated_at = now()
		WHERE id = $2 AND status NOT IN ($3, $4)`,
		domain.PaymentFailed, id, domain.PaymentCompleted, domain.PaymentCancelled)
	if err != nil {
		return fmt.Errorf("ledger: mark payment failed: %w", err)
	}
	return nil
}

func accountTable(kind domain.AccountKind) string {
	if kind == domain.AccountInternal {
		return "internal_organization_bank_accounts"
	}
	return "external_organization_bank_accounts"
}

// GetAccount fetches one account from the book for its kind.
func (s *Store) GetAccount(ctx context.Context, id uuid.UUID, kind domain.AccountKind) (*domain.Account, error) {
	var a domain.Account
	var balance string
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, account_number, routing_number, balance::text, status, created_at, updated_at
		FROM `+accountTable(kind)+` WHERE id = $1`, id).
		Scan(&a.ID, &a.Name, &a.AccountNumber, &a.RoutingNumber, &balance, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("ledger: scan account: %w", err)
	}
	a.Kind = kind
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("ledger: parse balance %q: %w", balance, err)
	}
	return &a, nil
}

// CreateAccount inserts an account into the book for its kind.
func (s *Store) CreateAccount(ctx context.Context, a *domain.Account) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO `+accountTable(a.Kind)+` (id, name, account_number, routing_number, balance, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		a.ID, a.Name, a.AccountNumber, a.RoutingNumber, a.Balance.String(), a.Status, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("ledger: insert account: %w", err)
	}
	return nil
}
