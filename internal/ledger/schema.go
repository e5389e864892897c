package ledger

import (
	"context"
	"fmt"
)

// Schema holds the DDL for the ledger tables. Amounts are NUMERIC(20,2); the
// two account books are separate tables keyed by UUID.
const Schema = `
CREATE TABLE IF NOT EXISTS payments (
    id                         UUID PRIMARY KEY,
    from_account               UUID NOT NULL,
    to_account                 UUID NOT NULL,
    amount                     NUMERIC(20,2) NOT NULL CHECK (amount > 0),
    status                     TEXT NOT NULL DEFAULT 'pending',
    payment_type               TEXT NOT NULL,
    description                TEXT NOT NULL DEFAULT '',
    source_routing_number      TEXT NOT NULL DEFAULT '',
    destination_routing_number TEXT NOT NULL DEFAULT '',
    idempotency_key            TEXT UNIQUE,
    created_at                 TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at                 TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS payments_status_idx ON payments (status);

CREATE TABLE IF NOT EXISTS internal_organization_bank_accounts (
    id             UUID PRIMARY KEY,
    name           TEXT NOT NULL DEFAULT '',
    account_number TEXT NOT NULL DEFAULT '',
    routing_number TEXT NOT NULL DEFAULT '',
    balance        NUMERIC(20,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
    status         TEXT NOT NULL DEFAULT 'pending',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS external_organization_bank_accounts (
    id             UUID PRIMARY KEY,
    name           TEXT NOT NULL DEFAULT '',
    account_number TEXT NOT NULL DEFAULT '',
    routing_number TEXT NOT NULL DEFAULT '',
    balance        NUMERIC(20,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
    status         TEXT NOT NULL DEFAULT 'pending',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// EnsureSchema creates the ledger tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ledger: ensure schema: %w", err)
	}
	return nil
}
