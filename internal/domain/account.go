package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountKind distinguishes the two account tables a payment leg may
// resolve against.
type AccountKind string

// Account kinds.
const (
	AccountInternal AccountKind = "internal"
	AccountExternal AccountKind = "external"
)

// AccountStatus is the lifecycle state of a bank account.
type AccountStatus string

// Account lifecycle states. Only active accounts may be debited.
const (
	AccountPending   AccountStatus = "pending"
	AccountActive    AccountStatus = "active"
	AccountSuspended AccountStatus = "suspended"
	AccountClosed    AccountStatus = "closed"
)

// Account is one side of a transfer, internal or external. Balances are
// mutated only by the settlement worker's ledger transaction and never go
// negative.
type Account struct {
	ID            uuid.UUID       `json:"id"`
	Kind          AccountKind     `json:"kind"`
	Name          string          `json:"name"`
	AccountNumber string          `json:"account_number"`
	RoutingNumber string          `json:"routing_number"`
	Balance       decimal.Decimal `json:"balance"`
	Status        AccountStatus   `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
