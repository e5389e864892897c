package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// The queue wire format carries amounts as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// PaymentStatus is the lifecycle state of a payment.
type PaymentStatus string

// Payment lifecycle states.
const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentCancelled  PaymentStatus = "cancelled"
)

// PaymentType selects which side of a payment is the external account.
type PaymentType string

// Supported payment types.
const (
	PaymentTypeACHDebit  PaymentType = "ach_debit"
	PaymentTypeACHCredit PaymentType = "ach_credit"
	PaymentTypeBook      PaymentType = "book"
)

// Route describes which account table each leg of a payment resolves
// against. It is derived once from the payment type at settlement time.
type Route struct {
	Source      AccountKind
	Destination AccountKind
}

// Route resolves the payment type into account legs: ach_debit pulls from an
// external account into an internal one, ach_credit pushes the other way,
// and book moves between two internal accounts.
func (t PaymentType) Route() (Route, error) {
	switch t {
	case PaymentTypeACHDebit:
		return Route{Source: AccountExternal, Destination: AccountInternal}, nil
	case PaymentTypeACHCredit:
		return Route{Source: AccountInternal, Destination: AccountExternal}, nil
	case PaymentTypeBook:
		return Route{Source: AccountInternal, Destination: AccountInternal}, nil
	default:
		return Route{}, fmt.Errorf("unknown payment type %q", string(t))
	}
}

// Payment is the persistent record of a money movement request. It is created
// pending by the accepting API and moved to completed or failed exactly once
// by the settlement worker.
type Payment struct {
	ID                       uuid.UUID       `json:"id"`
	FromAccount              uuid.UUID       `json:"from_account"`
	ToAccount                uuid.UUID       `json:"to_account"`
	Amount                   decimal.Decimal `json:"amount"`
	Status                   PaymentStatus   `json:"status"`
	Type                     PaymentType     `json:"payment_type"`
	Description              string          `json:"description,omitempty"`
	SourceRoutingNumber      string          `json:"source_routing_number"`
	DestinationRoutingNumber string          `json:"destination_routing_number"`
	IdempotencyKey           string          `json:"idempotency_key"`
	CreatedAt                time.Time       `json:"created_at"`
	UpdatedAt                time.Time       `json:"updated_at"`
}
