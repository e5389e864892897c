package queue

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Zuzuna54/fintech-app-demo/internal/domain"
)

// Payload is the settlement snapshot carried by a queue item. It is a
// projection of the Payment row at enqueue time, not a live join; the ledger
// store remains authoritative on any conflict.
type Payload struct {
	Amount      decimal.Decimal    `json:"amount"`
	FromAccount string             `json:"from_account"`
	ToAccount   string             `json:"to_account"`
	PaymentType domain.PaymentType `json:"payment_type"`
}

// Item is the broker wire format for one unit of settlement work.
type Item struct {
	PaymentID string    `json:"payment_id"`
	Payload   Payload   `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
	Retries   int       `json:"retries"`
}

// MarshalItem encodes an item into the checksummed record format stored as
// the Pebble value.
func MarshalItem(item *Item) ([]byte, error) {
	body, err := json.Marshal(item)
	if err != nil {
		return nil, err
	}
	return EncodeRecord(body), nil
}

// UnmarshalItem decodes a stored record back into an item.
func UnmarshalItem(value []byte) (*Item, error) {
	body, ok := DecodeRecord(value)
	if !ok {
		return nil, ErrCorruptRecord
	}
	var item Item
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, err
	}
	return &item, nil
}
