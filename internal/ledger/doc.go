// Package ledger is the Postgres source of truth for payments and account
// balances. Settlement happens in ApplyTransfer: one transaction locks the
// payment and both account rows in deterministic order, checks status and
// funds, applies the debit and credit, and marks the payment completed.
//
// Business failures are terminal and split from transport failures: the
// former commit a failed payment status and return a sentinel error, the
// latter roll back so the work item can be retried.
package ledger
