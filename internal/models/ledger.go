package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryStatus is the lifecycle state of a ledger entry. Entries are never
// physically deleted; a correction flips POSTED to VOID.
type EntryStatus string

const (
	EntryPosted EntryStatus = "POSTED"
	EntryVoid   EntryStatus = "VOID"
)

// LedgerEntry is the atomic unit of the ledger. Balance is a property of the
// transaction that produced a set of entries, not of a single row.
type LedgerEntry struct {
	ID             string          `json:"id" db:"id"`
	AccountCode    string          `json:"accountCode" db:"account_code"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	Direction      Direction       `json:"direction" db:"direction"`
	Status         EntryStatus     `json:"status" db:"status"`
	IdempotencyKey string          `json:"idempotencyKey" db:"idempotency_key"`
	LeaseID        *int64          `json:"leaseId,omitempty" db:"lease_id"`
	EntryDate      time.Time       `json:"entryDate" db:"entry_date"`
	Description    string          `json:"description" db:"description"`
	PostedBy       string          `json:"postedBy" db:"posted_by"`
	VoidReason     *string         `json:"voidReason,omitempty" db:"void_reason"`
	VoidedBy       *string         `json:"voidedBy,omitempty" db:"voided_by"`
	VoidedAt       *time.Time      `json:"voidedAt,omitempty" db:"voided_at"`
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
}

// EntryPair is the result of a double-entry posting: one debit leg and one
// credit leg for the same amount.
type EntryPair struct {
	Debit  *LedgerEntry `json:"debit"`
	Credit *LedgerEntry `json:"credit"`
}
