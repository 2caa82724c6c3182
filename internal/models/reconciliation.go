package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReconciliationStatus is the state of a bank-statement matching session.
type ReconciliationStatus string

const (
	ReconciliationInProgress ReconciliationStatus = "IN_PROGRESS"
	ReconciliationFinalized  ReconciliationStatus = "FINALIZED"
)

// LineStatus is the state of a single statement line within a session.
type LineStatus string

const (
	LineUnmatched LineStatus = "UNMATCHED"
	LineMatched   LineStatus = "MATCHED"
	LineExcluded  LineStatus = "EXCLUDED"
)

// Reconciliation is a bank-statement-vs-ledger matching session. Once
// FINALIZED neither the session nor its lines may change.
type Reconciliation struct {
	ID            string               `json:"id" db:"id"`
	AccountCode   string               `json:"accountCode" db:"account_code"`
	StatementDate time.Time            `json:"statementDate" db:"statement_date"`
	Status        ReconciliationStatus `json:"status" db:"status"`
	CreatedBy     string               `json:"createdBy" db:"created_by"`
	CreatedAt     time.Time            `json:"createdAt" db:"created_at"`
	FinalizedAt   *time.Time           `json:"finalizedAt,omitempty" db:"finalized_at"`
}

// ReconciliationLine is one imported bank-statement line, optionally linked
// to the ledger entry it was matched against.
type ReconciliationLine struct {
	ID               string          `json:"id" db:"id"`
	ReconciliationID string          `json:"reconciliationId" db:"reconciliation_id"`
	LineDate         time.Time       `json:"lineDate" db:"line_date"`
	Amount           decimal.Decimal `json:"amount" db:"amount"`
	Description      string          `json:"description" db:"description"`
	Reference        string          `json:"reference" db:"reference"`
	Status           LineStatus      `json:"status" db:"status"`
	LedgerEntryID    *string         `json:"ledgerEntryId,omitempty" db:"ledger_entry_id"`
}
