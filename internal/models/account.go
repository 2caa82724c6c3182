package models

import "time"

// AccountType classifies an account on the chart of accounts.
type AccountType string

const (
	AccountAsset     AccountType = "ASSET"
	AccountLiability AccountType = "LIABILITY"
	AccountEquity    AccountType = "EQUITY"
	AccountIncome    AccountType = "INCOME"
	AccountExpense   AccountType = "EXPENSE"
)

// Direction is a debit/credit leg direction.
type Direction string

const (
	Debit  Direction = "DR"
	Credit Direction = "CR"
)

// Account is one row on the chart of accounts. Accounts are created once and
// deactivated rather than deleted; Active controls visibility only.
type Account struct {
	Code          string      `json:"code" db:"code" validate:"required"`
	Name          string      `json:"name" db:"name" validate:"required"`
	Type          AccountType `json:"type" db:"type" validate:"required,oneof=ASSET LIABILITY EQUITY INCOME EXPENSE"`
	NormalBalance Direction   `json:"normalBalance" db:"normal_balance" validate:"required,oneof=DR CR"`
	Active        bool        `json:"active" db:"active"`
	CreatedAt     time.Time   `json:"createdAt" db:"created_at"`
}

// Well-known system accounts referenced by the posting paths.
const (
	AccountCash               = "1000"
	AccountAccountsReceivable = "1200"
	AccountSecurityDeposits   = "2100"
	AccountRentIncome         = "4000"
)
