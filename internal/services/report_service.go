package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/keystonepm/backoffice/internal/models"
)

// ReportService builds read-only financial reports. Every figure comes from
// the Balance Calculator in LedgerService; no report reimplements the sign
// convention and none of them write.
type ReportService struct {
	accounts *AccountService
	ledger   *LedgerService
}

func NewReportService(accounts *AccountService, ledger *LedgerService) *ReportService {
	return &ReportService{accounts: accounts, ledger: ledger}
}

// AccountBalance is one report row.
type AccountBalance struct {
	Code    string          `json:"code"`
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
}

// BalanceSheet groups asset, liability and equity balances as of a date.
type BalanceSheet struct {
	AsOf             time.Time        `json:"asOf"`
	Assets           []AccountBalance `json:"assets"`
	Liabilities      []AccountBalance `json:"liabilities"`
	Equity           []AccountBalance `json:"equity"`
	TotalAssets      decimal.Decimal  `json:"totalAssets"`
	TotalLiabilities decimal.Decimal  `json:"totalLiabilities"`
	TotalEquity      decimal.Decimal  `json:"totalEquity"`
}

// IncomeStatement nets income against expenses as of a date.
type IncomeStatement struct {
	AsOf          time.Time        `json:"asOf"`
	Income        []AccountBalance `json:"income"`
	Expenses      []AccountBalance `json:"expenses"`
	TotalIncome   decimal.Decimal  `json:"totalIncome"`
	TotalExpenses decimal.Decimal  `json:"totalExpenses"`
	NetIncome     decimal.Decimal  `json:"netIncome"`
}

func (s *ReportService) balancesByType(ctx context.Context, asOf time.Time, want map[models.AccountType][]AccountBalance) (map[models.AccountType]decimal.Decimal, error) {
	accounts, err := s.accounts.ListAccounts(ctx, false)
	if err != nil {
		return nil, err
	}

	totals := map[models.AccountType]decimal.Decimal{}
	for _, a := range accounts {
		if _, tracked := want[a.Type]; !tracked {
			continue
		}
		balance, err := s.ledger.GetAccountBalance(ctx, a.Code, &asOf)
		if err != nil {
			return nil, err
		}
		want[a.Type] = append(want[a.Type], AccountBalance{Code: a.Code, Name: a.Name, Balance: balance})
		totals[a.Type] = totals[a.Type].Add(balance)
	}
	return totals, nil
}

func (s *ReportService) BalanceSheet(ctx context.Context, asOf time.Time) (*BalanceSheet, error) {
	want := map[models.AccountType][]AccountBalance{
		models.AccountAsset:     {},
		models.AccountLiability: {},
		models.AccountEquity:    {},
	}
	totals, err := s.balancesByType(ctx, asOf, want)
	if err != nil {
		return nil, err
	}
	return &BalanceSheet{
		AsOf:             asOf,
		Assets:           want[models.AccountAsset],
		Liabilities:      want[models.AccountLiability],
		Equity:           want[models.AccountEquity],
		TotalAssets:      totals[models.AccountAsset],
		TotalLiabilities: totals[models.AccountLiability],
		TotalEquity:      totals[models.AccountEquity],
	}, nil
}

func (s *ReportService) IncomeStatement(ctx context.Context, asOf time.Time) (*IncomeStatement, error) {
	want := map[models.AccountType][]AccountBalance{
		models.AccountIncome:  {},
		models.AccountExpense: {},
	}
	totals, err := s.balancesByType(ctx, asOf, want)
	if err != nil {
		return nil, err
	}
	return &IncomeStatement{
		AsOf:          asOf,
		Income:        want[models.AccountIncome],
		Expenses:      want[models.AccountExpense],
		TotalIncome:   totals[models.AccountIncome],
		TotalExpenses: totals[models.AccountExpense],
		NetIncome:     totals[models.AccountIncome].Sub(totals[models.AccountExpense]),
	}, nil
}
