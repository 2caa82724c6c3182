package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/keystonepm/backoffice/internal/models"
)

func TestReportService_BalanceSheet(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewReportService(NewAccountService(db), NewLedgerService(db))
	asOf := time.Date(2026, 7, 31, 23, 59, 59, 0, time.UTC)

	mock.ExpectQuery("SELECT code, name, type, normal_balance, active, created_at").
		WillReturnRows(sqlmock.NewRows([]string{"code", "name", "type", "normal_balance", "active", "created_at"}).
			AddRow("1000", "Cash", "ASSET", "DR", true, time.Now()).
			AddRow("2100", "Security Deposits", "LIABILITY", "CR", true, time.Now()).
			AddRow("4000", "Rent Income", "INCOME", "CR", true, time.Now()))

	// Cash: balance lookup is account row plus entry replay.
	mock.ExpectQuery("SELECT code, name, type, normal_balance, active, created_at").
		WithArgs("1000").
		WillReturnRows(accountRows("1000", "Cash", models.AccountAsset, models.Debit, true))
	mock.ExpectQuery("SELECT amount, direction").
		WithArgs("1000", string(models.EntryPosted), asOf).
		WillReturnRows(sqlmock.NewRows([]string{"amount", "direction"}).
			AddRow("5000.00", "DR"))

	// Security Deposits
	mock.ExpectQuery("SELECT code, name, type, normal_balance, active, created_at").
		WithArgs("2100").
		WillReturnRows(accountRows("2100", "Security Deposits", models.AccountLiability, models.Credit, true))
	mock.ExpectQuery("SELECT amount, direction").
		WithArgs("2100", string(models.EntryPosted), asOf).
		WillReturnRows(sqlmock.NewRows([]string{"amount", "direction"}).
			AddRow("3000.00", "CR"))

	sheet, err := service.BalanceSheet(context.Background(), asOf)
	assert.NoError(t, err)
	assert.Len(t, sheet.Assets, 1)
	assert.Len(t, sheet.Liabilities, 1)
	assert.Empty(t, sheet.Equity)
	assert.Equal(t, "5000.00", sheet.TotalAssets.StringFixed(2))
	assert.Equal(t, "3000.00", sheet.TotalLiabilities.StringFixed(2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportService_IncomeStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewReportService(NewAccountService(db), NewLedgerService(db))
	asOf := time.Date(2026, 7, 31, 23, 59, 59, 0, time.UTC)

	mock.ExpectQuery("SELECT code, name, type, normal_balance, active, created_at").
		WillReturnRows(sqlmock.NewRows([]string{"code", "name", "type", "normal_balance", "active", "created_at"}).
			AddRow("4000", "Rent Income", "INCOME", "CR", true, time.Now()).
			AddRow("5000", "Repairs & Maintenance", "EXPENSE", "DR", true, time.Now()))

	mock.ExpectQuery("SELECT code, name, type, normal_balance, active, created_at").
		WithArgs("4000").
		WillReturnRows(accountRows("4000", "Rent Income", models.AccountIncome, models.Credit, true))
	mock.ExpectQuery("SELECT amount, direction").
		WithArgs("4000", string(models.EntryPosted), asOf).
		WillReturnRows(sqlmock.NewRows([]string{"amount", "direction"}).
			AddRow("4500.00", "CR"))

	mock.ExpectQuery("SELECT code, name, type, normal_balance, active, created_at").
		WithArgs("5000").
		WillReturnRows(accountRows("5000", "Repairs & Maintenance", models.AccountExpense, models.Debit, true))
	mock.ExpectQuery("SELECT amount, direction").
		WithArgs("5000", string(models.EntryPosted), asOf).
		WillReturnRows(sqlmock.NewRows([]string{"amount", "direction"}).
			AddRow("230.50", "DR"))

	statement, err := service.IncomeStatement(context.Background(), asOf)
	assert.NoError(t, err)
	assert.Equal(t, "4500.00", statement.TotalIncome.StringFixed(2))
	assert.Equal(t, "230.50", statement.TotalExpenses.StringFixed(2))
	assert.Equal(t, "4269.50", statement.NetIncome.StringFixed(2))
	assert.NoError(t, mock.ExpectationsWereMet())
}
