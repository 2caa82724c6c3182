package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/keystonepm/backoffice/internal/models"
)

func TestAccountService_CreateAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAccountService(db)
	ctx := context.Background()

	t.Run("creates an active account", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO accounts").
			WillReturnResult(sqlmock.NewResult(1, 1))

		account, err := service.CreateAccount(ctx, &models.Account{
			Code:          "4200",
			Name:          "Application Fee Income",
			Type:          models.AccountIncome,
			NormalBalance: models.Credit,
		})
		assert.NoError(t, err)
		assert.True(t, account.Active)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects a bad normal balance", func(t *testing.T) {
		_, err := service.CreateAccount(ctx, &models.Account{
			Code:          "4200",
			Name:          "Application Fee Income",
			Type:          models.AccountIncome,
			NormalBalance: "CREDIT",
		})
		assert.Error(t, err)
		assert.Equal(t, KindValidation, ErrKind(err))
	})

	t.Run("duplicate code is invalid state", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO accounts").
			WillReturnError(&pq.Error{Code: "23505"})

		_, err := service.CreateAccount(ctx, &models.Account{
			Code:          "1000",
			Name:          "Cash",
			Type:          models.AccountAsset,
			NormalBalance: models.Debit,
		})
		assert.Error(t, err)
		assert.Equal(t, KindInvalidState, ErrKind(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountService_GetAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAccountService(db)
	ctx := context.Background()

	t.Run("unknown code is a validation error", func(t *testing.T) {
		mock.ExpectQuery("SELECT code, name, type, normal_balance, active, created_at").
			WithArgs("9999").
			WillReturnRows(sqlmock.NewRows([]string{"code", "name", "type", "normal_balance", "active", "created_at"}))

		_, err := service.GetAccount(ctx, "9999")
		assert.Error(t, err)
		assert.Equal(t, KindValidation, ErrKind(err))
		assert.Contains(t, err.Error(), "unknown account code")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns the chart row", func(t *testing.T) {
		mock.ExpectQuery("SELECT code, name, type, normal_balance, active, created_at").
			WithArgs("1000").
			WillReturnRows(accountRows("1000", "Cash", models.AccountAsset, models.Debit, true))

		account, err := service.GetAccount(ctx, "1000")
		assert.NoError(t, err)
		assert.Equal(t, models.AccountAsset, account.Type)
		assert.Equal(t, models.Debit, account.NormalBalance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountService_DeactivateAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAccountService(db)
	ctx := context.Background()

	t.Run("flips the active flag", func(t *testing.T) {
		mock.ExpectExec("UPDATE accounts SET active = false").
			WithArgs("5100").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, service.DeactivateAccount(ctx, "5100"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown account is not found", func(t *testing.T) {
		mock.ExpectExec("UPDATE accounts SET active = false").
			WithArgs("9999").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := service.DeactivateAccount(ctx, "9999")
		assert.Error(t, err)
		assert.Equal(t, KindNotFound, ErrKind(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountService_ListAccounts(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAccountService(db)

	mock.ExpectQuery("SELECT code, name, type, normal_balance, active, created_at").
		WillReturnRows(sqlmock.NewRows([]string{"code", "name", "type", "normal_balance", "active", "created_at"}).
			AddRow("1000", "Cash", "ASSET", "DR", true, time.Now()).
			AddRow("4000", "Rent Income", "INCOME", "CR", true, time.Now()))

	accounts, err := service.ListAccounts(context.Background(), false)
	assert.NoError(t, err)
	assert.Len(t, accounts, 2)
	assert.Equal(t, "1000", accounts[0].Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
