package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/keystonepm/backoffice/internal/models"
)

// dbtx is the subset of database/sql shared by *sql.DB and *sql.Tx, so the
// posting helpers run inside or outside a transaction unchanged.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// AccountService is the chart-of-accounts registry. Accounts are a leaf
// dependency of every posting path.
type AccountService struct {
	db *sql.DB
}

func NewAccountService(db *sql.DB) *AccountService {
	return &AccountService{db: db}
}

func getAccount(ctx context.Context, q dbtx, code string) (*models.Account, error) {
	var a models.Account
	err := q.QueryRowContext(ctx, `
		SELECT code, name, type, normal_balance, active, created_at
		FROM accounts
		WHERE code = $1`, code).
		Scan(&a.Code, &a.Name, &a.Type, &a.NormalBalance, &a.Active, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, validationErr("unknown account code: %s", code)
	}
	if err != nil {
		return nil, storageErr("account lookup failed", err)
	}
	return &a, nil
}

func (s *AccountService) GetAccount(ctx context.Context, code string) (*models.Account, error) {
	return getAccount(ctx, s.db, code)
}

func (s *AccountService) ListAccounts(ctx context.Context, includeInactive bool) ([]models.Account, error) {
	query := `
		SELECT code, name, type, normal_balance, active, created_at
		FROM accounts`
	if !includeInactive {
		query += ` WHERE active`
	}
	query += ` ORDER BY code`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, storageErr("account listing failed", err)
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.Code, &a.Name, &a.Type, &a.NormalBalance, &a.Active, &a.CreatedAt); err != nil {
			return nil, storageErr("account scan failed", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *AccountService) CreateAccount(ctx context.Context, a *models.Account) (*models.Account, error) {
	if a.NormalBalance != models.Debit && a.NormalBalance != models.Credit {
		return nil, validationErr("normal balance must be DR or CR")
	}
	a.Active = true
	a.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (code, name, type, normal_balance, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.Code, a.Name, a.Type, a.NormalBalance, a.Active, a.CreatedAt)
	if isUniqueViolation(err) {
		return nil, invalidStateErr("account %s already exists", a.Code)
	}
	if err != nil {
		return nil, storageErr("account insert failed", err)
	}
	return a, nil
}

// DeactivateAccount flips the active flag. Accounts are never deleted.
func (s *AccountService) DeactivateAccount(ctx context.Context, code string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET active = false WHERE code = $1`, code)
	if err != nil {
		return storageErr("account update failed", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFoundErr("account not found: %s", code)
	}
	return nil
}
