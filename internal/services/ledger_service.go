package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/keystonepm/backoffice/internal/models"
)

// LedgerService is the double-entry posting core: entry validation and
// insertion, idempotency enforcement, atomic multi-entry transactions, voiding
// and balance derivation. The ledger is append-only; this service exposes no
// delete operation, only VoidLedgerEntry.
type LedgerService struct {
	db *sql.DB
}

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{db: db}
}

// NewEntry is the input to a single-leg posting.
type NewEntry struct {
	AccountCode    string           `json:"accountCode" validate:"required"`
	Amount         decimal.Decimal  `json:"amount" validate:"required"`
	Direction      models.Direction `json:"direction" validate:"required,oneof=DR CR"`
	Description    string           `json:"description" validate:"required"`
	EntryDate      time.Time        `json:"entryDate"`
	LeaseID        *int64           `json:"leaseId,omitempty"`
	PostedBy       string           `json:"postedBy" validate:"required"`
	IdempotencyKey string           `json:"idempotencyKey,omitempty"`
}

// DoubleEntry is the input to a balanced two-leg posting.
type DoubleEntry struct {
	DebitAccount  string          `json:"debitAccount" validate:"required"`
	CreditAccount string          `json:"creditAccount" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"required"`
	Description   string          `json:"description" validate:"required"`
	EntryDate     time.Time       `json:"entryDate"`
	LeaseID       *int64          `json:"leaseId,omitempty"`
	PostedBy      string          `json:"postedBy" validate:"required"`
	DebitKey      string          `json:"debitKey,omitempty"`
	CreditKey     string          `json:"creditKey,omitempty"`
}

// WithTransaction runs fn inside one database transaction: every leg commits
// or none does. The underlying error from fn is returned unchanged.
func (s *LedgerService) WithTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storageErr("failed to commit transaction", err)
	}
	return nil
}

// PostEntry validates and inserts a single entry in its own transaction.
func (s *LedgerService) PostEntry(ctx context.Context, in NewEntry) (*models.LedgerEntry, error) {
	var entry *models.LedgerEntry
	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		entry, err = s.PostEntryTx(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// PostEntryTx inserts one POSTED row inside the caller's transaction. The
// account must resolve and be active, the amount must be positive, and the
// idempotency key (supplied or derived) must be unused.
func (s *LedgerService) PostEntryTx(ctx context.Context, tx *sql.Tx, in NewEntry) (*models.LedgerEntry, error) {
	if !in.Amount.IsPositive() {
		return nil, validationErr("amount must be positive, got %s", in.Amount)
	}
	if in.Direction != models.Debit && in.Direction != models.Credit {
		return nil, validationErr("direction must be DR or CR, got %q", in.Direction)
	}
	if in.EntryDate.IsZero() {
		in.EntryDate = time.Now()
	}

	account, err := getAccount(ctx, tx, in.AccountCode)
	if err != nil {
		return nil, err
	}
	if !account.Active {
		return nil, invalidStateErr("account %s is inactive", account.Code)
	}

	key := in.IdempotencyKey
	if key == "" {
		key = ManualEntryKey(in.AccountCode, in.Amount, in.Direction, in.EntryDate, in.Description, in.PostedBy)
	}

	entry := &models.LedgerEntry{
		ID:             uuid.New().String(),
		AccountCode:    in.AccountCode,
		Amount:         in.Amount,
		Direction:      in.Direction,
		Status:         models.EntryPosted,
		IdempotencyKey: key,
		LeaseID:        in.LeaseID,
		EntryDate:      in.EntryDate,
		Description:    in.Description,
		PostedBy:       in.PostedBy,
		CreatedAt:      time.Now(),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_entries
		(id, account_code, amount, direction, status, idempotency_key, lease_id, entry_date, description, posted_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.ID, entry.AccountCode, entry.Amount, entry.Direction, entry.Status,
		entry.IdempotencyKey, entry.LeaseID, entry.EntryDate, entry.Description,
		entry.PostedBy, entry.CreatedAt)
	if isUniqueViolation(err) {
		return nil, duplicateErr(key)
	}
	if err != nil {
		return nil, storageErr("ledger insert failed", err)
	}

	log.Printf("[LEDGER] Posted %s %s to %s (%s) key=%s",
		entry.Direction, entry.Amount, entry.AccountCode, entry.Description, key)
	return entry, nil
}

// PostDoubleEntry posts a balanced debit/credit pair in one transaction.
func (s *LedgerService) PostDoubleEntry(ctx context.Context, in DoubleEntry) (*models.EntryPair, error) {
	var pair *models.EntryPair
	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		pair, err = s.PostDoubleEntryTx(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// PostDoubleEntryTx posts both legs inside the caller's transaction. Any
// failure on either leg aborts both.
func (s *LedgerService) PostDoubleEntryTx(ctx context.Context, tx *sql.Tx, in DoubleEntry) (*models.EntryPair, error) {
	if in.DebitAccount == in.CreditAccount {
		return nil, validationErr("debit and credit accounts must differ")
	}

	debit, err := s.PostEntryTx(ctx, tx, NewEntry{
		AccountCode:    in.DebitAccount,
		Amount:         in.Amount,
		Direction:      models.Debit,
		Description:    in.Description,
		EntryDate:      in.EntryDate,
		LeaseID:        in.LeaseID,
		PostedBy:       in.PostedBy,
		IdempotencyKey: in.DebitKey,
	})
	if err != nil {
		return nil, err
	}

	credit, err := s.PostEntryTx(ctx, tx, NewEntry{
		AccountCode:    in.CreditAccount,
		Amount:         in.Amount,
		Direction:      models.Credit,
		Description:    in.Description,
		EntryDate:      in.EntryDate,
		LeaseID:        in.LeaseID,
		PostedBy:       in.PostedBy,
		IdempotencyKey: in.CreditKey,
	})
	if err != nil {
		return nil, err
	}

	return &models.EntryPair{Debit: debit, Credit: credit}, nil
}

// VoidLedgerEntry marks a POSTED entry VOID in place, recording reason and
// actor. There is no physical delete; void is the only reversal.
func (s *LedgerService) VoidLedgerEntry(ctx context.Context, entryID, reason, voidedBy string) (*models.LedgerEntry, error) {
	if reason == "" {
		return nil, validationErr("void reason is required")
	}

	var entry *models.LedgerEntry
	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE ledger_entries
			SET status = $2, void_reason = $3, voided_by = $4, voided_at = NOW()
			WHERE id = $1 AND status = $5`,
			entryID, models.EntryVoid, reason, voidedBy, models.EntryPosted)
		if err != nil {
			return storageErr("void update failed", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return storageErr("void update failed", err)
		}
		if n == 0 {
			var status string
			err := tx.QueryRowContext(ctx, `SELECT status FROM ledger_entries WHERE id = $1`, entryID).Scan(&status)
			if err == sql.ErrNoRows {
				return notFoundErr("ledger entry not found: %s", entryID)
			}
			if err != nil {
				return storageErr("entry lookup failed", err)
			}
			return invalidStateErr("entry %s is %s; only POSTED entries can be voided", entryID, status)
		}

		entry, err = s.getEntryTx(ctx, tx, entryID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[LEDGER] Voided entry %s by %s: %s", entryID, voidedBy, reason)
	return entry, nil
}

func (s *LedgerService) getEntryTx(ctx context.Context, q dbtx, entryID string) (*models.LedgerEntry, error) {
	var e models.LedgerEntry
	err := q.QueryRowContext(ctx, `
		SELECT id, account_code, amount, direction, status, idempotency_key, lease_id,
		       entry_date, description, posted_by, void_reason, voided_by, voided_at, created_at
		FROM ledger_entries
		WHERE id = $1`, entryID).
		Scan(&e.ID, &e.AccountCode, &e.Amount, &e.Direction, &e.Status, &e.IdempotencyKey,
			&e.LeaseID, &e.EntryDate, &e.Description, &e.PostedBy,
			&e.VoidReason, &e.VoidedBy, &e.VoidedAt, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, notFoundErr("ledger entry not found: %s", entryID)
	}
	if err != nil {
		return nil, storageErr("entry lookup failed", err)
	}
	return &e, nil
}

// GetEntry returns one entry by id.
func (s *LedgerService) GetEntry(ctx context.Context, entryID string) (*models.LedgerEntry, error) {
	return s.getEntryTx(ctx, s.db, entryID)
}

// GetAccountBalance replays an account's POSTED entries using its normal
// balance direction: add when the leg matches the normal direction, subtract
// otherwise. This is the one sign-convention implementation; every report
// derives from it. VOID entries never count.
func (s *LedgerService) GetAccountBalance(ctx context.Context, accountCode string, asOf *time.Time) (decimal.Decimal, error) {
	account, err := getAccount(ctx, s.db, accountCode)
	if err != nil {
		return decimal.Zero, err
	}

	query := `
		SELECT amount, direction
		FROM ledger_entries
		WHERE account_code = $1 AND status = $2`
	args := []any{accountCode, models.EntryPosted}
	if asOf != nil {
		query += ` AND entry_date <= $3`
		args = append(args, *asOf)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, storageErr("balance query failed", err)
	}
	defer rows.Close()

	balance := decimal.Zero
	for rows.Next() {
		var amount decimal.Decimal
		var direction models.Direction
		if err := rows.Scan(&amount, &direction); err != nil {
			return decimal.Zero, storageErr("balance scan failed", err)
		}
		if direction == account.NormalBalance {
			balance = balance.Add(amount)
		} else {
			balance = balance.Sub(amount)
		}
	}
	return balance, rows.Err()
}

// LeaseBalance is the tenant's outstanding receivable: the replay of the AR
// account restricted to one lease. Receivable is a DR-normal asset.
func (s *LedgerService) LeaseBalance(ctx context.Context, leaseID int64) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT amount, direction
		FROM ledger_entries
		WHERE lease_id = $1 AND account_code = $2 AND status = $3`,
		leaseID, models.AccountAccountsReceivable, models.EntryPosted)
	if err != nil {
		return decimal.Zero, storageErr("lease balance query failed", err)
	}
	defer rows.Close()

	balance := decimal.Zero
	for rows.Next() {
		var amount decimal.Decimal
		var direction models.Direction
		if err := rows.Scan(&amount, &direction); err != nil {
			return decimal.Zero, storageErr("lease balance scan failed", err)
		}
		if direction == models.Debit {
			balance = balance.Add(amount)
		} else {
			balance = balance.Sub(amount)
		}
	}
	return balance, rows.Err()
}

// EntryFilter narrows ListEntries. Zero values mean "no filter".
type EntryFilter struct {
	AccountCode string
	LeaseID     *int64
	Status      models.EntryStatus
	Limit       int
}

// ListEntries returns entries newest first, for the back-office views.
func (s *LedgerService) ListEntries(ctx context.Context, f EntryFilter) ([]models.LedgerEntry, error) {
	var conditions []string
	var args []any
	argIndex := 1

	if f.AccountCode != "" {
		conditions = append(conditions, fmt.Sprintf("account_code = $%d", argIndex))
		args = append(args, f.AccountCode)
		argIndex++
	}
	if f.LeaseID != nil {
		conditions = append(conditions, fmt.Sprintf("lease_id = $%d", argIndex))
		args = append(args, *f.LeaseID)
		argIndex++
	}
	if f.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, f.Status)
		argIndex++
	}

	query := `
		SELECT id, account_code, amount, direction, status, idempotency_key, lease_id,
		       entry_date, description, posted_by, void_reason, voided_by, voided_at, created_at
		FROM ledger_entries`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY entry_date DESC, created_at DESC"

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT $%d", argIndex)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("entry listing failed", err)
	}
	defer rows.Close()

	entries := []models.LedgerEntry{}
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountCode, &e.Amount, &e.Direction, &e.Status,
			&e.IdempotencyKey, &e.LeaseID, &e.EntryDate, &e.Description, &e.PostedBy,
			&e.VoidReason, &e.VoidedBy, &e.VoidedAt, &e.CreatedAt); err != nil {
			return nil, storageErr("entry scan failed", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
