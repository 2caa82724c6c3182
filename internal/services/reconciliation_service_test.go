package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/keystonepm/backoffice/internal/models"
)

func reconciliationRows(id string, status models.ReconciliationStatus, finalizedAt *time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "account_code", "statement_date", "status", "created_by", "created_at", "finalized_at"}).
		AddRow(id, "1000", time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC), string(status), "user:1", time.Now(), finalizedAt)
}

// expectSessionLock matches the locking read every session mutation opens with.
func expectSessionLock(mock sqlmock.Sqlmock, recID string, rows *sqlmock.Rows) {
	mock.ExpectQuery(`SELECT id, account_code, statement_date, status, created_by, created_at, finalized_at[\s\S]*FOR UPDATE`).
		WithArgs(recID).
		WillReturnRows(rows)
}

func TestReconciliationService_ImportStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewReconciliationService(db, NewLedgerService(db))
	ctx := context.Background()
	recID := "4fa1c6f2-8f4b-4a1e-b611-0a9ad2f3c001"

	t.Run("imports CSV lines as UNMATCHED", func(t *testing.T) {
		csvBody := strings.Join([]string{
			"date,amount,description,reference",
			"2026-07-03,1500.00,ACH RENT UNIT 4B,TXN-1001",
			"2026-07-15,-230.50,PLUMBING CO,TXN-1002",
		}, "\n")

		mock.ExpectBegin()
		expectSessionLock(mock, recID, reconciliationRows(recID, models.ReconciliationInProgress, nil))
		mock.ExpectExec("INSERT INTO reconciliation_lines").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO reconciliation_lines").
			WillReturnResult(sqlmock.NewResult(2, 1))
		mock.ExpectCommit()

		lines, err := service.ImportStatement(ctx, recID, strings.NewReader(csvBody))
		assert.NoError(t, err)
		assert.Len(t, lines, 2)
		assert.Equal(t, models.LineUnmatched, lines[0].Status)
		assert.Equal(t, "TXN-1001", lines[0].Reference)
		assert.Equal(t, "1500.00", lines[0].Amount.StringFixed(2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("capitalized header row is still a header", func(t *testing.T) {
		csvBody := strings.Join([]string{
			"Date,Amount,Description,Reference",
			"2026-07-03,1500.00,ACH RENT UNIT 4B,TXN-1001",
		}, "\n")

		mock.ExpectBegin()
		expectSessionLock(mock, recID, reconciliationRows(recID, models.ReconciliationInProgress, nil))
		mock.ExpectExec("INSERT INTO reconciliation_lines").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		lines, err := service.ImportStatement(ctx, recID, strings.NewReader(csvBody))
		assert.NoError(t, err)
		assert.Len(t, lines, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("malformed amount rejects the whole statement before writing", func(t *testing.T) {
		csvBody := "2026-07-03,not-a-number,ACH RENT,TXN-1001\n"

		_, err := service.ImportStatement(ctx, recID, strings.NewReader(csvBody))
		assert.Error(t, err)
		assert.Equal(t, KindValidation, ErrKind(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("finalized session rejects import inside the transaction", func(t *testing.T) {
		finalized := time.Now()
		csvBody := strings.Join([]string{
			"date,amount,description,reference",
			"2026-07-03,1500.00,ACH RENT UNIT 4B,TXN-1001",
		}, "\n")

		mock.ExpectBegin()
		expectSessionLock(mock, recID, reconciliationRows(recID, models.ReconciliationFinalized, &finalized))
		mock.ExpectRollback()

		_, err := service.ImportStatement(ctx, recID, strings.NewReader(csvBody))
		assert.Error(t, err)
		assert.Equal(t, KindInvalidState, ErrKind(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReconciliationService_Finalize(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewReconciliationService(db, NewLedgerService(db))
	ctx := context.Background()
	recID := "4fa1c6f2-8f4b-4a1e-b611-0a9ad2f3c001"

	t.Run("refuses while lines remain UNMATCHED", func(t *testing.T) {
		mock.ExpectBegin()
		expectSessionLock(mock, recID, reconciliationRows(recID, models.ReconciliationInProgress, nil))
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM reconciliation_lines`).
			WithArgs(recID, string(models.LineUnmatched)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
		mock.ExpectRollback()

		_, err := service.Finalize(ctx, recID)
		assert.Error(t, err)
		assert.Equal(t, KindInvalidState, ErrKind(err))
		assert.Contains(t, err.Error(), "3 lines still UNMATCHED")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("finalizes once every line is resolved", func(t *testing.T) {
		finalized := time.Now()
		mock.ExpectBegin()
		expectSessionLock(mock, recID, reconciliationRows(recID, models.ReconciliationInProgress, nil))
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM reconciliation_lines`).
			WithArgs(recID, string(models.LineUnmatched)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		// The update must carry the IN_PROGRESS precondition.
		mock.ExpectExec(`UPDATE reconciliations[\s\S]*WHERE id = \$1 AND status = \$3`).
			WithArgs(recID, string(models.ReconciliationFinalized), string(models.ReconciliationInProgress)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT id, account_code, statement_date, status, created_by, created_at, finalized_at").
			WithArgs(recID).
			WillReturnRows(reconciliationRows(recID, models.ReconciliationFinalized, &finalized))
		mock.ExpectCommit()

		rec, err := service.Finalize(ctx, recID)
		assert.NoError(t, err)
		assert.Equal(t, models.ReconciliationFinalized, rec.Status)
		assert.NotNil(t, rec.FinalizedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("finalizing twice is invalid state", func(t *testing.T) {
		finalized := time.Now()
		mock.ExpectBegin()
		expectSessionLock(mock, recID, reconciliationRows(recID, models.ReconciliationFinalized, &finalized))
		mock.ExpectRollback()

		_, err := service.Finalize(ctx, recID)
		assert.Error(t, err)
		assert.Equal(t, KindInvalidState, ErrKind(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("losing the finalize race is invalid state, not silent success", func(t *testing.T) {
		mock.ExpectBegin()
		expectSessionLock(mock, recID, reconciliationRows(recID, models.ReconciliationInProgress, nil))
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM reconciliation_lines`).
			WithArgs(recID, string(models.LineUnmatched)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec(`UPDATE reconciliations[\s\S]*WHERE id = \$1 AND status = \$3`).
			WithArgs(recID, string(models.ReconciliationFinalized), string(models.ReconciliationInProgress)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := service.Finalize(ctx, recID)
		assert.Error(t, err)
		assert.Equal(t, KindInvalidState, ErrKind(err))
		assert.Contains(t, err.Error(), "already FINALIZED")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReconciliationService_MatchLine(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewReconciliationService(db, NewLedgerService(db))
	ctx := context.Background()
	recID := "4fa1c6f2-8f4b-4a1e-b611-0a9ad2f3c001"
	lineID := "9d2c5b7e-1a3f-4c8d-b0e2-6f4a8c1d3e5f"
	entryID := "b9e6f3b4-5f2b-4b1a-9a8e-1c2d3e4f5a6b"

	t.Run("matches a line to a POSTED entry under the session lock", func(t *testing.T) {
		mock.ExpectBegin()
		expectSessionLock(mock, recID, reconciliationRows(recID, models.ReconciliationInProgress, nil))
		mock.ExpectQuery("SELECT id, account_code, amount, direction, status, idempotency_key, lease_id").
			WithArgs(entryID).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "account_code", "amount", "direction", "status", "idempotency_key", "lease_id",
				"entry_date", "description", "posted_by", "void_reason", "voided_by", "voided_at", "created_at"}).
				AddRow(entryID, "1000", "1500.00", "DR", "POSTED", "pay-evt1-dr", int64(7),
					time.Now(), "Tenant payment evt1", "webhook:payments", nil, nil, nil, time.Now()))
		mock.ExpectExec("UPDATE reconciliation_lines").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := service.MatchLine(ctx, recID, lineID, entryID)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("refuses to match a VOID entry", func(t *testing.T) {
		mock.ExpectBegin()
		expectSessionLock(mock, recID, reconciliationRows(recID, models.ReconciliationInProgress, nil))
		mock.ExpectQuery("SELECT id, account_code, amount, direction, status, idempotency_key, lease_id").
			WithArgs(entryID).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "account_code", "amount", "direction", "status", "idempotency_key", "lease_id",
				"entry_date", "description", "posted_by", "void_reason", "voided_by", "voided_at", "created_at"}).
				AddRow(entryID, "1000", "1500.00", "DR", "VOID", "pay-evt1-dr", int64(7),
					time.Now(), "Tenant payment evt1", "webhook:payments", "bounced", "user:2", time.Now(), time.Now()))
		mock.ExpectRollback()

		err := service.MatchLine(ctx, recID, lineID, entryID)
		assert.Error(t, err)
		assert.Equal(t, KindInvalidState, ErrKind(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("session finalized by another writer blocks the match", func(t *testing.T) {
		finalized := time.Now()
		mock.ExpectBegin()
		expectSessionLock(mock, recID, reconciliationRows(recID, models.ReconciliationFinalized, &finalized))
		mock.ExpectRollback()

		err := service.MatchLine(ctx, recID, lineID, entryID)
		assert.Error(t, err)
		assert.Equal(t, KindInvalidState, ErrKind(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReconciliationService_ExcludeLine(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewReconciliationService(db, NewLedgerService(db))
	recID := "4fa1c6f2-8f4b-4a1e-b611-0a9ad2f3c001"
	lineID := "9d2c5b7e-1a3f-4c8d-b0e2-6f4a8c1d3e5f"

	mock.ExpectBegin()
	expectSessionLock(mock, recID, reconciliationRows(recID, models.ReconciliationInProgress, nil))
	mock.ExpectExec("UPDATE reconciliation_lines").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = service.ExcludeLine(context.Background(), recID, lineID)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
